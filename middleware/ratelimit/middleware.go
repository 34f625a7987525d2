package ratelimit

import (
	"errors"
	"net/http"
	"time"

	"taqui-realtime/middleware/apierror"
	"taqui-realtime/middleware/ratelimit/application"
	"taqui-realtime/middleware/ratelimit/domain"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Options struct {
	// Namespace identifica o recurso protegido. Usado no AddrExtractor padrão
	// e nas estatísticas quando a extração falha.
	Namespace string
	Limiter   domain.Limiter
	Config    domain.BucketConfig
	Extractor Extractor
	Stats     domain.StatsStore
	Logger    *zap.Logger

	TrustXForwardedFor  bool
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
}

// tokenReporter é implementado por infra.Buckets.
type tokenReporter interface {
	Tokens(domain.Key) (uint64, bool)
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.Extractor == nil {
		opts.Extractor = AddrExtractor{Namespace: opts.Namespace, TrustXForwardedFor: opts.TrustXForwardedFor}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger.With(zap.String("namespace", opts.Namespace))
	// um request negado por segundo no log já basta para diagnóstico
	denyLog := &rate.Sometimes{Interval: time.Second}

	svc := application.Service{
		Limiter:    opts.Limiter,
		Config:     opts.Config,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := opts.Extractor.Extract(r)
			if err != nil {
				record(r, opts, domain.StatsEvent{Namespace: opts.Namespace, Outcome: domain.OutcomeUnkeyed})
				writeExtractionError(w, err)
				return
			}

			dec := svc.Decide(key)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key.String())
				w.Header().Set("X-RateLimit-Limit", formatUint(opts.Config.Capacity))
				w.Header().Set("X-RateLimit-Refill", formatUint(opts.Config.RefillRate))
				if tr, ok := opts.Limiter.(tokenReporter); ok {
					if left, ok := tr.Tokens(key); ok {
						w.Header().Set("X-RateLimit-Remaining", formatUint(left))
					}
				}
			}

			outcome := domain.OutcomeAllowed
			if !dec.Allowed {
				outcome = domain.OutcomeDenied
			}
			record(r, opts, domain.StatsEvent{Namespace: key.Namespace, Key: key, Outcome: outcome})

			if !dec.Allowed {
				denyLog.Do(func() {
					logger.Info("rate limited", zap.Stringer("key", key), zap.String("path", r.URL.Path))
				})
				if dec.RetryAfter > 0 {
					w.Header().Set("Retry-After", formatInt(int(dec.RetryAfter.Seconds())))
				}
				apierror.Write(w, opts.RejectStatus, apierror.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func record(r *http.Request, opts Options, ev domain.StatsEvent) {
	if opts.Stats == nil {
		return
	}
	ev.Method = r.Method
	ev.Path = r.URL.Path
	ev.At = time.Now()
	if err := opts.Stats.Record(r.Context(), ev); err != nil {
		opts.Logger.Debug("rate limit stats not recorded", zap.Error(err))
	}
}

func writeExtractionError(w http.ResponseWriter, err error) {
	var ee *ExtractionError
	if !errors.As(err, &ee) {
		apierror.Write(w, http.StatusBadRequest, apierror.Error{Code: apierror.Validation, Details: err.Error()})
		return
	}
	if errors.Is(ee, ErrMissingPrincipal) {
		apierror.Write(w, ee.Status, apierror.ErrInvalidToken)
		return
	}
	apierror.Write(w, ee.Status, apierror.Error{Code: apierror.Validation, Details: ee.Error()})
}
