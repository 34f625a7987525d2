package ratelimit

import (
	"errors"
	"net/http"
	"time"

	"taqui-realtime/middleware/apierror"
	"taqui-realtime/middleware/ratelimit/application"
	"taqui-realtime/middleware/ratelimit/infra"

	"go.uber.org/zap"
)

// ConcurrencyOptions limita quantos requests ficam abertos ao mesmo tempo.
// Nas rotas de stream SSE isso equivale ao número máximo de conexões abertas.
type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	Logger         *zap.Logger
}

func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	pool := infra.NewChanPool(opts.Max)
	svc := application.ConcurrencyService{
		Pool:           pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				if errors.Is(err, application.ErrNoSlot) {
					opts.Logger.Warn("concurrency limit reached",
						zap.Int("max", pool.Cap()), zap.String("path", r.URL.Path))
					apierror.Write(w, opts.RejectStatus, apierror.ErrUnavailable)
				}
				// cliente desistiu enquanto esperava: não há para quem responder
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
