package main

import (
	"encoding/json"
	"net/http"

	"taqui-realtime/middleware/apierror"
	"taqui-realtime/middleware/auth"
	"taqui-realtime/middleware/ratelimit"
	"taqui-realtime/middleware/ratelimit/domain"
	"taqui-realtime/middleware/ratelimit/infra"
	"taqui-realtime/realtime"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// server junta as dependências que as rotas usam.
type server struct {
	cfg      config
	logger   *zap.Logger
	limits   infra.Limits
	buckets  *infra.Buckets
	stats    domain.StatsStore
	verifier *auth.Verifier
	handlers *realtime.Handlers
}

func (s *server) limit(namespace string, ex ratelimit.Extractor) func(http.Handler) http.Handler {
	return ratelimit.Middleware(ratelimit.Options{
		Namespace:           namespace,
		Limiter:             s.buckets,
		Config:              s.limits.For(namespace),
		Extractor:           ex,
		Stats:               s.stats,
		Logger:              s.logger.Named("ratelimit"),
		TrustXForwardedFor:  s.cfg.trustXFF,
		AddRateLimitHeaders: s.cfg.addHeaders,
	})
}

func chain(mws ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}

// typingExtractor limita por usuário no namespace "groups" e rejeita group_id
// malformado antes de gastar token.
func typingExtractor() ratelimit.Extractor {
	principal := ratelimit.PrincipalFacet()
	group := ratelimit.PathUUIDFacet("group_id")
	return ratelimit.NewFuncExtractor(func(v ratelimit.Values) domain.Key {
		return domain.Key{Namespace: "groups", Component: domain.UserComponent(ratelimit.Value(v, principal).ID)}
	}, principal, group)
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	authn := auth.Middleware(s.verifier, s.logger.Named("auth"))

	// antes da autenticação: chave pelo IP
	me := chain(s.limit("auth", ratelimit.AddrExtractor{Namespace: "auth", TrustXForwardedFor: s.cfg.trustXFF}), authn)
	r.Handle("/api/auth/me", me(http.HandlerFunc(meHandler))).Methods(http.MethodGet)

	streams := chain(
		authn,
		s.limit("groups", ratelimit.UserExtractor{Namespace: "groups"}),
		ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
			Max:            s.cfg.streamsMax,
			AcquireTimeout: s.cfg.streamsAcquireTimeout,
			Logger:         s.logger.Named("streams"),
		}),
	)
	groups := chain(authn, s.limit("groups", typingExtractor()))
	messages := chain(authn, s.limit("messages", ratelimit.UserExtractor{Namespace: "messages"}))
	s.handlers.Register(r, groups, messages, streams)

	if mem, ok := s.stats.(*infra.MemoryStatsStore); ok {
		r.Handle("/debug/ratelimit", statsHandler(mem)).Methods(http.MethodGet)
	}
	return r
}

func meHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		apierror.Write(w, http.StatusUnauthorized, apierror.ErrInvalidToken)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p)
}

func statsHandler(mem *infra.MemoryStatsStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total":     mem.Total(),
			"namespace": mem.ByNamespace(),
			"route":     mem.ByRoute(),
			"key":       mem.ByKey(),
		})
	})
}
