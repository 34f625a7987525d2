package application

import (
	"time"

	"taqui-realtime/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Limiter    domain.Limiter
	Config     domain.BucketConfig
	RetryAfter time.Duration
}

// Decide consome um token da chave. Sem Limiter configurado, tudo passa.
func (s Service) Decide(key domain.Key) domain.Decision {
	if s.Limiter == nil {
		return domain.Decision{Allowed: true}
	}
	if s.Limiter.Acquire(key, s.Config) {
		return domain.Decision{Allowed: true}
	}

	retry := s.RetryAfter
	if retry <= 0 {
		retry = defaultRetryAfter(s.Config)
	}
	return domain.Decision{Allowed: false, RetryAfter: retry}
}

// A recarga é em segundos inteiros, então nunca vale a pena tentar antes de 1s.
func defaultRetryAfter(cfg domain.BucketConfig) time.Duration {
	if cfg.RefillRate == 0 {
		return 0
	}
	return 1 * time.Second
}
