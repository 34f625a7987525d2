package domain

import (
	"context"
	"time"
)

// Outcome é o resultado de uma passagem pelo middleware de rate limit.
type Outcome uint8

const (
	OutcomeAllowed Outcome = iota + 1
	OutcomeDenied
	// OutcomeUnkeyed: a extração da chave falhou antes de chegar no bucket.
	OutcomeUnkeyed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllowed:
		return "allowed"
	case OutcomeDenied:
		return "denied"
	case OutcomeUnkeyed:
		return "unkeyed"
	default:
		return "unknown"
	}
}

// StatsEvent representa uma decisão do rate limit.
//
// Method/Path são strings genéricas. Key fica zerada quando Outcome == OutcomeUnkeyed,
// e Namespace continua preenchido.
//
// Cuidado com cardinalidade: gravar Key por usuário/IP sem controle
// explode o número de chaves no Redis.
type StatsEvent struct {
	Namespace string
	Key       Key
	Outcome   Outcome

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
// O middleware trata erro como best-effort (não derruba o request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
