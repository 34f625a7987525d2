package application

import (
	"context"
	"errors"
	"time"

	"taqui-realtime/middleware/ratelimit/domain"
)

// ErrNoSlot indica que o AcquireTimeout estourou sem vaga livre.
var ErrNoSlot = errors.New("no slot available")

// ConcurrencyService concentra a regra de aquisição/liberação de vagas com timeout,
// sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - AcquireTimeout <= 0: espera até o ctx do chamador encerrar.
//   - AcquireTimeout > 0: espera no máximo o timeout.
//
// Se o ctx do chamador encerrou (cliente desconectou), retorna ctx.Err();
// se foi o timeout, retorna ErrNoSlot.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if ok {
		return release, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNoSlot
}
