package infra

import (
	"math"
	"sync"
	"time"

	"taqui-realtime/keyed"
	"taqui-realtime/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

// Buckets é o token bucket por chave, em memória.
//
// A recarga usa segundos inteiros decorridos desde o último acesso: rajadas dentro
// do mesmo segundo não recarregam nada. Cada bucket tem seu próprio mutex, então
// chaves diferentes não disputam lock entre si.
type Buckets struct {
	entries      *keyed.Map[domain.Key, *bucket]
	now          func() time.Time
	idleTTL      time.Duration
	cleanupEvery time.Duration
	logger       *zap.Logger
}

type bucket struct {
	mu         sync.Mutex
	tokens     uint64
	lastRefill time.Time
	cfg        domain.BucketConfig
	evicted    bool
}

type BucketsOption func(*Buckets)

// WithClock troca a fonte de tempo (testes).
func WithClock(now func() time.Time) BucketsOption {
	return func(b *Buckets) { b.now = now }
}

// WithIdleTTL define o tempo mínimo sem acesso antes de o janitor considerar um bucket.
func WithIdleTTL(d time.Duration) BucketsOption {
	return func(b *Buckets) { b.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) BucketsOption {
	return func(b *Buckets) { b.cleanupEvery = d }
}

func WithLogger(l *zap.Logger) BucketsOption {
	return func(b *Buckets) { b.logger = l }
}

func NewBuckets(opts ...BucketsOption) *Buckets {
	b := &Buckets{
		entries:      keyed.New[domain.Key, *bucket](),
		now:          time.Now,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Acquire implementa domain.Limiter.
func (b *Buckets) Acquire(key domain.Key, cfg domain.BucketConfig) bool {
	for {
		now := b.now()
		bk, _ := b.entries.GetOrInsert(key, func() *bucket {
			return &bucket{tokens: cfg.Capacity, lastRefill: now, cfg: cfg}
		})

		bk.mu.Lock()
		if bk.evicted {
			// o janitor removeu o bucket depois do lookup; busca de novo
			bk.mu.Unlock()
			continue
		}
		ok := bk.take(now, cfg)
		bk.mu.Unlock()
		return ok
	}
}

// take deve ser chamado com bk.mu adquirido.
func (bk *bucket) take(now time.Time, cfg domain.BucketConfig) bool {
	elapsed := now.Sub(bk.lastRefill)
	if elapsed < 0 {
		elapsed = 0
	}
	refill := mulSat(uint64(elapsed/time.Second), cfg.RefillRate)
	bk.tokens = min(cfg.Capacity, addSat(bk.tokens, refill))
	bk.lastRefill = now
	bk.cfg = cfg

	if bk.tokens == 0 {
		return false
	}
	bk.tokens--
	return true
}

// Tokens retorna o saldo atual (sem recarga) da chave. Útil para headers e testes.
func (b *Buckets) Tokens(key domain.Key) (uint64, bool) {
	bk, ok := b.entries.Get(key)
	if !ok {
		return 0, false
	}
	bk.mu.Lock()
	defer bk.mu.Unlock()
	return bk.tokens, true
}

func (b *Buckets) Len() int { return b.entries.Len() }

// Cleanup remove buckets ociosos que já teriam recarregado por completo.
// Um bucket cheio é indistinguível de um recém-criado, então remover não muda
// nenhuma decisão futura. Buckets com RefillRate=0 e tokens faltando nunca saem.
func (b *Buckets) Cleanup() int {
	now := b.now()
	removed := b.entries.DeleteFunc(func(_ domain.Key, bk *bucket) bool {
		bk.mu.Lock()
		defer bk.mu.Unlock()

		idle := now.Sub(bk.lastRefill)
		if idle < b.idleTTL || idle < fullRefillAfter(bk.tokens, bk.cfg) {
			return false
		}
		bk.evicted = true
		return true
	})
	if removed > 0 {
		b.logger.Debug("rate limit buckets evicted", zap.Int("removed", removed))
	}
	return removed
}

func fullRefillAfter(tokens uint64, cfg domain.BucketConfig) time.Duration {
	if tokens >= cfg.Capacity {
		return 0
	}
	if cfg.RefillRate == 0 {
		return time.Duration(math.MaxInt64)
	}
	missing := cfg.Capacity - tokens
	secs := (missing + cfg.RefillRate - 1) / cfg.RefillRate
	if secs > uint64(math.MaxInt64/int64(time.Second)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(secs) * time.Second
}

// StartJanitor inicia uma goroutine que limpa buckets ociosos periodicamente.
// Pare cancelando o contexto.
func (b *Buckets) StartJanitor(ctx DoneContext) {
	if b.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(b.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				b.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}

func addSat(a, b uint64) uint64 {
	if s := a + b; s >= a {
		return s
	}
	return math.MaxUint64
}

func mulSat(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxUint64/b {
		return math.MaxUint64
	}
	return a * b
}
