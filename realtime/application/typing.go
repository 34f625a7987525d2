package application

import (
	"sync"
	"sync/atomic"
	"time"

	"taqui-realtime/keyed"
	"taqui-realtime/realtime/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultTypingTimeout = 7 * time.Second
	signalBuffer         = 128
)

type IndicatorKey struct {
	UserID  uuid.UUID
	GroupID uuid.UUID
}

// AppendKey implementa keyed.Hashable.
func (k IndicatorKey) AppendKey(b []byte) []byte {
	b = append(b, k.UserID[:]...)
	return append(b, k.GroupID[:]...)
}

// Palavra de estado do indicador: bit 0 = ativo, demais bits = geração.
// Cada ativação incrementa a geração; sinais carregam a geração para a qual
// foram enviados e a goroutine descarta os de ativações anteriores.
const activeBit = 1

func generation(s uint64) uint64 { return s >> 1 }

func isActive(s uint64) bool { return s&activeBit != 0 }

type indicator struct {
	state   atomic.Uint64
	starts  chan uint64
	stopGen atomic.Uint64
	stop    chan struct{}
}

func newIndicator() *indicator {
	return &indicator{
		starts: make(chan uint64, signalBuffer),
		stop:   make(chan struct{}, 1),
	}
}

// Coordinator transforma rajadas de "digitando" em um StartTyping visível e um
// único EndTyping depois de um período sem atividade.
//
// Por (usuário, grupo) existe no máximo uma goroutine viva, dona do timer e
// única a publicar EndTyping. Quem chama nunca bloqueia.
type Coordinator struct {
	pub        domain.Publisher
	indicators *keyed.Map[IndicatorKey, *indicator]
	timeout    time.Duration
	logger     *zap.Logger
	wg         sync.WaitGroup
}

type Option func(*Coordinator)

// WithTimeout troca o tempo de inatividade (7s por padrão).
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

func WithShards(n int) Option {
	return func(c *Coordinator) { c.indicators = keyed.New[IndicatorKey, *indicator](keyed.WithShards(n)) }
}

func NewCoordinator(pub domain.Publisher, opts ...Option) *Coordinator {
	c := &Coordinator{
		pub:        pub,
		indicators: keyed.New[IndicatorKey, *indicator](),
		timeout:    DefaultTypingTimeout,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterActivity marca o usuário como digitando no grupo.
//
// Se o indicador está ocioso, publica StartTyping e sobe a goroutine dona.
// Se já está ativo, apenas avisa a goroutine, que republica e rearma o timer.
func (c *Coordinator) RegisterActivity(user domain.User, group uuid.UUID) {
	key := IndicatorKey{UserID: user.ID, GroupID: group}
	ind, _ := c.indicators.GetOrInsert(key, newIndicator)

	for {
		s := ind.state.Load()
		if isActive(s) {
			select {
			case ind.starts <- generation(s):
			default:
				// buffer cheio: já há starts suficientes para manter o indicador vivo
			}
			return
		}

		gen := generation(s) + 1
		if ind.state.CompareAndSwap(s, gen<<1|activeBit) {
			c.pub.Send(domain.StartTyping(group, user), domain.GroupTopic(group))
			c.wg.Add(1)
			go c.run(key, ind, user, gen)
			return
		}
	}
}

// ClearActivity encerra o indicador ativo. Sem indicador ou já ocioso, não faz nada.
func (c *Coordinator) ClearActivity(userID, group uuid.UUID) {
	ind, ok := c.indicators.Get(IndicatorKey{UserID: userID, GroupID: group})
	if !ok {
		return
	}
	s := ind.state.Load()
	if !isActive(s) {
		return
	}
	ind.stopGen.Store(generation(s))
	select {
	case ind.stop <- struct{}{}:
	default:
	}
}

// Active informa se o usuário está marcado como digitando no grupo.
func (c *Coordinator) Active(userID, group uuid.UUID) bool {
	ind, ok := c.indicators.Get(IndicatorKey{UserID: userID, GroupID: group})
	return ok && isActive(ind.state.Load())
}

// Wait bloqueia até todas as goroutines de indicador terminarem.
func (c *Coordinator) Wait() { c.wg.Wait() }

func (c *Coordinator) run(key IndicatorKey, ind *indicator, user domain.User, gen uint64) {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("typing indicator panicked",
				zap.Stringer("user", key.UserID), zap.Stringer("group", key.GroupID), zap.Any("panic", r))
			ind.state.Store(gen << 1)
		}
	}()

	topic := domain.GroupTopic(key.GroupID)
	for {
		timedOut := c.await(ind, user, key.GroupID, gen)
		if timedOut && pendingStart(ind, gen) {
			// atividade chegou junto com o timeout: conta como um start normal
			c.pub.Send(domain.StartTyping(key.GroupID, user), topic)
			continue
		}
		break
	}

	// EndTyping sai antes de liberar o estado, então uma nova ativação nunca
	// publica StartTyping antes deste EndTyping.
	c.pub.Send(domain.EndTyping(key.GroupID, user), topic)
	ind.state.Store(gen << 1)
}

// await corre o timer contra os sinais até a ativação gen acabar.
// Retorna true se acabou por inatividade.
func (c *Coordinator) await(ind *indicator, user domain.User, group uuid.UUID, gen uint64) bool {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return true
		case g := <-ind.starts:
			if g != gen {
				continue
			}
			c.pub.Send(domain.StartTyping(group, user), domain.GroupTopic(group))
			timer.Reset(c.timeout)
		case <-ind.stop:
			if ind.stopGen.Load() == gen {
				return false
			}
		}
	}
}

// pendingStart consome os starts pendentes e diz se algum era da ativação gen.
func pendingStart(ind *indicator, gen uint64) bool {
	found := false
	for {
		select {
		case g := <-ind.starts:
			if g == gen {
				found = true
			}
		default:
			return found
		}
	}
}
