package infra

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"taqui-realtime/keyed"
	"taqui-realtime/realtime/domain"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBufferSize = 128
	DefaultKeepAlive  = 30 * time.Second
)

// Broadcaster é um multicast por tópico.
//
// O canal de um tópico nasce no primeiro Subscribe e vive até o fim do processo.
// Send para um tópico sem canal é descartado.
type Broadcaster struct {
	channels *keyed.Map[domain.Topic, *channel]
	bufSize  int
	logger   *zap.Logger
	lagLog   *rate.Sometimes
}

type channel struct {
	topic     domain.Topic
	mu        sync.RWMutex
	receivers map[*Receiver]struct{}
}

type BroadcasterOption func(*Broadcaster)

// WithBufferSize define quantos frames cada receiver segura antes de começar a perder.
func WithBufferSize(n int) BroadcasterOption {
	return func(b *Broadcaster) { b.bufSize = n }
}

func WithLogger(l *zap.Logger) BroadcasterOption {
	return func(b *Broadcaster) { b.logger = l }
}

func WithShards(n int) BroadcasterOption {
	return func(b *Broadcaster) { b.channels = keyed.New[domain.Topic, *channel](keyed.WithShards(n)) }
}

func NewBroadcaster(opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		channels: keyed.New[domain.Topic, *channel](),
		bufSize:  DefaultBufferSize,
		logger:   zap.NewNop(),
		lagLog:   &rate.Sometimes{Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.bufSize < 1 {
		b.bufSize = 1
	}
	return b
}

// Subscribe registra um receiver novo no tópico. Ele só vê o que for enviado
// depois deste ponto.
func (b *Broadcaster) Subscribe(topic domain.Topic) *Receiver {
	c, _ := b.channels.GetOrInsert(topic, func() *channel {
		return &channel{topic: topic, receivers: make(map[*Receiver]struct{})}
	})

	r := &Receiver{ch: make(chan domain.Frame, b.bufSize), owner: c, b: b}
	c.mu.Lock()
	c.receivers[r] = struct{}{}
	c.mu.Unlock()
	return r
}

// Send implementa domain.Publisher.
func (b *Broadcaster) Send(ev domain.Event, topic domain.Topic) {
	c, ok := b.channels.Get(topic)
	if !ok {
		return
	}

	f, err := domain.EncodeFrame(ev)
	if err != nil {
		b.logger.Error("event not encoded", zap.String("event", ev.Name), zap.Stringer("topic", topic), zap.Error(err))
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for r := range c.receivers {
		r.offer(f)
	}
}

// Subscribers retorna quantos receivers estão ativos no tópico.
func (b *Broadcaster) Subscribers(topic domain.Topic) int {
	c, ok := b.channels.Get(topic)
	if !ok {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.receivers)
}

func (b *Broadcaster) Topics() int { return b.channels.Len() }

// Receiver é uma inscrição independente num tópico.
type Receiver struct {
	ch     chan domain.Frame
	owner  *channel
	b      *Broadcaster
	mu     sync.Mutex
	closed bool
	lagged atomic.Uint64
	once   sync.Once
}

// offer nunca bloqueia: com o buffer cheio, descarta o frame mais antigo.
func (r *Receiver) offer(f domain.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	select {
	case r.ch <- f:
		return
	default:
	}

	var dropped uint64
	select {
	case <-r.ch:
		dropped++
	default:
	}
	select {
	case r.ch <- f:
	default:
		dropped++
	}
	if dropped == 0 {
		return
	}
	n := r.lagged.Add(dropped)
	r.b.lagLog.Do(func() {
		r.b.logger.Warn("receiver lagging, frames dropped",
			zap.Stringer("topic", r.owner.topic), zap.Uint64("lagged", n))
	})
}

// C expõe os frames recebidos. Fechado após Close.
func (r *Receiver) C() <-chan domain.Frame { return r.ch }

// Lagged retorna quantos frames este receiver perdeu por estar atrasado.
func (r *Receiver) Lagged() uint64 { return r.lagged.Load() }

// Close desfaz a inscrição. Pode ser chamado mais de uma vez.
func (r *Receiver) Close() {
	r.once.Do(func() {
		r.owner.mu.Lock()
		delete(r.owner.receivers, r)
		r.owner.mu.Unlock()

		r.mu.Lock()
		r.closed = true
		close(r.ch)
		r.mu.Unlock()
	})
}

// Frames adapta o receiver num stream infinito. Depois de keepAlive sem nenhum
// frame, emite um frame de keep-alive. Termina quando ctx acaba, quando o
// consumidor para ou quando o receiver é fechado; atraso nunca encerra o stream.
func (r *Receiver) Frames(ctx context.Context, keepAlive time.Duration) iter.Seq[domain.Frame] {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return func(yield func(domain.Frame) bool) {
		t := time.NewTimer(keepAlive)
		defer t.Stop()

		for {
			var f domain.Frame
			select {
			case <-ctx.Done():
				return
			case got, ok := <-r.ch:
				if !ok {
					return
				}
				f = got
			case <-t.C:
				f = domain.KeepAliveFrame()
			}
			if !yield(f) {
				return
			}
			t.Reset(keepAlive)
		}
	}
}
