package application

import (
	"sync"
	"testing"
	"time"

	"taqui-realtime/realtime/domain"

	"github.com/google/uuid"
)

type sent struct {
	name  string
	topic domain.Topic
	user  uuid.UUID
	at    time.Time
}

// recordingPublisher guarda tudo o que foi publicado.
type recordingPublisher struct {
	mu      sync.Mutex
	events  []sent
	panicOn func(domain.Event) bool
}

func (p *recordingPublisher) Send(ev domain.Event, topic domain.Topic) {
	if p.panicOn != nil && p.panicOn(ev) {
		panic("publisher failure")
	}
	var user uuid.UUID
	if tp, ok := ev.Data.(domain.TypingPayload); ok {
		user = tp.User.ID
	}
	p.mu.Lock()
	p.events = append(p.events, sent{name: ev.Name, topic: topic, user: user, at: time.Now()})
	p.mu.Unlock()
}

func (p *recordingPublisher) names(topic domain.Topic) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		if e.topic == topic {
			out = append(out, e.name)
		}
	}
	return out
}

func (p *recordingPublisher) last() sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

func waitDone(t *testing.T, c *Coordinator, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("indicator goroutines still running after %s", d)
	}
}

func equalNames(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestCoordinator_IdleRegisterStartsThenTimesOut(t *testing.T) {
	pub := &recordingPublisher{}
	const timeout = 50 * time.Millisecond
	c := NewCoordinator(pub, WithTimeout(timeout))

	user := domain.User{ID: uuid.New(), Username: "ana"}
	group := uuid.New()
	topic := domain.GroupTopic(group)

	began := time.Now()
	c.RegisterActivity(user, group)

	if got := pub.names(topic); !equalNames(got, domain.EventStartTyping) {
		t.Fatalf("expected StartTyping published synchronously, got %v", got)
	}
	if !c.Active(user.ID, group) {
		t.Fatalf("expected indicator to be active")
	}

	waitDone(t, c, 2*time.Second)

	if got := pub.names(topic); !equalNames(got, domain.EventStartTyping, domain.EventEndTyping) {
		t.Fatalf("expected start then end, got %v", got)
	}
	if end := pub.last(); end.at.Sub(began) < timeout || end.user != user.ID {
		t.Fatalf("unexpected EndTyping %+v", end)
	}
	if c.Active(user.ID, group) {
		t.Fatalf("expected indicator to be idle after timeout")
	}
}

func TestCoordinator_RepeatedActivityRepublishesWithOneEnd(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCoordinator(pub, WithTimeout(100*time.Millisecond))

	user := domain.User{ID: uuid.New(), Username: "bia"}
	group := uuid.New()
	topic := domain.GroupTopic(group)

	c.RegisterActivity(user, group)
	time.Sleep(20 * time.Millisecond)
	c.RegisterActivity(user, group)

	waitDone(t, c, 2*time.Second)

	got := pub.names(topic)
	if !equalNames(got, domain.EventStartTyping, domain.EventStartTyping, domain.EventEndTyping) {
		t.Fatalf("expected start, start, end; got %v", got)
	}
}

func TestCoordinator_ActivityExtendsTimeout(t *testing.T) {
	pub := &recordingPublisher{}
	const timeout = 80 * time.Millisecond
	c := NewCoordinator(pub, WithTimeout(timeout))

	user := domain.User{ID: uuid.New()}
	group := uuid.New()

	c.RegisterActivity(user, group)
	time.Sleep(50 * time.Millisecond)
	lastActivity := time.Now()
	c.RegisterActivity(user, group)

	waitDone(t, c, 2*time.Second)
	if end := pub.last(); end.name != domain.EventEndTyping || end.at.Sub(lastActivity) < timeout {
		t.Fatalf("expected EndTyping at least %s after last activity, got %+v", timeout, end)
	}
}

func TestCoordinator_ClearEndsPromptlyAndIsIdempotent(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCoordinator(pub, WithTimeout(time.Hour))

	user := domain.User{ID: uuid.New()}
	group := uuid.New()
	topic := domain.GroupTopic(group)

	c.RegisterActivity(user, group)
	c.ClearActivity(user.ID, group)
	waitDone(t, c, time.Second)

	c.ClearActivity(user.ID, group)
	time.Sleep(20 * time.Millisecond)

	if got := pub.names(topic); !equalNames(got, domain.EventStartTyping, domain.EventEndTyping) {
		t.Fatalf("expected start then a single end, got %v", got)
	}
}

func TestCoordinator_ClearWithoutIndicatorIsNoop(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCoordinator(pub)

	c.ClearActivity(uuid.New(), uuid.New())

	if len(pub.events) != 0 {
		t.Fatalf("expected no events, got %v", pub.events)
	}
}

func TestCoordinator_ReactivatesAfterEnd(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCoordinator(pub, WithTimeout(time.Hour))

	user := domain.User{ID: uuid.New()}
	group := uuid.New()
	topic := domain.GroupTopic(group)

	c.RegisterActivity(user, group)
	c.ClearActivity(user.ID, group)
	waitDone(t, c, time.Second)

	c.RegisterActivity(user, group)
	c.ClearActivity(user.ID, group)
	waitDone(t, c, time.Second)

	want := []string{domain.EventStartTyping, domain.EventEndTyping, domain.EventStartTyping, domain.EventEndTyping}
	if got := pub.names(topic); !equalNames(got, want...) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCoordinator_KeysAreIndependent(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCoordinator(pub, WithTimeout(time.Hour))

	ana := domain.User{ID: uuid.New()}
	bia := domain.User{ID: uuid.New()}
	group := uuid.New()

	c.RegisterActivity(ana, group)
	c.RegisterActivity(bia, group)
	c.ClearActivity(ana.ID, group)

	deadline := time.Now().Add(time.Second)
	for c.Active(ana.ID, group) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Active(ana.ID, group) {
		t.Fatalf("expected ana to stop typing")
	}
	if !c.Active(bia.ID, group) {
		t.Fatalf("expected bia to keep typing")
	}

	c.ClearActivity(bia.ID, group)
	waitDone(t, c, time.Second)
}

func TestCoordinator_PanicIsIsolatedPerKey(t *testing.T) {
	broken := uuid.New()
	pub := &recordingPublisher{panicOn: func(ev domain.Event) bool {
		tp, ok := ev.Data.(domain.TypingPayload)
		return ok && ev.Name == domain.EventEndTyping && tp.GroupID == broken
	}}
	c := NewCoordinator(pub, WithTimeout(20*time.Millisecond))

	user := domain.User{ID: uuid.New()}
	healthy := uuid.New()

	c.RegisterActivity(user, broken)
	c.RegisterActivity(user, healthy)
	waitDone(t, c, 2*time.Second)

	if got := pub.names(domain.GroupTopic(healthy)); !equalNames(got, domain.EventStartTyping, domain.EventEndTyping) {
		t.Fatalf("expected healthy group unaffected, got %v", got)
	}
	if c.Active(user.ID, broken) {
		t.Fatalf("expected failed indicator to be reset to idle")
	}

	c.RegisterActivity(user, broken)
	if got := pub.names(domain.GroupTopic(broken)); !equalNames(got, domain.EventStartTyping, domain.EventStartTyping) {
		t.Fatalf("expected indicator to start again, got %v", got)
	}
	waitDone(t, c, 2*time.Second)
}

func TestCoordinator_ConcurrentRegisterStartsOneTask(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCoordinator(pub, WithTimeout(200*time.Millisecond))

	user := domain.User{ID: uuid.New()}
	group := uuid.New()

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RegisterActivity(user, group)
		}()
	}
	wg.Wait()
	waitDone(t, c, 2*time.Second)

	ends := 0
	for _, n := range pub.names(domain.GroupTopic(group)) {
		if n == domain.EventEndTyping {
			ends++
		}
	}
	if ends != 1 {
		t.Fatalf("expected exactly one EndTyping, got %d", ends)
	}
}
