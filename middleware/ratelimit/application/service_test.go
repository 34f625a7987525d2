package application

import (
	"testing"
	"time"

	"taqui-realtime/middleware/ratelimit/domain"

	"github.com/google/uuid"
)

type fakeLimiter struct {
	allow bool
	calls int
	cfg   domain.BucketConfig
}

func (f *fakeLimiter) Acquire(_ domain.Key, cfg domain.BucketConfig) bool {
	f.calls++
	f.cfg = cfg
	return f.allow
}

var testKey = domain.Key{Namespace: "messages", Component: domain.UserComponent(uuid.New())}

func TestService_Decide_AllowsWhenNoLimiter(t *testing.T) {
	svc := Service{}
	dec := svc.Decide(testKey)
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_PassesConfigToLimiter(t *testing.T) {
	lim := &fakeLimiter{allow: true}
	cfg := domain.BucketConfig{Capacity: 25, RefillRate: 1}
	svc := Service{Limiter: lim, Config: cfg}

	if dec := svc.Decide(testKey); !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if lim.calls != 1 || lim.cfg != cfg {
		t.Fatalf("expected one Acquire with %+v, got %d calls with %+v", cfg, lim.calls, lim.cfg)
	}
}

func TestService_Decide_BlocksWithRetryAfterDefault(t *testing.T) {
	svc := Service{Limiter: &fakeLimiter{allow: false}, Config: domain.BucketConfig{Capacity: 1, RefillRate: 1}}
	dec := svc.Decide(testKey)
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 1*time.Second {
		t.Fatalf("expected default RetryAfter=1s, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_NoRetryAfterWithoutRefill(t *testing.T) {
	svc := Service{Limiter: &fakeLimiter{allow: false}, Config: domain.BucketConfig{Capacity: 1}}
	if dec := svc.Decide(testKey); dec.RetryAfter != 0 {
		t.Fatalf("expected no retry hint when the bucket never refills, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_BlocksWithConfiguredRetryAfter(t *testing.T) {
	svc := Service{Limiter: &fakeLimiter{allow: false}, RetryAfter: 2500 * time.Millisecond}
	dec := svc.Decide(testKey)
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 2500*time.Millisecond {
		t.Fatalf("expected RetryAfter=2.5s, got %s", dec.RetryAfter)
	}
}
