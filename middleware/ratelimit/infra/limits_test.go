package infra

import (
	"os"
	"path/filepath"
	"testing"

	"taqui-realtime/middleware/ratelimit/domain"
)

func TestParseLimits_OverridesBase(t *testing.T) {
	raw := []byte(`
limits:
  messages:
    capacity: 50
    refill_rate: 2
  reactions: {capacity: 3, refill_rate: 1}
`)
	got, err := ParseLimits(raw, DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.For("messages") != (domain.BucketConfig{Capacity: 50, RefillRate: 2}) {
		t.Fatalf("expected messages override, got %+v", got.For("messages"))
	}
	if got.For("reactions") != (domain.BucketConfig{Capacity: 3, RefillRate: 1}) {
		t.Fatalf("expected new namespace, got %+v", got.For("reactions"))
	}
	if got.For("auth") != (domain.BucketConfig{Capacity: 2, RefillRate: 1}) {
		t.Fatalf("expected auth to keep default, got %+v", got.For("auth"))
	}
}

func TestParseLimits_RejectsInvalidYAML(t *testing.T) {
	if _, err := ParseLimits([]byte("limits: [1, 2"), nil); err == nil {
		t.Fatalf("expected error for invalid yaml")
	}
	if _, err := ParseLimits([]byte("limits:\n  messages: {capacity: -1}\n"), nil); err == nil {
		t.Fatalf("expected error for negative capacity")
	}
}

func TestLoadLimits_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	if err := os.WriteFile(path, []byte("limits:\n  auth: {capacity: 4, refill_rate: 2}\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := LoadLimits(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.For("auth").Capacity != 4 {
		t.Fatalf("expected capacity 4, got %d", got.For("auth").Capacity)
	}

	if _, err := LoadLimits(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLimits_ForPanicsOnUnknownNamespace(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	DefaultLimits().For("nope")
}
