package domain

import (
	"bytes"
	"net/netip"
	"testing"

	"github.com/google/uuid"
)

func TestKey_EqualityIsByValue(t *testing.T) {
	id := uuid.New()
	k1 := Key{Namespace: "messages", Component: UserComponent(id)}
	k2 := Key{Namespace: "messages", Component: UserComponent(id)}
	if k1 != k2 {
		t.Fatalf("expected keys built from the same values to be equal")
	}
	if !bytes.Equal(k1.AppendKey(nil), k2.AppendKey(nil)) {
		t.Fatalf("expected equal keys to encode to the same bytes")
	}
}

func TestKey_DistinctKeysEncodeDifferently(t *testing.T) {
	id := uuid.New()
	addr := netip.MustParseAddr("192.168.0.10")

	keys := []Key{
		{Namespace: "auth", Component: UserComponent(id)},
		{Namespace: "groups", Component: UserComponent(id)},
		{Namespace: "auth", Component: AddrComponent(addr)},
		{Namespace: "auth", Component: AddrComponent(netip.MustParseAddr("192.168.0.11"))},
	}
	seen := map[string]Key{}
	for _, k := range keys {
		enc := string(k.AppendKey(nil))
		if prev, ok := seen[enc]; ok {
			t.Fatalf("keys %s and %s share encoding", prev, k)
		}
		seen[enc] = k
	}
}

func TestAddrComponent_UnmapsIPv4InIPv6(t *testing.T) {
	mapped := netip.MustParseAddr("::ffff:10.0.0.1")
	plain := netip.MustParseAddr("10.0.0.1")
	if AddrComponent(mapped) != AddrComponent(plain) {
		t.Fatalf("expected mapped and plain IPv4 to produce the same component")
	}
}

func TestKey_String(t *testing.T) {
	id := uuid.MustParse("6f1c8d3e-1a2b-4c5d-8e9f-0a1b2c3d4e5f")
	k := Key{Namespace: "messages", Component: UserComponent(id)}
	if got := k.String(); got != "messages:user:6f1c8d3e-1a2b-4c5d-8e9f-0a1b2c3d4e5f" {
		t.Fatalf("unexpected key string %q", got)
	}

	a := Key{Namespace: "auth", Component: AddrComponent(netip.MustParseAddr("10.0.0.1"))}
	if got := a.String(); got != "auth:addr:10.0.0.1" {
		t.Fatalf("unexpected key string %q", got)
	}
	if _, ok := a.Component.User(); ok {
		t.Fatalf("expected addr component not to report a user")
	}
}
