package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"net/netip"
	"time"

	"github.com/google/uuid"
)

type componentKind uint8

const (
	componentUser componentKind = iota + 1
	componentAddr
)

// Component é a parte variável da chave: o id do usuário autenticado
// ou o endereço de rede de origem. O valor zero não é uma chave válida.
type Component struct {
	kind componentKind
	user uuid.UUID
	addr netip.Addr
}

func UserComponent(id uuid.UUID) Component {
	return Component{kind: componentUser, user: id}
}

// AddrComponent usa só o IP: a porta de origem muda a cada conexão.
func AddrComponent(addr netip.Addr) Component {
	return Component{kind: componentAddr, addr: addr.Unmap()}
}

func (c Component) User() (uuid.UUID, bool) { return c.user, c.kind == componentUser }

func (c Component) Addr() (netip.Addr, bool) { return c.addr, c.kind == componentAddr }

func (c Component) String() string {
	switch c.kind {
	case componentUser:
		return "user:" + c.user.String()
	case componentAddr:
		return "addr:" + c.addr.String()
	default:
		return "unknown"
	}
}

// Key identifica um bucket: o recurso protegido (namespace, ex. "auth", "messages")
// e o componente. Chaves são comparadas pelo valor completo.
type Key struct {
	Namespace string
	Component Component
}

func (k Key) String() string { return k.Namespace + ":" + k.Component.String() }

// AppendKey implementa keyed.Hashable.
func (k Key) AppendKey(b []byte) []byte {
	b = append(b, k.Namespace...)
	b = append(b, 0, byte(k.Component.kind))
	switch k.Component.kind {
	case componentUser:
		b = append(b, k.Component.user[:]...)
	case componentAddr:
		b, _ = k.Component.addr.AppendBinary(b)
	}
	return b
}

// BucketConfig é definido por recurso protegido, não por chave.
// Capacity=0 nunca admite; RefillRate=0 nunca recarrega.
type BucketConfig struct {
	Capacity   uint64 `yaml:"capacity"`
	RefillRate uint64 `yaml:"refill_rate"`
}

// Limiter decide se a chave pode consumir um token agora.
// Nunca bloqueia.
type Limiter interface {
	Acquire(key Key, cfg BucketConfig) bool
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
