package keyed

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Hashable é uma chave comparável que sabe se serializar em bytes estáveis.
// Dois valores iguais (==) devem produzir os mesmos bytes.
type Hashable interface {
	comparable
	AppendKey(b []byte) []byte
}

const defaultShards = 32

// Map é um mapa concorrente particionado em shards.
//
// Cada shard tem seu próprio RWMutex; chaves em shards diferentes nunca disputam
// o mesmo lock. O mapa protege apenas a pertinência (insert/delete): o valor
// guardado normalmente é um ponteiro para uma célula com sincronização própria.
type Map[K Hashable, V any] struct {
	shards []shard[K, V]
	mask   uint64
}

type shard[K Hashable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

type Option func(*options)

type options struct {
	shards int
}

// WithShards define a quantidade de shards (arredondada para potência de 2).
func WithShards(n int) Option {
	return func(o *options) { o.shards = n }
}

func New[K Hashable, V any](opts ...Option) *Map[K, V] {
	o := options{shards: defaultShards}
	for _, opt := range opts {
		opt(&o)
	}

	n := 1
	for n < o.shards {
		n <<= 1
	}

	m := &Map[K, V]{
		shards: make([]shard[K, V], n),
		mask:   uint64(n - 1),
	}
	for i := range m.shards {
		m.shards[i].entries = make(map[K]V)
	}
	return m
}

func (m *Map[K, V]) shardFor(k K) *shard[K, V] {
	var buf [64]byte
	h := xxhash.Sum64(k.AppendKey(buf[:0]))
	return &m.shards[h&m.mask]
}

// GetOrInsert retorna o valor da chave, criando-o com newFn se ainda não existir.
// newFn roda no máximo uma vez por inserção, com o lock do shard adquirido.
// loaded indica se o valor já existia.
func (m *Map[K, V]) GetOrInsert(k K, newFn func() V) (v V, loaded bool) {
	s := m.shardFor(k)

	s.mu.RLock()
	v, ok := s.entries[k]
	s.mu.RUnlock()
	if ok {
		return v, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// outra goroutine pode ter inserido entre o RUnlock e o Lock
	if v, ok := s.entries[k]; ok {
		return v, true
	}
	v = newFn()
	s.entries[k] = v
	return v, false
}

func (m *Map[K, V]) Get(k K) (V, bool) {
	s := m.shardFor(k)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[k]
	return v, ok
}

func (m *Map[K, V]) Delete(k K) {
	s := m.shardFor(k)
	s.mu.Lock()
	delete(s.entries, k)
	s.mu.Unlock()
}

// DeleteFunc remove as entradas para as quais fn retorna true e devolve quantas
// foram removidas. fn roda com o lock de escrita do shard.
func (m *Map[K, V]) DeleteFunc(fn func(K, V) bool) int {
	removed := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for k, v := range s.entries {
			if fn(k, v) {
				delete(s.entries, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Range percorre as entradas shard a shard até fn retornar false.
// Não é um snapshot: inserções concorrentes podem ou não aparecer.
func (m *Map[K, V]) Range(fn func(K, V) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		for k, v := range s.entries {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

func (m *Map[K, V]) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// String é um Hashable para quem só precisa de chaves string.
type String string

func (s String) AppendKey(b []byte) []byte { return append(b, s...) }
