package domain

import "github.com/google/uuid"

type TopicKind uint8

const (
	TopicGroup TopicKind = iota + 1
)

// Topic identifica um destino de broadcast. Hoje só existe grupo.
type Topic struct {
	Kind TopicKind
	ID   uuid.UUID
}

func GroupTopic(id uuid.UUID) Topic {
	return Topic{Kind: TopicGroup, ID: id}
}

func (t Topic) String() string {
	switch t.Kind {
	case TopicGroup:
		return "group:" + t.ID.String()
	default:
		return "unknown:" + t.ID.String()
	}
}

// AppendKey implementa keyed.Hashable.
func (t Topic) AppendKey(b []byte) []byte {
	b = append(b, byte(t.Kind))
	return append(b, t.ID[:]...)
}
