package infra

import (
	"context"
	"sync"
	"time"

	"taqui-realtime/keyed"
	"taqui-realtime/realtime/domain"

	"github.com/google/uuid"
)

// MemoryMessages guarda mensagens em memória, por grupo. Serve ao binário de
// demonstração e aos testes; em produção a persistência é SQL.
type MemoryMessages struct {
	groups *keyed.Map[domain.Topic, *groupLog]
	now    func() time.Time
}

type groupLog struct {
	mu       sync.Mutex
	messages map[uuid.UUID]domain.Message
}

func NewMemoryMessages(now func() time.Time) *MemoryMessages {
	if now == nil {
		now = time.Now
	}
	return &MemoryMessages{groups: keyed.New[domain.Topic, *groupLog](), now: now}
}

func (s *MemoryMessages) log(groupID uuid.UUID) *groupLog {
	g, _ := s.groups.GetOrInsert(domain.GroupTopic(groupID), func() *groupLog {
		return &groupLog{messages: make(map[uuid.UUID]domain.Message)}
	})
	return g
}

func (s *MemoryMessages) Create(_ context.Context, userID, groupID uuid.UUID, content string) (domain.Message, error) {
	m := domain.Message{
		ID:        uuid.New(),
		UserID:    userID,
		GroupID:   groupID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	g := s.log(groupID)
	g.mu.Lock()
	g.messages[m.ID] = m
	g.mu.Unlock()
	return m, nil
}

func (s *MemoryMessages) Get(_ context.Context, groupID, messageID uuid.UUID) (domain.Message, error) {
	g, ok := s.groups.Get(domain.GroupTopic(groupID))
	if !ok {
		return domain.Message{}, domain.ErrUnknownMessage
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.messages[messageID]
	if !ok {
		return domain.Message{}, domain.ErrUnknownMessage
	}
	return m, nil
}

func (s *MemoryMessages) Edit(_ context.Context, groupID, messageID uuid.UUID, content string) (domain.Message, error) {
	g, ok := s.groups.Get(domain.GroupTopic(groupID))
	if !ok {
		return domain.Message{}, domain.ErrUnknownMessage
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.messages[messageID]
	if !ok {
		return domain.Message{}, domain.ErrUnknownMessage
	}
	now := s.now().UTC()
	m.Content = content
	m.UpdatedAt = &now
	g.messages[messageID] = m
	return m, nil
}

func (s *MemoryMessages) Delete(_ context.Context, groupID, messageID uuid.UUID) error {
	g, ok := s.groups.Get(domain.GroupTopic(groupID))
	if !ok {
		return domain.ErrUnknownMessage
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.messages[messageID]; !ok {
		return domain.ErrUnknownMessage
	}
	delete(g.messages, messageID)
	return nil
}
