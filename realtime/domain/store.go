package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUnknownGroup   = errors.New("unknown group")
	ErrUnknownMessage = errors.New("unknown message")
)

// MessageStore é a persistência de mensagens, fora deste módulo.
// Os handlers só precisam dela para devolver a mensagem que vão anunciar.
type MessageStore interface {
	Create(ctx context.Context, userID, groupID uuid.UUID, content string) (Message, error)
	Get(ctx context.Context, groupID, messageID uuid.UUID) (Message, error)
	Edit(ctx context.Context, groupID, messageID uuid.UUID, content string) (Message, error)
	Delete(ctx context.Context, groupID, messageID uuid.UUID) error
}

// Membership responde se o usuário participa do grupo. Deve devolver
// ErrUnknownGroup quando o grupo não existe ou o usuário não é membro.
type Membership interface {
	CheckMember(ctx context.Context, userID, groupID uuid.UUID) error
}
