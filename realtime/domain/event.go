package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Nomes dos eventos no campo "event" do JSON.
const (
	EventNewMessage    = "newMessage"
	EventEditMessage   = "editMessage"
	EventDeleteMessage = "deleteMessage"
	EventStartTyping   = "startTyping"
	EventEndTyping     = "endTyping"
)

// Event é um evento de domínio já pronto para serializar:
//
//	{"event": "newMessage", "data": {...}}
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

type Message struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"userId"`
	GroupID   uuid.UUID  `json:"groupId"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type DeleteMessagePayload struct {
	GroupID   uuid.UUID `json:"groupId"`
	MessageID uuid.UUID `json:"messageId"`
}

type TypingPayload struct {
	GroupID uuid.UUID `json:"groupId"`
	User    User      `json:"user"`
}

func NewMessage(m Message) Event  { return Event{Name: EventNewMessage, Data: m} }
func EditMessage(m Message) Event { return Event{Name: EventEditMessage, Data: m} }

func DeleteMessage(groupID, messageID uuid.UUID) Event {
	return Event{Name: EventDeleteMessage, Data: DeleteMessagePayload{GroupID: groupID, MessageID: messageID}}
}

func StartTyping(groupID uuid.UUID, u User) Event {
	return Event{Name: EventStartTyping, Data: TypingPayload{GroupID: groupID, User: u}}
}

func EndTyping(groupID uuid.UUID, u User) Event {
	return Event{Name: EventEndTyping, Data: TypingPayload{GroupID: groupID, User: u}}
}

// Publisher entrega eventos a um tópico. Send nunca bloqueia nem falha:
// quem não está inscrito simplesmente não recebe.
type Publisher interface {
	Send(ev Event, topic Topic)
}

// FrameName é o nome fixo de todo evento SSE do stream.
const FrameName = "taqui"

// KeepAliveText é o texto do comentário enviado em streams ociosos.
const KeepAliveText = "keep-alive"

// Frame é um evento já serializado, pronto para o transporte.
// KeepAlive marca o frame sintético de manutenção da conexão.
type Frame struct {
	Name      string
	Data      []byte
	KeepAlive bool
}

// EncodeFrame serializa o evento uma vez; o mesmo Frame vai para todos os receivers.
func EncodeFrame(ev Event) (Frame, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Name: FrameName, Data: data}, nil
}

func KeepAliveFrame() Frame {
	return Frame{Data: []byte(KeepAliveText), KeepAlive: true}
}
