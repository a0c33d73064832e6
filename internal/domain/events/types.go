package events

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/qrave1/MeshRoom/internal/domain/models"
)

// Типы сообщений сигнального канала
const (
	TypeConnected   = "connected"
	TypeError       = "error"
	TypeJoin        = "room:join"
	TypeLeave       = "leave-room"
	TypeRoomUsers   = "room-users"
	TypeUserLeft    = "user-left"
	TypeOffer       = "webrtc-offer"
	TypeAnswer      = "webrtc-answer"
	TypeCandidate   = "ice-candidate"
	TypeChatMessage = "chat-message"
	TypeReaction    = "reaction"
)

// Message - общее событие
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// New собирает Message с сериализованным payload
func New(msgType string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}

	return &Message{Type: msgType, Data: data}, nil
}

// Decode разбирает Data в v
func (m *Message) Decode(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", m.Type, err)
	}

	return nil
}

// ConnectedEvent - первое сообщение сервера, содержит id соединения
type ConnectedEvent struct {
	ConnectionID uuid.UUID `json:"connectionId"`
}

// ErrorEvent - ответ сервера на некорректное сообщение
type ErrorEvent struct {
	Message string `json:"message"`
}

// JoinEvent - вход в комнату
type JoinEvent struct {
	Identity string `json:"identity"`
	RoomID   string `json:"roomId"`
}

// LeaveEvent - выход из комнаты
type LeaveEvent struct {
	RoomID string `json:"roomId"`
}

// RoomUsersEvent - полный упорядоченный список участников комнаты
type RoomUsersEvent struct {
	Participants []models.Participant `json:"participants"`
}

// UserLeftEvent - участник покинул комнату
type UserLeftEvent struct {
	ConnectionID uuid.UUID `json:"connectionId"`
}

// DirectedEvent - offer, answer или ice кандидат для конкретного соединения.
// Тела offer/answer/candidate сервер не разбирает.
type DirectedEvent struct {
	From      uuid.UUID       `json:"from,omitzero"`
	To        uuid.UUID       `json:"to,omitzero"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// ChatEvent - сообщение чата.
// От клиента приходит RoomID, клиенту уходят FromIdentity и OriginID.
type ChatEvent struct {
	RoomID       string    `json:"roomId,omitempty"`
	FromIdentity string    `json:"fromIdentity,omitempty"`
	OriginID     uuid.UUID `json:"originId,omitzero"`
	Message      string    `json:"message"`
}

// ReactionEvent - реакция эмодзи
type ReactionEvent struct {
	RoomID   string    `json:"roomId,omitempty"`
	OriginID uuid.UUID `json:"originId,omitzero"`
	Emoji    string    `json:"emoji"`
}

// IsDirected сообщает, адресуется ли сообщение конкретному соединению
func IsDirected(msgType string) bool {
	switch msgType {
	case TypeOffer, TypeAnswer, TypeCandidate:
		return true
	default:
		return false
	}
}
