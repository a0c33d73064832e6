package models

import (
	"github.com/google/uuid"
)

// Participant - участник комнаты, привязанный к одному websocket соединению
type Participant struct {
	ConnectionID uuid.UUID `json:"connectionId"`
	Identity     string    `json:"identity"`
	JoinOrder    uint64    `json:"joinOrder"`
}

// RoomInfo - снимок комнаты для HTTP API
type RoomInfo struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants"`
}

// Precedes сообщает, вошёл ли p в комнату раньше other.
// При равном JoinOrder сравниваются идентификаторы соединений.
func (p Participant) Precedes(other Participant) bool {
	if p.JoinOrder != other.JoinOrder {
		return p.JoinOrder < other.JoinOrder
	}

	return p.ConnectionID.String() < other.ConnectionID.String()
}
