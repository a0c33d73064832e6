package models

import (
	"time"

	"github.com/google/uuid"
)

type MembershipKind string

const (
	MembershipJoin       MembershipKind = "join"
	MembershipLeave      MembershipKind = "leave"
	MembershipDisconnect MembershipKind = "disconnect"
)

// MembershipEvent - факт изменения состава комнаты
type MembershipEvent struct {
	RoomID       string         `json:"room_id" db:"room_id"`
	ConnectionID uuid.UUID      `json:"connection_id" db:"connection_id"`
	Identity     string         `json:"identity" db:"identity"`
	Kind         MembershipKind `json:"kind" db:"kind"`
	OccurredAt   time.Time      `json:"occurred_at" db:"occurred_at"`
}

func NewMembershipEvent(roomID string, p Participant, kind MembershipKind) MembershipEvent {
	return MembershipEvent{
		RoomID:       roomID,
		ConnectionID: p.ConnectionID,
		Identity:     p.Identity,
		Kind:         kind,
		OccurredAt:   time.Now(),
	}
}
