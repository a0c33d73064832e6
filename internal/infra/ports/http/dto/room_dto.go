package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/MeshRoom/internal/domain/models"
)

type ParticipantResponse struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	Identity     string    `json:"identity"`
	JoinOrder    uint64    `json:"join_order"`
}

type RoomResponse struct {
	ID           string                `json:"id"`
	Participants []ParticipantResponse `json:"participants"`
}

func NewRoomResponseFromModel(room models.RoomInfo) RoomResponse {
	resp := RoomResponse{
		ID:           room.ID,
		Participants: make([]ParticipantResponse, 0, len(room.Participants)),
	}

	for _, p := range room.Participants {
		resp.Participants = append(resp.Participants, ParticipantResponse{
			ConnectionID: p.ConnectionID,
			Identity:     p.Identity,
			JoinOrder:    p.JoinOrder,
		})
	}

	return resp
}

type ListRoomsResponse struct {
	Rooms []RoomResponse `json:"rooms"`
}

type MembershipEventResponse struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	Identity     string    `json:"identity"`
	Kind         string    `json:"kind"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type RoomHistoryResponse struct {
	RoomID string                    `json:"room_id"`
	Events []MembershipEventResponse `json:"events"`
}

func NewRoomHistoryResponse(roomID string, list []models.MembershipEvent) RoomHistoryResponse {
	resp := RoomHistoryResponse{
		RoomID: roomID,
		Events: make([]MembershipEventResponse, 0, len(list)),
	}

	for _, ev := range list {
		resp.Events = append(resp.Events, MembershipEventResponse{
			ConnectionID: ev.ConnectionID,
			Identity:     ev.Identity,
			Kind:         string(ev.Kind),
			OccurredAt:   ev.OccurredAt,
		})
	}

	return resp
}
