package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/qrave1/MeshRoom/internal/application/constant"
	"github.com/qrave1/MeshRoom/internal/domain/events"
	"github.com/qrave1/MeshRoom/internal/domain/models"
	"github.com/qrave1/MeshRoom/internal/infra/adapters/memory"
)

const (
	defaultIdentity = "guest"
	maxIdentityLen  = 64
)

// RoomUsecase ведёт состав комнат и рассылает его участникам
type RoomUsecase interface {
	Join(ctx context.Context, connID uuid.UUID, joinEvent events.JoinEvent) error
	Leave(ctx context.Context, connID uuid.UUID, roomID string) error

	// Disconnect убирает соединение из всех комнат. Вызывается при закрытии канала.
	Disconnect(ctx context.Context, connID uuid.UUID)

	Rooms(ctx context.Context) []models.RoomInfo
	Room(ctx context.Context, roomID string) (models.RoomInfo, bool)
}

type roomUsecase struct {
	roomRepo memory.RoomRepository
	wsRepo   memory.WebsocketConnectionRepository

	observer MembershipObserver
}

func NewRoomUsecase(
	roomRepo memory.RoomRepository,
	wsRepo memory.WebsocketConnectionRepository,
	observer MembershipObserver,
) RoomUsecase {
	return &roomUsecase{
		roomRepo: roomRepo,
		wsRepo:   wsRepo,
		observer: observer,
	}
}

func (r *roomUsecase) Join(ctx context.Context, connID uuid.UUID, joinEvent events.JoinEvent) error {
	roomID := strings.TrimSpace(joinEvent.RoomID)
	if roomID == "" {
		return ErrEmptyRoomID
	}

	// соединение состоит не более чем в одной комнате
	for _, prev := range r.roomRepo.RoomsOf(connID) {
		if prev == roomID {
			continue
		}

		r.remove(ctx, prev, connID, models.MembershipLeave)
	}

	participant := models.Participant{
		ConnectionID: connID,
		Identity:     normalizeIdentity(joinEvent.Identity),
	}

	var broadcastErr error

	participant = r.roomRepo.Upsert(roomID, participant, func(roomID string, members []models.Participant) {
		broadcastErr = r.broadcastMembers(members)
	})

	slog.Info(
		"Participant joined room",
		slog.String(constant.RoomID, roomID),
		slog.Any(constant.ConnectionID, connID),
		slog.String(constant.Identity, participant.Identity),
	)

	r.observe(ctx, models.NewMembershipEvent(roomID, participant, models.MembershipJoin))

	if broadcastErr != nil {
		return fmt.Errorf("broadcast room users: %w", broadcastErr)
	}

	return nil
}

func (r *roomUsecase) Leave(ctx context.Context, connID uuid.UUID, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return ErrEmptyRoomID
	}

	r.remove(ctx, roomID, connID, models.MembershipLeave)

	return nil
}

func (r *roomUsecase) Disconnect(ctx context.Context, connID uuid.UUID) {
	for _, roomID := range r.roomRepo.RoomsOf(connID) {
		r.remove(ctx, roomID, connID, models.MembershipDisconnect)
	}
}

func (r *roomUsecase) Rooms(_ context.Context) []models.RoomInfo {
	return r.roomRepo.List()
}

func (r *roomUsecase) Room(_ context.Context, roomID string) (models.RoomInfo, bool) {
	members, ok := r.roomRepo.Members(roomID)
	if !ok {
		return models.RoomInfo{}, false
	}

	return models.RoomInfo{ID: roomID, Participants: members}, true
}

func (r *roomUsecase) remove(ctx context.Context, roomID string, connID uuid.UUID, kind models.MembershipKind) {
	removed, ok := r.roomRepo.Remove(roomID, connID, func(roomID string, members []models.Participant) {
		r.broadcastUserLeft(members, connID)

		if err := r.broadcastMembers(members); err != nil {
			slog.Error("broadcast room users", slog.String(constant.RoomID, roomID), slog.Any(constant.Error, err))
		}
	})
	if !ok {
		return
	}

	slog.Info(
		"Participant left room",
		slog.String(constant.RoomID, roomID),
		slog.Any(constant.ConnectionID, connID),
		slog.String(constant.Kind, string(kind)),
	)

	r.observe(ctx, models.NewMembershipEvent(roomID, removed, kind))
}

// broadcastMembers кодирует список один раз и ставит его в очередь каждому участнику
func (r *roomUsecase) broadcastMembers(members []models.Participant) error {
	msg, err := events.New(events.TypeRoomUsers, events.RoomUsersEvent{Participants: members})
	if err != nil {
		return err
	}

	return r.fanOut(members, msg)
}

func (r *roomUsecase) broadcastUserLeft(members []models.Participant, connID uuid.UUID) {
	msg, err := events.New(events.TypeUserLeft, events.UserLeftEvent{ConnectionID: connID})
	if err != nil {
		slog.Error("build user-left event", slog.Any(constant.Error, err))
		return
	}

	if err = r.fanOut(members, msg); err != nil {
		slog.Error("broadcast user-left", slog.Any(constant.Error, err))
	}
}

func (r *roomUsecase) fanOut(members []models.Participant, msg *events.Message) error {
	data, err := marshalMessage(msg)
	if err != nil {
		return err
	}

	for _, member := range members {
		r.wsRepo.WriteRaw(member.ConnectionID, data)
	}

	return nil
}

func (r *roomUsecase) observe(ctx context.Context, ev models.MembershipEvent) {
	if r.observer == nil {
		return
	}

	if err := r.observer.Observe(ctx, ev); err != nil {
		slog.Warn("observe membership event", slog.Any(constant.Error, err))
	}
}

func normalizeIdentity(identity string) string {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return defaultIdentity
	}

	if utf8.RuneCountInString(identity) > maxIdentityLen {
		identity = string([]rune(identity)[:maxIdentityLen])
	}

	return identity
}
