package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/qrave1/MeshRoom/internal/application/constant"
	"github.com/qrave1/MeshRoom/internal/application/metric"
	"github.com/qrave1/MeshRoom/internal/domain/events"
	"github.com/qrave1/MeshRoom/internal/domain/models"
	"github.com/qrave1/MeshRoom/internal/infra/adapters/memory"
)

const maxChatLen = 2000

// SignalingUsecase пересылает сообщения между соединениями.
// Доставка best-effort: без повторов и буферизации сверх очереди соединения.
type SignalingUsecase interface {
	// RelayDirected доставляет offer/answer/ice кандидата соединению ev.To.
	// Если получателя нет, сообщение молча отбрасывается.
	RelayDirected(ctx context.Context, from uuid.UUID, msgType string, ev events.DirectedEvent) error

	BroadcastChat(ctx context.Context, from uuid.UUID, ev events.ChatEvent) error
	BroadcastReaction(ctx context.Context, from uuid.UUID, ev events.ReactionEvent) error
}

type signalingUsecase struct {
	roomRepo memory.RoomRepository
	wsRepo   memory.WebsocketConnectionRepository
}

func NewSignalingUsecase(
	roomRepo memory.RoomRepository,
	wsRepo memory.WebsocketConnectionRepository,
) SignalingUsecase {
	return &signalingUsecase{
		roomRepo: roomRepo,
		wsRepo:   wsRepo,
	}
}

func (s *signalingUsecase) RelayDirected(
	_ context.Context,
	from uuid.UUID,
	msgType string,
	ev events.DirectedEvent,
) error {
	if !events.IsDirected(msgType) {
		return fmt.Errorf("relay %s: %w", msgType, ErrUnsupportedType)
	}

	if ev.To == uuid.Nil {
		return fmt.Errorf("relay %s: %w", msgType, ErrMissingTarget)
	}

	to := ev.To
	ev.From = from
	ev.To = uuid.Nil

	msg, err := events.New(msgType, ev)
	if err != nil {
		return err
	}

	data, err := marshalMessage(msg)
	if err != nil {
		return err
	}

	if !s.wsRepo.WriteRaw(to, data) {
		if !s.wsRepo.Has(to) {
			metric.IncRelayDropped(metric.DropStaleTarget)
		}

		slog.Debug(
			"Directed message dropped",
			slog.String(constant.MessageType, msgType),
			slog.Any(constant.ConnectionID, from),
			slog.Any(constant.PeerID, to),
		)
	}

	return nil
}

func (s *signalingUsecase) BroadcastChat(ctx context.Context, from uuid.UUID, ev events.ChatEvent) error {
	text := strings.TrimSpace(ev.Message)
	if text == "" {
		return ErrEmptyMessage
	}

	if utf8.RuneCountInString(text) > maxChatLen {
		text = string([]rune(text)[:maxChatLen])
	}

	sender, err := s.sender(ev.RoomID, from)
	if err != nil {
		return fmt.Errorf("broadcast chat: %w", err)
	}

	out := events.ChatEvent{
		FromIdentity: sender.Identity,
		OriginID:     from,
		Message:      text,
	}

	return s.broadcast(ctx, ev.RoomID, from, events.TypeChatMessage, out)
}

func (s *signalingUsecase) BroadcastReaction(ctx context.Context, from uuid.UUID, ev events.ReactionEvent) error {
	if !models.IsSupportedEmoji(ev.Emoji) {
		return fmt.Errorf("broadcast reaction %q: %w", ev.Emoji, ErrUnsupportedEmoji)
	}

	if _, err := s.sender(ev.RoomID, from); err != nil {
		return fmt.Errorf("broadcast reaction: %w", err)
	}

	out := events.ReactionEvent{
		OriginID: from,
		Emoji:    ev.Emoji,
	}

	return s.broadcast(ctx, ev.RoomID, from, events.TypeReaction, out)
}

func (s *signalingUsecase) sender(roomID string, from uuid.UUID) (models.Participant, error) {
	if strings.TrimSpace(roomID) == "" {
		return models.Participant{}, ErrEmptyRoomID
	}

	p, ok := s.roomRepo.Member(roomID, from)
	if !ok {
		metric.IncRelayDropped(metric.DropNotMember)
		return models.Participant{}, ErrNotRoomMember
	}

	return p, nil
}

// broadcast рассылает всем участникам комнаты, кроме отправителя: у него уже есть локальная копия
func (s *signalingUsecase) broadcast(
	_ context.Context,
	roomID string,
	from uuid.UUID,
	msgType string,
	payload any,
) error {
	members, ok := s.roomRepo.Members(roomID)
	if !ok {
		return nil
	}

	msg, err := events.New(msgType, payload)
	if err != nil {
		return err
	}

	data, err := marshalMessage(msg)
	if err != nil {
		return err
	}

	for _, member := range members {
		if member.ConnectionID == from {
			continue
		}

		s.wsRepo.WriteRaw(member.ConnectionID, data)
	}

	return nil
}

func marshalMessage(msg *events.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s message: %w", msg.Type, err)
	}

	return data, nil
}
