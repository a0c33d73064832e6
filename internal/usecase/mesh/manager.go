package mesh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/MeshRoom/internal/application/constant"
	"github.com/qrave1/MeshRoom/internal/domain"
	"github.com/qrave1/MeshRoom/internal/domain/events"
	"github.com/qrave1/MeshRoom/internal/domain/models"
)

const localEventBuffer = 128

type localEventKind int

const (
	localCandidate localEventKind = iota
	localTrack
)

// localEvent - колбэк pion, переданный в цикл обработки
type localEvent struct {
	kind      localEventKind
	session   *domain.PeerSession
	candidate webrtc.ICECandidateInit
	stream    domain.RemoteStream
}

type Option func(*Manager)

func WithReactionTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.feed = NewFeed(ttl)
	}
}

// SessionInfo - снимок PeerSession для отображения и тестов
type SessionInfo struct {
	PeerID            uuid.UUID
	Role              domain.Role
	State             domain.NegotiationState
	HasStream         bool
	PendingCandidates int
}

// Manager держит по одной PeerSession на каждого удалённого участника комнаты
// и ведёт согласование offer/answer/ice. Всё состояние меняется под mu
// из цикла Run или из публичных методов.
type Manager struct {
	media     domain.MediaCapability
	signaler  Signaler
	presenter Presenter
	feed      *Feed
	capture   *localCapture

	local    chan localEvent
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	selfID   uuid.UUID
	identity string
	roomID   string
	members  []models.Participant
	sessions map[uuid.UUID]*domain.PeerSession
}

func NewManager(
	media domain.MediaCapability,
	signaler Signaler,
	presenter Presenter,
	opts ...Option,
) *Manager {
	m := &Manager{
		media:     media,
		signaler:  signaler,
		presenter: presenter,
		feed:      NewFeed(DefaultReactionTTL),
		capture:   &localCapture{media: media},
		local:     make(chan localEvent, localEventBuffer),
		done:      make(chan struct{}),
		sessions:  make(map[uuid.UUID]*domain.PeerSession),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Run - цикл обработки входящих сигнальных сообщений и локальных событий pion.
// При любом выходе выполняется LeaveRoom.
func (m *Manager) Run(ctx context.Context, inbound <-chan *events.Message) error {
	defer func() {
		m.stopOnce.Do(func() { close(m.done) })

		if err := m.LeaveRoom(context.WithoutCancel(ctx)); err != nil {
			slog.Debug("leave room on shutdown", slog.Any(constant.Error, err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-inbound:
			if !ok {
				return ErrInboundClosed
			}

			if err := m.Dispatch(ctx, msg); err != nil {
				slog.Warn(
					"dispatch signaling message",
					slog.String(constant.MessageType, msg.Type),
					slog.Any(constant.Error, err),
				)
			}

		case ev := <-m.local:
			m.handleLocal(ev)
		}
	}
}

// Dispatch обрабатывает одно сообщение сервера.
// Ошибки описаний и кандидатов не фатальны: сессия остаётся в прежнем состоянии.
func (m *Manager) Dispatch(ctx context.Context, msg *events.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch msg.Type {
	case events.TypeConnected:
		var ev events.ConnectedEvent
		if err := msg.Decode(&ev); err != nil {
			return err
		}

		m.selfID = ev.ConnectionID
		slog.Info("Connected to signaling server", slog.Any(constant.ConnectionID, m.selfID))

	case events.TypeRoomUsers:
		var ev events.RoomUsersEvent
		if err := msg.Decode(&ev); err != nil {
			return err
		}

		m.reconcile(ctx, ev.Participants)

	case events.TypeUserLeft:
		var ev events.UserLeftEvent
		if err := msg.Decode(&ev); err != nil {
			return err
		}

		m.closeSession(ev.ConnectionID, true)

	case events.TypeOffer:
		var ev events.DirectedEvent
		if err := msg.Decode(&ev); err != nil {
			return fmt.Errorf("%w: %w", ErrDescription, err)
		}

		return m.handleOffer(ctx, ev)

	case events.TypeAnswer:
		var ev events.DirectedEvent
		if err := msg.Decode(&ev); err != nil {
			return fmt.Errorf("%w: %w", ErrDescription, err)
		}

		return m.handleAnswer(ev)

	case events.TypeCandidate:
		var ev events.DirectedEvent
		if err := msg.Decode(&ev); err != nil {
			return fmt.Errorf("%w: %w", ErrCandidate, err)
		}

		return m.handleCandidate(ev)

	case events.TypeChatMessage:
		var ev events.ChatEvent
		if err := msg.Decode(&ev); err != nil {
			return err
		}

		if m.roomID == "" {
			return nil
		}

		entry := m.feed.AddChat(models.ChatEntry{
			OriginID:     ev.OriginID,
			FromIdentity: ev.FromIdentity,
			Message:      ev.Message,
		})
		m.presenter.OnChatMessage(entry)

	case events.TypeReaction:
		var ev events.ReactionEvent
		if err := msg.Decode(&ev); err != nil {
			return err
		}

		if m.roomID == "" || !models.IsSupportedEmoji(ev.Emoji) {
			return nil
		}

		m.presenter.OnReaction(m.feed.AddReaction(ev.Emoji, ev.OriginID))

	case events.TypeError:
		var ev events.ErrorEvent
		if err := msg.Decode(&ev); err != nil {
			return err
		}

		slog.Warn("Server rejected message", slog.String(constant.Reason, ev.Message))

	default:
		slog.Debug("unknown message type", slog.String(constant.MessageType, msg.Type))
	}

	return nil
}

// JoinRoom отправляет заявку на вход. При смене комнаты сначала выходит из текущей.
func (m *Manager) JoinRoom(_ context.Context, identity, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return ErrEmptyRoomID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.roomID != "" && m.roomID != roomID {
		if err := m.leave(); err != nil {
			slog.Warn("leave previous room", slog.Any(constant.Error, err))
		}
	}

	m.identity = identity
	m.roomID = roomID

	return m.send(events.TypeJoin, events.JoinEvent{Identity: identity, RoomID: roomID})
}

// LeaveRoom закрывает все сессии, освобождает захват и сообщает серверу о выходе.
// Безопасен при пустом состоянии.
func (m *Manager) LeaveRoom(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.leave()
}

func (m *Manager) SendChat(_ context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.roomID == "" {
		return ErrNotJoined
	}

	if err := m.send(events.TypeChatMessage, events.ChatEvent{RoomID: m.roomID, Message: text}); err != nil {
		return err
	}

	entry := m.feed.AddChat(models.ChatEntry{
		OriginID:     m.selfID,
		FromIdentity: m.identity,
		Message:      text,
		Own:          true,
	})
	m.presenter.OnChatMessage(entry)

	return nil
}

func (m *Manager) SendReaction(_ context.Context, emoji string) error {
	if !models.IsSupportedEmoji(emoji) {
		return fmt.Errorf("send reaction %q: %w", emoji, ErrUnsupportedEmoji)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.roomID == "" {
		return ErrNotJoined
	}

	if err := m.send(events.TypeReaction, events.ReactionEvent{RoomID: m.roomID, Emoji: emoji}); err != nil {
		return err
	}

	m.presenter.OnReaction(m.feed.AddReaction(emoji, m.selfID))

	return nil
}

// ToggleVideo включает или выключает локальное видео для всех участников сразу, без пересогласования
func (m *Manager) ToggleVideo() (bool, error) {
	return m.toggle(domain.MediaKindVideo)
}

func (m *Manager) ToggleAudio() (bool, error) {
	return m.toggle(domain.MediaKindAudio)
}

func (m *Manager) toggle(kind domain.MediaKind) (bool, error) {
	local := m.capture.current()
	if local == nil {
		return false, ErrNoLocalMedia
	}

	enabled := !local.Enabled(kind)
	local.SetEnabled(kind, enabled)

	return enabled, nil
}

func (m *Manager) Feed() *Feed {
	return m.feed
}

func (m *Manager) SelfID() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.selfID
}

func (m *Manager) RoomID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.roomID
}

func (m *Manager) Participants() []models.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.members)
}

func (m *Manager) Sessions() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]SessionInfo, 0, len(m.sessions))
	for _, sess := range m.sessions {
		list = append(list, SessionInfo{
			PeerID:            sess.PeerID,
			Role:              sess.Role,
			State:             sess.State,
			HasStream:         sess.Remote != nil,
			PendingCandidates: sess.PendingCandidates(),
		})
	}

	slices.SortFunc(list, func(a, b SessionInfo) int {
		return strings.Compare(a.PeerID.String(), b.PeerID.String())
	})

	return list
}

func (m *Manager) leave() error {
	m.closeAll(false)

	if err := m.capture.release(); err != nil {
		slog.Warn("release local media", slog.Any(constant.Error, err))
	}

	m.feed.Reset()
	m.members = nil

	roomID := m.roomID
	m.roomID = ""

	if roomID == "" {
		return nil
	}

	slog.Info("Leaving room", slog.String(constant.RoomID, roomID))

	return m.send(events.TypeLeave, events.LeaveEvent{RoomID: roomID})
}

// abortJoin - захват медиа не удался: показываем ошибку и выходим из комнаты до повторного JoinRoom
func (m *Manager) abortJoin(err error) {
	slog.Error("acquire local media", slog.String(constant.RoomID, m.roomID), slog.Any(constant.Error, err))

	m.presenter.OnError(err)

	if leaveErr := m.leave(); leaveErr != nil {
		slog.Warn("leave room after media failure", slog.Any(constant.Error, leaveErr))
	}
}

func (m *Manager) send(msgType string, payload any) error {
	msg, err := events.New(msgType, payload)
	if err != nil {
		return err
	}

	if err = m.signaler.Send(msg); err != nil {
		return fmt.Errorf("send %s: %w", msgType, err)
	}

	return nil
}

func (m *Manager) post(ev localEvent) {
	select {
	case m.local <- ev:
	case <-m.done:
	}
}

func (m *Manager) handleLocal(ev localEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	peerID := ev.session.PeerID

	// событие от уже закрытой или заменённой сессии
	if cur, ok := m.sessions[peerID]; !ok || cur != ev.session || cur.Closed() {
		return
	}

	switch ev.kind {
	case localCandidate:
		if err := m.sendDirected(events.TypeCandidate, peerID, ev.candidate); err != nil {
			slog.Warn("send ice candidate", slog.Any(constant.PeerID, peerID), slog.Any(constant.Error, err))
		}

	case localTrack:
		sess := ev.session
		if sess.Remote != nil && sess.Remote.StreamID == ev.stream.StreamID {
			return
		}

		stream := ev.stream
		sess.Remote = &stream
		sess.State = domain.StateConnected

		slog.Info(
			"Remote stream attached",
			slog.Any(constant.PeerID, peerID),
			slog.String(constant.Kind, string(stream.Kind)),
		)

		m.presenter.OnRemoteStream(peerID, stream)
	}
}

func isMediaFailure(err error) bool {
	return errors.Is(err, ErrMediaAcquisition)
}
