package mesh

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/MeshRoom/internal/application/constant"
	"github.com/qrave1/MeshRoom/internal/domain"
	"github.com/qrave1/MeshRoom/internal/domain/events"
	"github.com/qrave1/MeshRoom/internal/domain/models"
)

// reconcile приводит набор сессий к снимку состава комнаты.
// Повторная обработка того же снимка ничего не меняет.
func (m *Manager) reconcile(ctx context.Context, participants []models.Participant) {
	if m.roomID == "" {
		return
	}

	m.members = slices.Clone(participants)
	m.presenter.OnMembershipChanged(slices.Clone(participants))

	if m.selfID == uuid.Nil {
		return
	}

	self, ok := m.member(m.selfID)
	if !ok {
		// нас уже нет в комнате
		m.closeAll(true)
		return
	}

	present := make(map[uuid.UUID]struct{}, len(participants))
	for _, p := range participants {
		present[p.ConnectionID] = struct{}{}
	}

	for peerID := range m.sessions {
		if _, ok := present[peerID]; !ok {
			m.closeSession(peerID, true)
		}
	}

	for _, p := range participants {
		if p.ConnectionID == m.selfID {
			continue
		}

		if _, ok := m.sessions[p.ConnectionID]; ok {
			continue
		}

		// вызывает тот, кто вошёл раньше, остальные ждут offer
		if !self.Precedes(p) {
			continue
		}

		if err := m.startCaller(ctx, p.ConnectionID); err != nil {
			if isMediaFailure(err) {
				m.abortJoin(err)
				return
			}

			slog.Warn("start negotiation", slog.Any(constant.PeerID, p.ConnectionID), slog.Any(constant.Error, err))
		}
	}
}

func (m *Manager) startCaller(ctx context.Context, peerID uuid.UUID) error {
	local, err := m.capture.acquire(ctx)
	if err != nil {
		return err
	}

	sess, err := m.openSession(peerID, domain.RoleCaller, local)
	if err != nil {
		return err
	}

	offer, err := sess.Conn.CreateOffer()
	if err != nil {
		m.closeSession(peerID, false)
		return fmt.Errorf("create offer: %w", err)
	}

	if err = sess.Conn.SetLocalDescription(offer); err != nil {
		m.closeSession(peerID, false)
		return fmt.Errorf("set local offer: %w", err)
	}

	sess.State = domain.StateLocalOfferSent

	return m.sendDirected(events.TypeOffer, peerID, offer)
}

func (m *Manager) handleOffer(ctx context.Context, ev events.DirectedEvent) error {
	peerID := ev.From
	if m.roomID == "" || peerID == uuid.Nil || peerID == m.selfID {
		return nil
	}

	var offer webrtc.SessionDescription
	if err := json.Unmarshal(ev.Offer, &offer); err != nil {
		return fmt.Errorf("%w: decode offer: %w", ErrDescription, err)
	}

	sess, exists := m.sessions[peerID]

	if exists && sess.State == domain.StateLocalOfferSent {
		if m.precedes(peerID) {
			slog.Debug("glare: keeping local offer", slog.Any(constant.PeerID, peerID))
			return nil
		}

		slog.Debug("glare: yielding to remote offer", slog.Any(constant.PeerID, peerID))
		m.closeSession(peerID, false)
		exists = false
	}

	if !exists {
		local, err := m.capture.acquire(ctx)
		if err != nil {
			m.abortJoin(err)
			return nil
		}

		sess, err = m.openSession(peerID, domain.RoleCallee, local)
		if err != nil {
			return err
		}
	}

	return m.answer(sess, offer, !exists)
}

// answer применяет offer и отвечает. При ошибке новая сессия удаляется,
// существующая возвращается в прежнее состояние.
func (m *Manager) answer(sess *domain.PeerSession, offer webrtc.SessionDescription, fresh bool) error {
	prev := sess.State

	rollback := func() {
		if fresh {
			m.closeSession(sess.PeerID, false)
			return
		}

		sess.State = prev
	}

	sess.State = domain.StateRemoteOfferReceived

	if err := sess.Conn.SetRemoteDescription(offer); err != nil {
		rollback()
		return fmt.Errorf("%w: apply offer: %w", ErrDescription, err)
	}

	m.flushCandidates(sess, sess.MarkRemoteDescriptionSet())

	answer, err := sess.Conn.CreateAnswer()
	if err != nil {
		rollback()
		return fmt.Errorf("%w: create answer: %w", ErrDescription, err)
	}

	if err = sess.Conn.SetLocalDescription(answer); err != nil {
		rollback()
		return fmt.Errorf("%w: set local answer: %w", ErrDescription, err)
	}

	if prev == domain.StateConnected {
		sess.State = domain.StateConnected
	} else {
		sess.State = domain.StateAnswerSent
	}

	return m.sendDirected(events.TypeAnswer, sess.PeerID, answer)
}

func (m *Manager) handleAnswer(ev events.DirectedEvent) error {
	sess, ok := m.sessions[ev.From]
	if !ok {
		slog.Debug("answer for unknown peer", slog.Any(constant.PeerID, ev.From))
		return nil
	}

	if sess.State != domain.StateLocalOfferSent {
		slog.Debug(
			"unexpected answer ignored",
			slog.Any(constant.PeerID, ev.From),
			slog.String(constant.State, sess.State.String()),
		)
		return nil
	}

	var answer webrtc.SessionDescription
	if err := json.Unmarshal(ev.Answer, &answer); err != nil {
		return fmt.Errorf("%w: decode answer: %w", ErrDescription, err)
	}

	if err := sess.Conn.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("%w: apply answer: %w", ErrDescription, err)
	}

	m.flushCandidates(sess, sess.MarkRemoteDescriptionSet())
	sess.State = domain.StateConnected

	return nil
}

func (m *Manager) handleCandidate(ev events.DirectedEvent) error {
	sess, ok := m.sessions[ev.From]
	if !ok {
		slog.Debug("candidate for unknown peer dropped", slog.Any(constant.PeerID, ev.From))
		return nil
	}

	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(ev.Candidate, &candidate); err != nil {
		return fmt.Errorf("%w: decode candidate: %w", ErrCandidate, err)
	}

	if !sess.RemoteDescriptionSet() {
		sess.QueueCandidate(candidate)
		return nil
	}

	if err := sess.Conn.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("%w: %w", ErrCandidate, err)
	}

	return nil
}

func (m *Manager) flushCandidates(sess *domain.PeerSession, queued []webrtc.ICECandidateInit) {
	for _, c := range queued {
		if err := sess.Conn.AddICECandidate(c); err != nil {
			slog.Warn("apply queued candidate", slog.Any(constant.PeerID, sess.PeerID), slog.Any(constant.Error, err))
		}
	}
}

func (m *Manager) openSession(peerID uuid.UUID, role domain.Role, local domain.LocalMedia) (*domain.PeerSession, error) {
	conn, err := m.media.NewPeerConnection()
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	if err = conn.AddTracks(local); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("add local tracks: %w", err)
	}

	sess := domain.NewPeerSession(peerID, role, conn)

	conn.OnICECandidate(func(c webrtc.ICECandidateInit) {
		m.post(localEvent{kind: localCandidate, session: sess, candidate: c})
	})
	conn.OnTrack(func(stream domain.RemoteStream) {
		m.post(localEvent{kind: localTrack, session: sess, stream: stream})
	})

	m.sessions[peerID] = sess

	slog.Debug("Peer session opened", slog.Any(constant.PeerID, peerID), slog.String("role", role.String()))

	return sess, nil
}

func (m *Manager) closeSession(peerID uuid.UUID, notify bool) {
	sess, ok := m.sessions[peerID]
	if !ok {
		return
	}

	delete(m.sessions, peerID)
	sess.State = domain.StateClosed

	if err := sess.Conn.Close(); err != nil {
		slog.Warn("close peer connection", slog.Any(constant.PeerID, peerID), slog.Any(constant.Error, err))
	}

	slog.Debug("Peer session closed", slog.Any(constant.PeerID, peerID))

	if notify {
		m.presenter.OnPeerRemoved(peerID)
	}
}

func (m *Manager) closeAll(notify bool) {
	for peerID := range m.sessions {
		m.closeSession(peerID, notify)
	}
}

func (m *Manager) sendDirected(msgType string, to uuid.UUID, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", msgType, err)
	}

	ev := events.DirectedEvent{To: to}

	switch msgType {
	case events.TypeOffer:
		ev.Offer = raw
	case events.TypeAnswer:
		ev.Answer = raw
	case events.TypeCandidate:
		ev.Candidate = raw
	}

	return m.send(msgType, ev)
}

func (m *Manager) member(connID uuid.UUID) (models.Participant, bool) {
	i := slices.IndexFunc(m.members, func(p models.Participant) bool {
		return p.ConnectionID == connID
	})
	if i < 0 {
		return models.Participant{}, false
	}

	return m.members[i], true
}

// precedes - локальная сторона должна быть Caller в паре с peerID.
// Сравнение всегда по снимку состава: Caller-сессия открывается только для участника из снимка,
// и снимок без него закрывает сессию. Если записи всё же нет, уступаем отправителю offer.
func (m *Manager) precedes(peerID uuid.UUID) bool {
	self, okSelf := m.member(m.selfID)
	peer, okPeer := m.member(peerID)

	if !okSelf || !okPeer {
		return false
	}

	return self.Precedes(peer)
}
