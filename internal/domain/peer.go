package domain

import (
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// Role - роль стороны в паре при согласовании
type Role int

const (
	RoleCaller Role = iota
	RoleCallee
)

func (r Role) String() string {
	if r == RoleCaller {
		return "caller"
	}

	return "callee"
}

// NegotiationState - состояние согласования PeerSession
type NegotiationState int

const (
	StateIdle NegotiationState = iota
	StateLocalOfferSent
	StateRemoteOfferReceived
	StateAnswerSent
	StateConnected
	StateClosed
)

var stateNames = [...]string{
	StateIdle:                "idle",
	StateLocalOfferSent:      "local_offer_sent",
	StateRemoteOfferReceived: "remote_offer_received",
	StateAnswerSent:          "answer_sent",
	StateConnected:           "connected",
	StateClosed:              "closed",
}

func (s NegotiationState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}

	return "unknown"
}

// PeerSession - соединение с одним удалённым участником
type PeerSession struct {
	PeerID uuid.UUID
	Role   Role
	State  NegotiationState
	Conn   PeerConnection
	Remote *RemoteStream

	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

func NewPeerSession(peerID uuid.UUID, role Role, conn PeerConnection) *PeerSession {
	return &PeerSession{
		PeerID: peerID,
		Role:   role,
		State:  StateIdle,
		Conn:   conn,
	}
}

// RemoteDescriptionSet сообщает, применено ли удалённое описание
func (s *PeerSession) RemoteDescriptionSet() bool {
	return s.remoteSet
}

// MarkRemoteDescriptionSet отмечает применённое описание и отдаёт накопленные кандидаты в порядке поступления
func (s *PeerSession) MarkRemoteDescriptionSet() []webrtc.ICECandidateInit {
	s.remoteSet = true

	queued := s.pending
	s.pending = nil

	return queued
}

// QueueCandidate откладывает кандидата до применения удалённого описания
func (s *PeerSession) QueueCandidate(c webrtc.ICECandidateInit) {
	s.pending = append(s.pending, c)
}

func (s *PeerSession) PendingCandidates() int {
	return len(s.pending)
}

func (s *PeerSession) Closed() bool {
	return s.State == StateClosed
}
