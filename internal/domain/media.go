package domain

import (
	"context"

	"github.com/pion/webrtc/v4"
)

type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
)

// RemoteStream - входящий медиапоток от удалённого участника
type RemoteStream struct {
	StreamID string
	TrackID  string
	Kind     MediaKind
}

// LocalMedia - локальный захват, общий для всех PeerSession
type LocalMedia interface {
	SetEnabled(kind MediaKind, enabled bool)
	Enabled(kind MediaKind) bool
	Close() error
}

// PeerConnection - соединение с одним удалённым участником.
// Колбэки могут вызываться из чужих горутин.
type PeerConnection interface {
	AddTracks(media LocalMedia) error
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	OnICECandidate(fn func(webrtc.ICECandidateInit))
	OnTrack(fn func(RemoteStream))
	Close() error
}

// MediaCapability - топология медиа. Реализация mesh создаёт прямое соединение на каждого участника.
type MediaCapability interface {
	AcquireLocalMedia(ctx context.Context) (LocalMedia, error)
	NewPeerConnection() (PeerConnection, error)
}
