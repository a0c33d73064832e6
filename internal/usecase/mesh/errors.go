package mesh

import "errors"

var (
	ErrMediaAcquisition = errors.New("local media acquisition failed")
	ErrDescription      = errors.New("session description rejected")
	ErrCandidate        = errors.New("ice candidate rejected")
	ErrNoLocalMedia     = errors.New("local media not acquired")
	ErrNotJoined        = errors.New("not joined to a room")
	ErrInboundClosed    = errors.New("signaling channel closed")
	ErrEmptyRoomID      = errors.New("room id is required")
	ErrUnsupportedEmoji = errors.New("unsupported reaction emoji")
)
