package usecase

import "errors"

var (
	ErrEmptyRoomID      = errors.New("room id is required")
	ErrMissingTarget    = errors.New("target connection is required")
	ErrUnsupportedType  = errors.New("unsupported message type")
	ErrNotRoomMember    = errors.New("sender is not a member of the room")
	ErrEmptyMessage     = errors.New("empty chat message")
	ErrUnsupportedEmoji = errors.New("unsupported reaction emoji")
)
