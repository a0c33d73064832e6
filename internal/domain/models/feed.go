package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatEntry - сообщение чата в локальной ленте
type ChatEntry struct {
	OriginID     uuid.UUID
	FromIdentity string
	Message      string
	Own          bool
	At           time.Time
}

// Reaction - эмодзи, который живёт на экране ограниченное время
type Reaction struct {
	ID        uuid.UUID
	Emoji     string
	OriginID  uuid.UUID
	ExpiresAt time.Time
}

// SupportedEmoji - реакции, которые принимает сервер
var SupportedEmoji = []string{"👍", "❤️", "😂", "🎉", "🔥"}

func IsSupportedEmoji(emoji string) bool {
	for _, e := range SupportedEmoji {
		if e == emoji {
			return true
		}
	}

	return false
}
