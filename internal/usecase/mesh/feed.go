package mesh

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/MeshRoom/internal/domain/models"
)

const DefaultReactionTTL = time.Second

// Feed - локальная лента чата и реакций. Реакции удаляются сами по истечении ttl.
type Feed struct {
	ttl time.Duration

	mu        sync.Mutex
	chat      []models.ChatEntry
	reactions []models.Reaction
	timers    map[uuid.UUID]*time.Timer
}

func NewFeed(ttl time.Duration) *Feed {
	if ttl <= 0 {
		ttl = DefaultReactionTTL
	}

	return &Feed{
		ttl:    ttl,
		timers: make(map[uuid.UUID]*time.Timer),
	}
}

func (f *Feed) AddChat(entry models.ChatEntry) models.ChatEntry {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.chat = append(f.chat, entry)

	return entry
}

// AddReaction добавляет реакцию и планирует её удаление
func (f *Feed) AddReaction(emoji string, originID uuid.UUID) models.Reaction {
	r := models.Reaction{
		ID:        uuid.New(),
		Emoji:     emoji,
		OriginID:  originID,
		ExpiresAt: time.Now().Add(f.ttl),
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.reactions = append(f.reactions, r)
	f.timers[r.ID] = time.AfterFunc(f.ttl, func() {
		f.expire(r.ID)
	})

	return r
}

func (f *Feed) Chat() []models.ChatEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.chat)
}

func (f *Feed) Reactions() []models.Reaction {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.reactions)
}

// Reset очищает ленту и останавливает таймеры
func (f *Feed) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.timers {
		t.Stop()
	}

	f.timers = make(map[uuid.UUID]*time.Timer)
	f.chat = nil
	f.reactions = nil
}

func (f *Feed) expire(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.timers, id)
	f.reactions = slices.DeleteFunc(f.reactions, func(r models.Reaction) bool {
		return r.ID == id
	})
}
