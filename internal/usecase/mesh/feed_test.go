package mesh

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/MeshRoom/internal/domain/models"
)

func TestFeed_ReactionExpires(t *testing.T) {
	feed := NewFeed(30 * time.Millisecond)

	origin := uuid.New()
	r := feed.AddReaction("🎉", origin)

	assert.Equal(t, "🎉", r.Emoji)
	assert.Equal(t, origin, r.OriginID)
	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.WithinDuration(t, time.Now().Add(30*time.Millisecond), r.ExpiresAt, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(feed.Reactions()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestFeed_ReactionsExpireIndependently(t *testing.T) {
	feed := NewFeed(200 * time.Millisecond)

	first := feed.AddReaction("👍", uuid.New())
	time.Sleep(100 * time.Millisecond)
	second := feed.AddReaction("🔥", uuid.New())

	require.Eventually(t, func() bool {
		reactions := feed.Reactions()
		return len(reactions) == 1 && reactions[0].ID == second.ID
	}, time.Second, 5*time.Millisecond)

	assert.NotEqual(t, first.ID, second.ID)

	require.Eventually(t, func() bool {
		return len(feed.Reactions()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestFeed_ChatAndReset(t *testing.T) {
	feed := NewFeed(time.Hour)

	entry := feed.AddChat(models.ChatEntry{FromIdentity: "A", Message: "hi"})
	assert.False(t, entry.At.IsZero())

	feed.AddChat(models.ChatEntry{FromIdentity: "B", Message: "yo"})
	feed.AddReaction("❤️", uuid.New())

	chat := feed.Chat()
	require.Len(t, chat, 2)
	assert.Equal(t, "hi", chat[0].Message)
	assert.Equal(t, "yo", chat[1].Message)

	chat[0].Message = "mutated"
	assert.Equal(t, "hi", feed.Chat()[0].Message)

	feed.Reset()

	assert.Empty(t, feed.Chat())
	assert.Empty(t, feed.Reactions())
}

func TestFeed_DefaultTTL(t *testing.T) {
	feed := NewFeed(0)
	assert.Equal(t, DefaultReactionTTL, feed.ttl)
}
