package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "9090", cfg.MetricPort)
	assert.Equal(t, 256, cfg.JournalBuffer)
	assert.Equal(t, 64, cfg.WebSocket.SendBuffer)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PingPeriod)
	assert.Equal(t, 60*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, int64(65536), cfg.WebSocket.MaxMessageSize)

	assert.False(t, cfg.Postgres.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.CoturnServer.Enabled())
	assert.False(t, cfg.Turn.Enabled())
}

func TestNew_FromEnv(t *testing.T) {
	t.Setenv("DEBUG", "true")
	t.Setenv("PORT", "8080")
	t.Setenv("WS_PING_PERIOD", "5s")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_NAME", "rooms")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_PRESENCE_TTL", "1h")
	t.Setenv("TURN_PUBLIC_IP", "203.0.113.10")
	t.Setenv("TURN_SECRET", "s3cret")

	cfg, err := New()
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.WebSocket.PingPeriod)

	require.True(t, cfg.Postgres.Enabled())
	assert.Equal(t, "postgresql://postgres:postgres@db:5432/rooms?sslmode=disable", cfg.Postgres.DSN())

	require.True(t, cfg.Redis.Enabled())
	assert.Equal(t, time.Hour, cfg.Redis.PresenceTTL)

	require.True(t, cfg.Turn.Enabled())
	assert.Equal(t, []string{
		"turn:203.0.113.10:3478?transport=udp",
		"turn:203.0.113.10:3478?transport=tcp",
	}, cfg.Turn.URLs())
}

func TestPostgresConfig_URLWins(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://u:p@host/db")
	t.Setenv("POSTGRES_HOST", "ignored")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@host/db", cfg.Postgres.DSN())
}

func TestNew_InvalidDuration(t *testing.T) {
	t.Setenv("WS_PONG_WAIT", "soon")

	_, err := New()
	require.Error(t, err)
}

func TestNewClient(t *testing.T) {
	t.Setenv("MESH_ROOM", "r1")
	t.Setenv("MESH_IDENTITY", "alice")
	t.Setenv("COTURN_HOST", "turn.example.org:3478")
	t.Setenv("COTURN_USERNAME", "u")
	t.Setenv("COTURN_PASSWORD", "p")

	cfg, err := NewClient()
	require.NoError(t, err)

	assert.Equal(t, "r1", cfg.RoomID)
	assert.Equal(t, "alice", cfg.Identity)
	assert.Equal(t, time.Second, cfg.ReactionTTL)
	assert.Equal(t, "ws://localhost:8000/api/v1/ws", cfg.ServerURL)

	servers := cfg.ICEServers()
	require.Len(t, servers, 2)
	assert.Equal(t, []string{cfg.StunURL}, servers[0].URLs)
	assert.Equal(t, cfg.CoturnServer.TurnURLs(), servers[1].URLs)
	assert.Equal(t, "u", servers[1].Username)
}
