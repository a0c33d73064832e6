package handlers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/MeshRoom/internal/application/config"
)

func iceServers(t *testing.T, cfg *config.Config) []webrtc.ICEServer {
	t.Helper()

	e := echo.New()
	e.GET("/api/v1/ice", NewIceHandler(cfg).IceServers)

	rec := get(e, "/api/v1/ice")
	require.Equal(t, http.StatusOK, rec.Code)

	var servers []webrtc.ICEServer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &servers))

	return servers
}

func assertRESTCredentials(t *testing.T, secret string, server webrtc.ICEServer) {
	t.Helper()

	expiresAt, err := strconv.ParseInt(server.Username, 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Add(turnCredentialTTL).Unix(), expiresAt, 5)

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(server.Username))
	assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), server.Credential)
}

func TestIceHandler_StunOnly(t *testing.T) {
	servers := iceServers(t, &config.Config{StunURL: "stun:stun.example.org:3478"})

	require.Len(t, servers, 1)
	assert.Equal(t, []string{"stun:stun.example.org:3478"}, servers[0].URLs)
	assert.Empty(t, servers[0].Username)
}

func TestIceHandler_CoturnStatic(t *testing.T) {
	cfg := &config.Config{
		StunURL: "stun:stun.example.org:3478",
		CoturnServer: config.CoturnConfig{
			Host:     "turn.example.org:3478",
			Username: "user",
			Password: "pass",
		},
	}

	servers := iceServers(t, cfg)
	require.Len(t, servers, 2)

	assert.Equal(t, cfg.CoturnServer.TurnURLs(), servers[1].URLs)
	assert.Equal(t, "user", servers[1].Username)
	assert.Equal(t, "pass", servers[1].Credential)
}

func TestIceHandler_TemporaryCredentials(t *testing.T) {
	cfg := &config.Config{
		StunURL: "stun:stun.example.org:3478",
		CoturnServer: config.CoturnConfig{
			Host:   "turn.example.org:3478",
			Secret: "coturn-secret",
		},
		Turn: config.TurnConfig{
			PublicIP: "203.0.113.10",
			Port:     3478,
			Secret:   "embedded-secret",
		},
	}

	servers := iceServers(t, cfg)
	require.Len(t, servers, 3)

	assert.Equal(t, cfg.CoturnServer.TurnURLs(), servers[1].URLs)
	assertRESTCredentials(t, "coturn-secret", servers[1])

	assert.Equal(t, []string{
		"turn:203.0.113.10:3478?transport=udp",
		"turn:203.0.113.10:3478?transport=tcp",
	}, servers[2].URLs)
	assertRESTCredentials(t, "embedded-secret", servers[2])
}
