package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pion/webrtc/v4"
)

// ClientConfig - настройки участника mesh (команда join)
type ClientConfig struct {
	Debug       bool          `env:"DEBUG" envDefault:"false"`
	ServerURL   string        `env:"MESH_SERVER_URL" envDefault:"ws://localhost:8000/api/v1/ws"`
	Identity    string        `env:"MESH_IDENTITY"`
	RoomID      string        `env:"MESH_ROOM"`
	ReactionTTL time.Duration `env:"MESH_REACTION_TTL" envDefault:"1s"`
	StunURL     string        `env:"STUN_URL" envDefault:"stun:stun.l.google.com:19302"`

	// Адреса UDP, с которых читается RTP для локальных дорожек (ffmpeg, gstreamer)
	AudioRTPAddr string `env:"MESH_AUDIO_RTP"`
	VideoRTPAddr string `env:"MESH_VIDEO_RTP"`

	CoturnServer CoturnConfig
}

func NewClient() (*ClientConfig, error) {
	c, err := env.ParseAs[ClientConfig]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return &c, nil
}

func (c *ClientConfig) ICEServers() []webrtc.ICEServer {
	servers := []webrtc.ICEServer{
		{URLs: []string{c.StunURL}},
	}

	if c.CoturnServer.Enabled() {
		servers = append(servers, webrtc.ICEServer{
			URLs:       c.CoturnServer.TurnURLs(),
			Username:   c.CoturnServer.Username,
			Credential: c.CoturnServer.Password,
		})
	}

	return servers
}
