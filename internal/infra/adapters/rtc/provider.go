package rtc

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/MeshRoom/internal/domain"
)

// Sources - откуда брать RTP для локальных дорожек. Пустой адрес - дорожка молчит.
type Sources struct {
	AudioAddr string
	VideoAddr string
}

// Provider - mesh реализация domain.MediaCapability на pion: прямое соединение на каждого участника
type Provider struct {
	config  webrtc.Configuration
	sources Sources
}

func NewProvider(iceServers []webrtc.ICEServer, sources Sources) *Provider {
	return &Provider{
		config:  webrtc.Configuration{ICEServers: iceServers},
		sources: sources,
	}
}

func (p *Provider) AcquireLocalMedia(_ context.Context) (domain.LocalMedia, error) {
	capture, err := NewCapture("meshroom-" + uuid.NewString())
	if err != nil {
		return nil, err
	}

	inputs := []struct {
		kind domain.MediaKind
		addr string
	}{
		{domain.MediaKindAudio, p.sources.AudioAddr},
		{domain.MediaKindVideo, p.sources.VideoAddr},
	}

	for _, in := range inputs {
		if in.addr == "" {
			continue
		}

		if err = capture.Ingest(in.kind, in.addr); err != nil {
			_ = capture.Close()
			return nil, err
		}
	}

	return capture, nil
}

func (p *Provider) NewPeerConnection() (domain.PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(p.config)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	return newPeerConnection(pc), nil
}
