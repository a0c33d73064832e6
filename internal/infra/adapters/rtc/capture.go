package rtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/sourcegraph/conc"

	"github.com/qrave1/MeshRoom/internal/application/constant"
	"github.com/qrave1/MeshRoom/internal/domain"
)

const maxRTPPacketSize = 1500

// Capture - локальные дорожки, общие для всех PeerConnection.
// Выключенная дорожка отбрасывает пакеты, пересогласование не нужно.
type Capture struct {
	audio *webrtc.TrackLocalStaticRTP
	video *webrtc.TrackLocalStaticRTP

	audioOn atomic.Bool
	videoOn atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup
	once   sync.Once
}

func NewCapture(streamID string) (*Capture, error) {
	audio, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("create audio track: %w", err)
	}

	video, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"video", streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("create video track: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Capture{
		audio:  audio,
		video:  video,
		ctx:    ctx,
		cancel: cancel,
	}
	c.audioOn.Store(true)
	c.videoOn.Store(true)

	return c, nil
}

func (c *Capture) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{c.audio, c.video}
}

func (c *Capture) SetEnabled(kind domain.MediaKind, enabled bool) {
	if kind == domain.MediaKindVideo {
		c.videoOn.Store(enabled)
		return
	}

	c.audioOn.Store(enabled)
}

func (c *Capture) Enabled(kind domain.MediaKind) bool {
	if kind == domain.MediaKindVideo {
		return c.videoOn.Load()
	}

	return c.audioOn.Load()
}

// WriteRTP раздаёт пакет всем PeerConnection, к которым привязана дорожка
func (c *Capture) WriteRTP(kind domain.MediaKind, pkt *rtp.Packet) error {
	if !c.Enabled(kind) {
		return nil
	}

	if kind == domain.MediaKindVideo {
		return c.video.WriteRTP(pkt)
	}

	return c.audio.WriteRTP(pkt)
}

// Ingest слушает UDP адрес и пишет полученные RTP пакеты в дорожку kind.
// Ошибка listen возвращается сразу, чтение идёт в фоне до Close.
func (c *Capture) Ingest(kind domain.MediaKind, addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("listen %s rtp on %s: %w", kind, addr, err)
	}

	stop := context.AfterFunc(c.ctx, func() {
		_ = conn.Close()
	})

	slog.Info("Reading local RTP", slog.String(constant.Kind, string(kind)), slog.String("addr", conn.LocalAddr().String()))

	c.wg.Go(func() {
		defer stop()

		buf := make([]byte, maxRTPPacketSize)
		for {
			n, _, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}

			pkt := &rtp.Packet{}
			if err = pkt.Unmarshal(buf[:n]); err != nil {
				continue
			}

			if err = c.WriteRTP(kind, pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
				slog.Debug("write local rtp", slog.Any(constant.Error, err))
			}
		}
	})

	return nil
}

func (c *Capture) Close() error {
	c.once.Do(func() {
		c.cancel()
		c.wg.Wait()
	})

	return nil
}
