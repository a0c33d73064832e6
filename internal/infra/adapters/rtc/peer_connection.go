package rtc

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/sourcegraph/conc"

	"github.com/qrave1/MeshRoom/internal/application/constant"
	"github.com/qrave1/MeshRoom/internal/domain"
)

const keyframeInterval = 3 * time.Second

// PeerConnection - обёртка над pion PeerConnection.
// Горутины чтения RTP/RTCP завершаются в Close.
type PeerConnection struct {
	pc *webrtc.PeerConnection

	// mu связывает запуск горутин с Close: после закрытия done новые не стартуют,
	// иначе wg.Go может пересечься с wg.Wait
	mu        sync.Mutex
	wg        conc.WaitGroup
	done      chan struct{}
	closeOnce sync.Once

	received atomic.Uint64
}

func newPeerConnection(pc *webrtc.PeerConnection) *PeerConnection {
	c := &PeerConnection{
		pc:   pc,
		done: make(chan struct{}),
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed:
			slog.Warn("PeerConnection state failed")
		default:
			slog.Debug("PeerConnection state changed", slog.String(constant.State, state.String()))
		}
	})

	return c
}

func (c *PeerConnection) AddTracks(media domain.LocalMedia) error {
	capture, ok := media.(*Capture)
	if !ok {
		return fmt.Errorf("unsupported local media %T", media)
	}

	for _, track := range capture.Tracks() {
		sender, err := c.pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("add %s track: %w", track.Kind(), err)
		}

		// RTCP от получателя нужно вычитывать, иначе не работают interceptors
		c.spawn(func() {
			buf := make([]byte, maxRTPPacketSize)
			for {
				if _, _, err := sender.Read(buf); err != nil {
					return
				}
			}
		})
	}

	return nil
}

func (c *PeerConnection) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *PeerConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *PeerConnection) SetLocalDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *PeerConnection) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *PeerConnection) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

func (c *PeerConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		// nil - сбор кандидатов завершён
		if candidate == nil {
			return
		}

		fn(candidate.ToJSON())
	})
}

func (c *PeerConnection) OnTrack(fn func(domain.RemoteStream)) {
	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		// дорожка пришла во время Close
		if !c.spawn(func() { c.readTrack(track) }) {
			return
		}

		if track.Kind() == webrtc.RTPCodecTypeVideo {
			c.spawn(func() { c.requestKeyframes(track) })
		}

		fn(domain.RemoteStream{
			StreamID: track.StreamID(),
			TrackID:  track.ID(),
			Kind:     domain.MediaKind(track.Kind().String()),
		})
	})
}

func (c *PeerConnection) Close() error {
	var err error

	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.done)
		c.mu.Unlock()

		err = c.pc.Close()
		c.wg.Wait()

		slog.Debug("PeerConnection closed", slog.Uint64("rtp_packets", c.received.Load()))
	})

	return err
}

// spawn запускает fn в wg, если соединение ещё не закрыто
func (c *PeerConnection) spawn(fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return false
	default:
	}

	c.wg.Go(fn)

	return true
}

func (c *PeerConnection) readTrack(track *webrtc.TrackRemote) {
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			return
		}

		c.received.Add(1)
	}
}

// requestKeyframes периодически шлёт PLI, чтобы видео восстанавливалось после потерь
func (c *PeerConnection) requestKeyframes(track *webrtc.TrackRemote) {
	ticker := time.NewTicker(keyframeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			err := c.pc.WriteRTCP([]rtcp.Packet{
				&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
			})
			if err != nil {
				return
			}
		}
	}
}
