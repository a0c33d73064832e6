package mesh

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/MeshRoom/internal/domain"
	"github.com/qrave1/MeshRoom/internal/domain/events"
	"github.com/qrave1/MeshRoom/internal/domain/models"
)

var errFake = errors.New("fake failure")

type fakeLocal struct {
	mu      sync.Mutex
	enabled map[domain.MediaKind]bool
	closed  bool
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{
		enabled: map[domain.MediaKind]bool{
			domain.MediaKindAudio: true,
			domain.MediaKindVideo: true,
		},
	}
}

func (l *fakeLocal) SetEnabled(kind domain.MediaKind, enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.enabled[kind] = enabled
}

func (l *fakeLocal) Enabled(kind domain.MediaKind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.enabled[kind]
}

func (l *fakeLocal) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true

	return nil
}

func (l *fakeLocal) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.closed
}

type fakeConn struct {
	mu sync.Mutex

	tracks     domain.LocalMedia
	local      []webrtc.SessionDescription
	remote     []webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	closed     bool

	remoteErr error

	onCandidate func(webrtc.ICECandidateInit)
	onTrack     func(domain.RemoteStream)
}

func (c *fakeConn) AddTracks(media domain.LocalMedia) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tracks = media

	return nil
}

func (c *fakeConn) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "local-offer"}, nil
}

func (c *fakeConn) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "local-answer"}, nil
}

func (c *fakeConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.local = append(c.local, desc)

	return nil
}

func (c *fakeConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.remoteErr != nil {
		return c.remoteErr
	}

	c.remote = append(c.remote, desc)

	return nil
}

func (c *fakeConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.candidates = append(c.candidates, candidate)

	return nil
}

func (c *fakeConn) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onCandidate = fn
}

func (c *fakeConn) OnTrack(fn func(domain.RemoteStream)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onTrack = fn
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	return nil
}

func (c *fakeConn) emitCandidate(candidate string) {
	c.mu.Lock()
	fn := c.onCandidate
	c.mu.Unlock()

	fn(webrtc.ICECandidateInit{Candidate: candidate})
}

func (c *fakeConn) emitTrack(stream domain.RemoteStream) {
	c.mu.Lock()
	fn := c.onTrack
	c.mu.Unlock()

	fn(stream)
}

func (c *fakeConn) snapshot() (local, remote []webrtc.SessionDescription, candidates []string, closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cand := range c.candidates {
		candidates = append(candidates, cand.Candidate)
	}

	return append(local, c.local...), append(remote, c.remote...), candidates, c.closed
}

type fakeMedia struct {
	mu         sync.Mutex
	acquireErr error
	remoteErr  error
	acquired   int
	locals     []*fakeLocal
	conns      []*fakeConn
}

func (m *fakeMedia) AcquireLocalMedia(context.Context) (domain.LocalMedia, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.acquired++

	if m.acquireErr != nil {
		return nil, m.acquireErr
	}

	local := newFakeLocal()
	m.locals = append(m.locals, local)

	return local, nil
}

func (m *fakeMedia) NewPeerConnection() (domain.PeerConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn := &fakeConn{remoteErr: m.remoteErr}
	m.conns = append(m.conns, conn)

	return conn, nil
}

func (m *fakeMedia) acquireCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.acquired
}

func (m *fakeMedia) connCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.conns)
}

func (m *fakeMedia) conn(i int) *fakeConn {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.conns[i]
}

func (m *fakeMedia) local(i int) *fakeLocal {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.locals[i]
}

type fakeSignaler struct {
	mu   sync.Mutex
	msgs []*events.Message
}

func (s *fakeSignaler) Send(msg *events.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msgs = append(s.msgs, msg)

	return nil
}

func (s *fakeSignaler) ofType(msgType string) []*events.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*events.Message
	for _, m := range s.msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}

	return out
}

func (s *fakeSignaler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.msgs)
}

type fakePresenter struct {
	mu         sync.Mutex
	membership [][]models.Participant
	streams    map[uuid.UUID]domain.RemoteStream
	chat       []models.ChatEntry
	reactions  []models.Reaction
	removed    []uuid.UUID
	errs       []error
}

func newFakePresenter() *fakePresenter {
	return &fakePresenter{streams: make(map[uuid.UUID]domain.RemoteStream)}
}

func (p *fakePresenter) OnMembershipChanged(participants []models.Participant) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.membership = append(p.membership, participants)
}

func (p *fakePresenter) OnRemoteStream(peerID uuid.UUID, stream domain.RemoteStream) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.streams[peerID] = stream
}

func (p *fakePresenter) OnChatMessage(entry models.ChatEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.chat = append(p.chat, entry)
}

func (p *fakePresenter) OnReaction(reaction models.Reaction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reactions = append(p.reactions, reaction)
}

func (p *fakePresenter) OnPeerRemoved(peerID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.removed = append(p.removed, peerID)
}

func (p *fakePresenter) OnError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.errs = append(p.errs, err)
}

func (p *fakePresenter) stream(peerID uuid.UUID) (domain.RemoteStream, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.streams[peerID]
	return s, ok
}

func (p *fakePresenter) removedPeers() []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]uuid.UUID(nil), p.removed...)
}

func (p *fakePresenter) errors() []error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]error(nil), p.errs...)
}
