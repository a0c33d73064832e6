package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/qrave1/MeshRoom/internal/domain"
	"github.com/qrave1/MeshRoom/internal/domain/models"
)

// Presenter печатает события комнаты строками в терминал
type Presenter struct {
	mu    sync.Mutex
	out   io.Writer
	names map[uuid.UUID]string
}

func NewPresenter(out io.Writer) *Presenter {
	return &Presenter{
		out:   out,
		names: make(map[uuid.UUID]string),
	}
}

func (p *Presenter) OnMembershipChanged(participants []models.Participant) {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(participants))
	for _, participant := range participants {
		p.names[participant.ConnectionID] = participant.Identity
		names = append(names, participant.Identity)
	}

	p.println(systemStyle.Render(fmt.Sprintf("in room (%d): %s", len(names), strings.Join(names, ", "))))
}

func (p *Presenter) OnRemoteStream(peerID uuid.UUID, stream domain.RemoteStream) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.println(systemStyle.Render(fmt.Sprintf("receiving %s from %s", stream.Kind, p.name(peerID))))
}

func (p *Presenter) OnChatMessage(entry models.ChatEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	style := nameStyle
	if entry.Own {
		style = ownNameStyle
	}

	p.println(fmt.Sprintf("%s %s: %s", entry.At.Format("15:04"), style.Render(entry.FromIdentity), entry.Message))
}

func (p *Presenter) OnReaction(reaction models.Reaction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.println(reactionStyle.Render(fmt.Sprintf("%s %s", p.name(reaction.OriginID), reaction.Emoji)))
}

func (p *Presenter) OnPeerRemoved(peerID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.println(systemStyle.Render(fmt.Sprintf("%s left", p.name(peerID))))
	delete(p.names, peerID)
}

func (p *Presenter) OnError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.println(errorStyle.Render("error: " + err.Error()))
}

// Notice - служебная строка от команды join
func (p *Presenter) Notice(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.println(systemStyle.Render(text))
}

func (p *Presenter) name(id uuid.UUID) string {
	if name, ok := p.names[id]; ok {
		return name
	}

	return id.String()[:8]
}

func (p *Presenter) println(line string) {
	_, _ = fmt.Fprintln(p.out, line)
}
