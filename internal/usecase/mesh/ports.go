package mesh

import (
	"github.com/google/uuid"

	"github.com/qrave1/MeshRoom/internal/domain"
	"github.com/qrave1/MeshRoom/internal/domain/events"
	"github.com/qrave1/MeshRoom/internal/domain/models"
)

// Signaler отправляет сообщения на сигнальный сервер
type Signaler interface {
	Send(msg *events.Message) error
}

// Presenter - слой отображения. Вызывается под блокировкой менеджера,
// поэтому не должен обращаться к Manager синхронно.
type Presenter interface {
	OnMembershipChanged(participants []models.Participant)
	OnRemoteStream(peerID uuid.UUID, stream domain.RemoteStream)
	OnChatMessage(entry models.ChatEntry)
	OnReaction(reaction models.Reaction)
	OnPeerRemoved(peerID uuid.UUID)
	OnError(err error)
}
