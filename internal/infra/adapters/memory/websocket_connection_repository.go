package memory

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/qrave1/MeshRoom/internal/application/constant"
	"github.com/qrave1/MeshRoom/internal/application/metric"
)

var (
	ErrSendQueueFull = errors.New("send queue full")
	ErrConnClosed    = errors.New("connection closed")
)

// Outbound - исходящая сторона соединения. TrySend не блокируется.
type Outbound interface {
	TrySend(payload []byte) error
}

// WebsocketConnectionRepository интерфейс для работы с активными соединениями в памяти
type WebsocketConnectionRepository interface {
	Add(uuid.UUID, Outbound)
	Remove(uuid.UUID)
	Has(uuid.UUID) bool
	Count() int

	// Write сериализует payload и ставит его в очередь соединения.
	// Возвращает false, если соединения нет или очередь переполнена.
	Write(uuid.UUID, any) bool

	// WriteRaw - то же для уже сериализованного сообщения, чтобы не кодировать его на каждого получателя
	WriteRaw(uuid.UUID, []byte) bool
}

type wsConnectionRepository struct {
	// wsConns хранит map[connection_id]Outbound
	wsConns map[uuid.UUID]Outbound

	mu sync.RWMutex
}

func NewWSConnectionRepository() WebsocketConnectionRepository {
	return &wsConnectionRepository{
		wsConns: make(map[uuid.UUID]Outbound, 10),
	}
}

func (w *wsConnectionRepository) Add(connID uuid.UUID, conn Outbound) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.wsConns[connID] = conn
}

func (w *wsConnectionRepository) Remove(connID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.wsConns, connID)
}

func (w *wsConnectionRepository) Has(connID uuid.UUID) bool {
	_, ok := w.get(connID)
	return ok
}

func (w *wsConnectionRepository) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.wsConns)
}

func (w *wsConnectionRepository) Write(connID uuid.UUID, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal websocket payload", slog.Any(constant.Error, err))
		return false
	}

	return w.WriteRaw(connID, data)
}

func (w *wsConnectionRepository) WriteRaw(connID uuid.UUID, data []byte) bool {
	conn, ok := w.get(connID)
	if !ok {
		return false
	}

	if err := conn.TrySend(data); err != nil {
		if errors.Is(err, ErrSendQueueFull) {
			metric.IncRelayDropped(metric.DropBackpressure)
		}

		slog.Warn(
			"write to websocket",
			slog.Any(constant.ConnectionID, connID),
			slog.Any(constant.Error, err),
		)

		return false
	}

	return true
}

func (w *wsConnectionRepository) get(connID uuid.UUID) (Outbound, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	conn, ok := w.wsConns[connID]
	return conn, ok
}
