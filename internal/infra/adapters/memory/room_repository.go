package memory

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/qrave1/MeshRoom/internal/application/metric"
	"github.com/qrave1/MeshRoom/internal/domain/models"
)

// SnapshotFunc вызывается под блокировкой комнаты сразу после изменения состава.
// Внутри нельзя блокироваться на сети и обращаться к репозиторию комнат.
type SnapshotFunc func(roomID string, members []models.Participant)

// RoomRepository хранит упорядоченный состав комнат.
// Изменения одной комнаты сериализованы, разные комнаты меняются параллельно.
type RoomRepository interface {
	// Upsert добавляет участника в конец списка с новым JoinOrder
	// или обновляет identity, сохраняя позицию. Возвращает сохранённую запись.
	Upsert(roomID string, p models.Participant, fn SnapshotFunc) models.Participant

	// Remove удаляет участника. Возвращает удалённую запись и false, если участника не было.
	Remove(roomID string, connID uuid.UUID, fn SnapshotFunc) (models.Participant, bool)

	// RoomsOf возвращает комнаты, в которых состоит соединение
	RoomsOf(connID uuid.UUID) []string

	Members(roomID string) ([]models.Participant, bool)
	Member(roomID string, connID uuid.UUID) (models.Participant, bool)
	List() []models.RoomInfo
	Count() int
}

type room struct {
	mu      sync.Mutex
	members []models.Participant
	// closed выставляется, когда пустая комната удалена из карты
	closed bool
}

func (r *room) index(connID uuid.UUID) int {
	return slices.IndexFunc(r.members, func(p models.Participant) bool {
		return p.ConnectionID == connID
	})
}

func (r *room) snapshot() []models.Participant {
	return slices.Clone(r.members)
}

type roomRepository struct {
	// Порядок блокировок: room.mu, затем mu. Никогда наоборот.
	mu       sync.Mutex
	rooms    map[string]*room
	memberOf map[uuid.UUID]map[string]struct{}

	// joinSeq выдаётся под блокировкой комнаты, поэтому порядок списка совпадает с JoinOrder
	joinSeq atomic.Uint64

	// reportRooms получает число комнат под mu, сразу после создания или удаления
	reportRooms func(count int)
}

func NewRoomRepository() RoomRepository {
	return &roomRepository{
		rooms:       make(map[string]*room),
		memberOf:    make(map[uuid.UUID]map[string]struct{}),
		reportRooms: metric.SetRoomsActive,
	}
}

func (r *roomRepository) Upsert(roomID string, p models.Participant, fn SnapshotFunc) models.Participant {
	for {
		rm := r.getOrCreate(roomID)

		rm.mu.Lock()
		if rm.closed {
			// комнату удалили между getOrCreate и Lock, берём новую
			rm.mu.Unlock()
			continue
		}

		if i := rm.index(p.ConnectionID); i >= 0 {
			rm.members[i].Identity = p.Identity
			p = rm.members[i]
		} else {
			p.JoinOrder = r.joinSeq.Add(1)
			rm.members = append(rm.members, p)
			r.link(p.ConnectionID, roomID)
		}

		if fn != nil {
			fn(roomID, rm.snapshot())
		}
		rm.mu.Unlock()

		return p
	}
}

func (r *roomRepository) Remove(roomID string, connID uuid.UUID, fn SnapshotFunc) (models.Participant, bool) {
	rm, ok := r.get(roomID)
	if !ok {
		return models.Participant{}, false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.closed {
		return models.Participant{}, false
	}

	i := rm.index(connID)
	if i < 0 {
		return models.Participant{}, false
	}

	removed := rm.members[i]
	rm.members = slices.Delete(rm.members, i, i+1)
	r.unlink(connID, roomID)

	if len(rm.members) == 0 {
		rm.closed = true

		r.mu.Lock()
		delete(r.rooms, roomID)
		r.reportRooms(len(r.rooms))
		r.mu.Unlock()
	}

	if fn != nil {
		fn(roomID, rm.snapshot())
	}

	return removed, true
}

func (r *roomRepository) RoomsOf(connID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := make([]string, 0, len(r.memberOf[connID]))
	for roomID := range r.memberOf[connID] {
		rooms = append(rooms, roomID)
	}

	slices.Sort(rooms)

	return rooms
}

func (r *roomRepository) Members(roomID string) ([]models.Participant, bool) {
	rm, ok := r.get(roomID)
	if !ok {
		return nil, false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.closed {
		return nil, false
	}

	return rm.snapshot(), true
}

func (r *roomRepository) Member(roomID string, connID uuid.UUID) (models.Participant, bool) {
	members, ok := r.Members(roomID)
	if !ok {
		return models.Participant{}, false
	}

	i := slices.IndexFunc(members, func(p models.Participant) bool {
		return p.ConnectionID == connID
	})
	if i < 0 {
		return models.Participant{}, false
	}

	return members[i], true
}

func (r *roomRepository) List() []models.RoomInfo {
	r.mu.Lock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	slices.Sort(ids)

	infos := make([]models.RoomInfo, 0, len(ids))
	for _, id := range ids {
		members, ok := r.Members(id)
		if !ok {
			continue
		}

		infos = append(infos, models.RoomInfo{ID: id, Participants: members})
	}

	return infos
}

func (r *roomRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.rooms)
}

func (r *roomRepository) getOrCreate(roomID string) *room {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{}
		r.rooms[roomID] = rm
		r.reportRooms(len(r.rooms))
	}

	return rm
}

func (r *roomRepository) get(roomID string) (*room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	return rm, ok
}

func (r *roomRepository) link(connID uuid.UUID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.memberOf[connID]; !ok {
		r.memberOf[connID] = make(map[string]struct{})
	}

	r.memberOf[connID][roomID] = struct{}{}
}

func (r *roomRepository) unlink(connID uuid.UUID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.memberOf[connID], roomID)

	if len(r.memberOf[connID]) == 0 {
		delete(r.memberOf, connID)
	}
}
