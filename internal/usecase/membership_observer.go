package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/qrave1/MeshRoom/internal/application/constant"
	"github.com/qrave1/MeshRoom/internal/application/metric"
	"github.com/qrave1/MeshRoom/internal/domain/models"
)

var ErrObserverQueueFull = errors.New("membership observer queue full")

const observeTimeout = 5 * time.Second

// MembershipObserver получает события изменения состава комнат (журнал, presence)
type MembershipObserver interface {
	Observe(ctx context.Context, ev models.MembershipEvent) error
}

// MembershipFanout ставит события в ограниченную очередь и раздаёт их наблюдателям в отдельной горутине.
// Observe никогда не блокируется: при переполнении событие теряется.
type MembershipFanout struct {
	observers []MembershipObserver
	queue     chan models.MembershipEvent
}

func NewMembershipFanout(buffer int, observers ...MembershipObserver) *MembershipFanout {
	if buffer <= 0 {
		buffer = 1
	}

	return &MembershipFanout{
		observers: observers,
		queue:     make(chan models.MembershipEvent, buffer),
	}
}

func (f *MembershipFanout) Observe(_ context.Context, ev models.MembershipEvent) error {
	if len(f.observers) == 0 {
		return nil
	}

	select {
	case f.queue <- ev:
		return nil
	default:
		metric.IncMembershipEventsDropped()
		return ErrObserverQueueFull
	}
}

// Run раздаёт события до отмены контекста
func (f *MembershipFanout) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-f.queue:
			f.dispatch(ctx, ev)
		}
	}
}

func (f *MembershipFanout) dispatch(ctx context.Context, ev models.MembershipEvent) {
	ctx, cancel := context.WithTimeout(ctx, observeTimeout)
	defer cancel()

	var wg conc.WaitGroup

	for _, observer := range f.observers {
		wg.Go(func() {
			if err := observer.Observe(ctx, ev); err != nil {
				slog.Error(
					"membership observer",
					slog.String(constant.RoomID, ev.RoomID),
					slog.String(constant.Kind, string(ev.Kind)),
					slog.Any(constant.Error, err),
				)
			}
		})
	}

	if r := wg.WaitAndRecover(); r != nil {
		slog.Error("membership observer panic", slog.Any(constant.Error, r.AsError()))
	}
}
