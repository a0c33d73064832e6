package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/MeshRoom/internal/domain/events"
	"github.com/qrave1/MeshRoom/internal/domain/models"
)

type failingObserver struct{}

func (failingObserver) Observe(context.Context, models.MembershipEvent) error {
	return errors.New("storage down")
}

type panickingObserver struct{}

func (panickingObserver) Observe(context.Context, models.MembershipEvent) error {
	panic("boom")
}

func membershipEvent(kind models.MembershipKind) models.MembershipEvent {
	return models.NewMembershipEvent("r1", models.Participant{
		ConnectionID: uuid.New(),
		Identity:     "A",
		JoinOrder:    1,
	}, kind)
}

func TestMembershipFanout_DeliversToAllObservers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := &observerSpy{}
	second := &observerSpy{}

	fanout := NewMembershipFanout(8, first, failingObserver{}, panickingObserver{}, second)
	go fanout.Run(ctx)

	require.NoError(t, fanout.Observe(ctx, membershipEvent(models.MembershipJoin)))
	require.NoError(t, fanout.Observe(ctx, membershipEvent(models.MembershipLeave)))

	want := []models.MembershipKind{models.MembershipJoin, models.MembershipLeave}

	require.Eventually(t, func() bool {
		return len(first.kinds()) == 2 && len(second.kinds()) == 2
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, want, first.kinds())
	assert.Equal(t, want, second.kinds())
}

func TestMembershipFanout_DropsOnOverflow(t *testing.T) {
	ctx := context.Background()

	spy := &observerSpy{}
	fanout := NewMembershipFanout(1, spy)

	// Run не запущен, очередь на одно событие
	require.NoError(t, fanout.Observe(ctx, membershipEvent(models.MembershipJoin)))

	err := fanout.Observe(ctx, membershipEvent(models.MembershipJoin))
	require.ErrorIs(t, err, ErrObserverQueueFull)
}

func TestMembershipFanout_NoObservers(t *testing.T) {
	fanout := NewMembershipFanout(1)

	for range 10 {
		require.NoError(t, fanout.Observe(context.Background(), membershipEvent(models.MembershipJoin)))
	}
}

func TestMembershipFanout_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fanout := NewMembershipFanout(1, &observerSpy{})

	done := make(chan struct{})
	go func() {
		fanout.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRoomUsecase_ObserverFailureDoesNotBreakJoin(t *testing.T) {
	ctx := context.Background()

	f := newRoomFixture()
	uc := NewRoomUsecase(f.rooms, f.conns, NewMembershipFanout(1, failingObserver{}))

	a, rec := f.connect()
	b, _ := f.connect()

	require.NoError(t, uc.Join(ctx, a, joinEvent("A")))
	// очередь переполнена, но вход всё равно проходит
	require.NoError(t, uc.Join(ctx, b, joinEvent("B")))

	assert.Len(t, lastRoomUsers(t, rec), 2)
}

func joinEvent(identity string) events.JoinEvent {
	return events.JoinEvent{Identity: identity, RoomID: "r1"}
}
