package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/RACOAI-Official/ems-realtime/domain/event"
	"github.com/RACOAI-Official/ems-realtime/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestPushWorker_DeliversEventsInOrder(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	broadcaster := mocks.NewMockIBroadcaster(ctrl)

	delivered := make(chan event.Event, 3)
	broadcaster.EXPECT().
		EmitToUser(gomock.Any(), "bob", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, e event.Event) {
			delivered <- e
		}).
		Times(3)

	worker := NewPushWorker(slog.Default(), broadcaster, nil, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	first := event.NewUpdateContacts()
	second := event.NewStatusUpdate("alice", true)
	third := event.NewStatusUpdate("alice", false)
	worker.Enqueue("bob", first, second, third)

	var got []event.Event
	for len(got) < 3 {
		select {
		case e := <-delivered:
			got = append(got, e)
		case <-time.After(1 * time.Second):
			req.Fail("Push worker should have delivered all events")
		}
	}
	req.Equal([]event.Event{first, second, third}, got)
}

func TestPushWorker_FullQueueDropsJob(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// The broadcaster must never be reached: the worker is not running.
	broadcaster := mocks.NewMockIBroadcaster(ctrl)

	worker := NewPushWorker(slog.Default(), broadcaster, nil, 1)

	worker.Enqueue("bob", event.NewUpdateContacts())
	worker.Enqueue("bob", event.NewUpdateContacts())

	req.Equal(1, worker.QueueDepth())
}

func TestPushWorker_EmptyEnqueueIsNoop(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	worker := NewPushWorker(slog.Default(), mocks.NewMockIBroadcaster(ctrl), nil, 1)
	worker.Enqueue("bob")

	req.Equal(0, worker.QueueDepth())
}
