package workers

import (
	"context"
	"log/slog"

	"github.com/RACOAI-Official/ems-realtime/contract"
	"github.com/RACOAI-Official/ems-realtime/domain/event"
	"github.com/RACOAI-Official/ems-realtime/observability"
)

// PushJob carries the live events queued for one user by a single
// operation. Events inside a job are delivered in order.
type PushJob struct {
	UserID string
	Events []event.Event
}

// PushWorker decouples request handling from live delivery: services
// enqueue, the worker drains the queue and hands each event to the
// broadcaster. The queue is bounded; when it is full the job is dropped
// and logged rather than blocking the producer.
type PushWorker struct {
	log         *slog.Logger
	broadcaster contract.IBroadcaster
	monitoring  *observability.MonitoringManager
	jobs        chan PushJob
}

func NewPushWorker(log *slog.Logger, broadcaster contract.IBroadcaster, monitoring *observability.MonitoringManager, queueSize int) *PushWorker {
	return &PushWorker{
		log:         log,
		broadcaster: broadcaster,
		monitoring:  monitoring,
		jobs:        make(chan PushJob, queueSize),
	}
}

// Enqueue never blocks. A full queue means delivery is falling behind;
// live pushes are best-effort so the job is dropped, the durable stores
// already hold the data.
func (w *PushWorker) Enqueue(userID string, events ...event.Event) {
	if len(events) == 0 {
		return
	}
	select {
	case w.jobs <- PushJob{UserID: userID, Events: events}:
		if w.monitoring != nil {
			w.monitoring.IncrPushesQueued()
		}
	default:
		w.log.Warn("Push queue full, dropping job", "user", userID, "events", len(events))
		if w.monitoring != nil {
			w.monitoring.IncrPushesDropped()
		}
	}
}

func (w *PushWorker) Run(ctx context.Context) error {
	w.log.Info("Starting push worker", "capacity", cap(w.jobs))
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping push worker")
			return nil
		case job := <-w.jobs:
			for _, e := range job.Events {
				w.broadcaster.EmitToUser(ctx, job.UserID, e)
			}
		}
	}
}

// QueueDepth reports how many jobs are waiting, for heartbeat snapshots.
func (w *PushWorker) QueueDepth() int {
	return len(w.jobs)
}
