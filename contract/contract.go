//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"github.com/RACOAI-Official/ems-realtime/domain"
	"github.com/RACOAI-Official/ems-realtime/domain/event"
)

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// EventSink is one live, addressable channel to a client. Consume must
// not block the caller; a sink that cannot keep up drops and returns an
// error for the caller to log.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// IDirectory is the external user directory. The realtime core reads
// identities and roles from it and writes exactly one field: Online.
type IDirectory interface {
	GetUser(ctx context.Context, id string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UsersByRole(ctx context.Context, role domain.Role) ([]string, error)
	SetOnline(ctx context.Context, id string, online bool) error
}

// IBroadcaster delivers an event to currently reachable connections.
// Delivery is best-effort: zero registered connections is a silent
// no-op and per-connection failures never surface to the caller.
type IBroadcaster interface {
	EmitToUser(ctx context.Context, userID string, e event.Event)
	EmitToAll(ctx context.Context, e event.Event)
	EmitToRole(ctx context.Context, role domain.Role, e event.Event)
}

// IPusher queues live pushes so a request never waits on delivery.
type IPusher interface {
	Enqueue(userID string, events ...event.Event)
}

// IFileStore is the external attachment store collaborator.
type IFileStore interface {
	Remove(ctx context.Context, ref string) error
}
