package runtime

import (
	"context"
	"log/slog"

	"github.com/RACOAI-Official/ems-realtime/contract"
	"github.com/RACOAI-Official/ems-realtime/domain/event"
	"github.com/RACOAI-Official/ems-realtime/observability"
	"github.com/google/uuid"
)

// PresenceTracker derives online/offline solely from registry occupancy:
// a user is online iff at least one connection is registered, whatever
// device it belongs to. On a transition it persists the flag through the
// directory and broadcasts a status update to every open connection.
type PresenceTracker struct {
	log         *slog.Logger
	registry    *Registry
	directory   contract.IDirectory
	broadcaster contract.IBroadcaster
	monitoring  *observability.MonitoringManager
}

// NewPresenceTracker builds a tracker over the given registry. A nil
// monitoring manager disables counter updates.
func NewPresenceTracker(log *slog.Logger, registry *Registry,
	directory contract.IDirectory, broadcaster contract.IBroadcaster,
	monitoring *observability.MonitoringManager) *PresenceTracker {
	return &PresenceTracker{
		log:         log,
		registry:    registry,
		directory:   directory,
		broadcaster: broadcaster,
		monitoring:  monitoring,
	}
}

// Connect registers the connection. On the user's first connection the
// online flag is persisted and the transition broadcast.
func (t *PresenceTracker) Connect(ctx context.Context, c *Connection) {
	first := t.registry.Join(c)
	t.log.Debug("Connection joined", "user", c.UserID(), "conn", c.ID(), "first", first)
	if !first {
		return
	}

	if err := t.directory.SetOnline(ctx, c.UserID(), true); err != nil {
		// The registry already reflects the truth; the stale flag is
		// repaired on the next transition.
		t.log.Error("Persisting online flag failed", "user", c.UserID(), "error", err)
	}
	t.broadcaster.EmitToAll(ctx, event.NewStatusUpdate(c.UserID(), true))
	if t.monitoring != nil {
		t.monitoring.IncrPresenceChanges()
	}
}

// Disconnect deregisters the connection and closes it. Unknown ids are
// a no-op so duplicate disconnect events never error. On the user's last
// connection the offline flag is persisted and the transition broadcast.
func (t *PresenceTracker) Disconnect(ctx context.Context, connID uuid.UUID) {
	conn, last := t.registry.Leave(connID)
	if conn == nil {
		return
	}
	conn.Close()
	t.log.Debug("Connection left", "user", conn.UserID(), "conn", connID, "last", last)
	if !last {
		return
	}

	// A join may repopulate the set between Leave and this persist.
	// Re-checking occupancy skips the stale offline write in that case;
	// the window between this check and the write landing remains (see
	// DESIGN.md).
	if t.registry.Online(conn.UserID()) {
		t.log.Debug("User reconnected before offline persist, skipping", "user", conn.UserID())
		return
	}
	if err := t.directory.SetOnline(ctx, conn.UserID(), false); err != nil {
		t.log.Error("Persisting offline flag failed", "user", conn.UserID(), "error", err)
	}
	t.broadcaster.EmitToAll(ctx, event.NewStatusUpdate(conn.UserID(), false))
	if t.monitoring != nil {
		t.monitoring.IncrPresenceChanges()
	}
}
