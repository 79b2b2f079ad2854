package runtime

import (
	"context"
	"log/slog"

	"github.com/RACOAI-Official/ems-realtime/contract"
	"github.com/RACOAI-Official/ems-realtime/domain"
	"github.com/RACOAI-Official/ems-realtime/domain/event"
	"github.com/RACOAI-Official/ems-realtime/observability"
)

// Broadcaster fans an event out to live connections. It is a pure
// acceleration layer: failures are logged and swallowed, never returned,
// because the store write is the operation's durability guarantee.
type Broadcaster struct {
	log        *slog.Logger
	registry   *Registry
	directory  contract.IDirectory
	monitoring *observability.MonitoringManager
}

// NewBroadcaster builds a broadcaster over the given registry. A nil
// monitoring manager disables counter updates.
func NewBroadcaster(log *slog.Logger, registry *Registry, directory contract.IDirectory,
	monitoring *observability.MonitoringManager) *Broadcaster {
	return &Broadcaster{log: log, registry: registry, directory: directory, monitoring: monitoring}
}

// EmitToUser delivers to every connection currently registered for the
// user. Zero registered connections is a silent no-op: there is no
// queued or offline delivery, the client reconciles via pull on
// reconnect.
func (b *Broadcaster) EmitToUser(ctx context.Context, userID string, e event.Event) {
	for _, c := range b.registry.ConnectionsFor(userID) {
		b.deliver(ctx, c, e)
	}
}

// EmitToAll delivers to every open connection, regardless of user.
func (b *Broadcaster) EmitToAll(ctx context.Context, e event.Event) {
	for _, c := range b.registry.All() {
		b.deliver(ctx, c, e)
	}
}

func (b *Broadcaster) deliver(ctx context.Context, c *Connection, e event.Event) {
	if err := c.Consume(ctx, e); err != nil {
		b.log.Debug("Live push failed", "user", c.UserID(), "event", e.Name, "error", err)
		if b.monitoring != nil {
			b.monitoring.IncrEventsDropped()
		}
		return
	}
	if b.monitoring != nil {
		b.monitoring.IncrEventsDelivered()
	}
}

// EmitToRole resolves target users through the directory, then emits to
// each. A directory failure aborts the group fan-out but must not crash
// the caller.
func (b *Broadcaster) EmitToRole(ctx context.Context, role domain.Role, e event.Event) {
	ids, err := b.directory.UsersByRole(ctx, role)
	if err != nil {
		b.log.Warn("Role fan-out aborted, directory lookup failed", "role", role, "event", e.Name, "error", err)
		return
	}
	for _, id := range ids {
		b.EmitToUser(ctx, id, e)
	}
}
