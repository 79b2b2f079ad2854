// Package runtime owns the live side of the system: the connection
// registry, presence transitions, and event broadcasting. It carries no
// business rules; durable state lives in the repositories.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RACOAI-Official/ems-realtime/domain/event"
	"github.com/RACOAI-Official/ems-realtime/errors"
	"github.com/google/uuid"
)

// Connection is one live channel to a specific client instance of a
// user. Outbound events flow through a buffered FIFO drained by the
// transport, which preserves emission order per connection. The registry
// owns the connection for its lifetime.
type Connection struct {
	id        uuid.UUID
	userID    string
	createdAt time.Time
	out       chan event.Event
	done      chan struct{}
	closeOnce sync.Once
}

func NewConnection(userID string, buffer int) *Connection {
	return &Connection{
		id:        uuid.New(),
		userID:    userID,
		createdAt: time.Now().UTC(),
		out:       make(chan event.Event, buffer),
		done:      make(chan struct{}),
	}
}

func (c *Connection) ID() uuid.UUID        { return c.id }
func (c *Connection) UserID() string       { return c.userID }
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// Events is the outbound FIFO. The transport drains it until Done is
// closed.
func (c *Connection) Events() <-chan event.Event { return c.out }

func (c *Connection) Done() <-chan struct{} { return c.done }

// Consume enqueues an event without ever blocking the caller. A slow
// client fills its own buffer and drops; durability is the store's job,
// not the live channel's.
func (c *Connection) Consume(_ context.Context, e event.Event) error {
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}

	select {
	case c.out <- e:
		return nil
	default:
		return fmt.Errorf("connection %s: outbound buffer full, dropping %q", c.id, e.Name)
	}
}

// Close is idempotent. The outbound channel is left open so concurrent
// Consume calls never panic; they observe done instead.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
