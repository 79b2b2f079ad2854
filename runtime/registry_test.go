package runtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Registry_First_And_Last_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	c1 := NewConnection("u1", 8)
	c2 := NewConnection("u1", 8)

	req.True(registry.Join(c1), "first connection must report the online transition")
	req.False(registry.Join(c2), "second device must not re-transition")
	req.True(registry.Online("u1"))
	req.Equal(2, registry.ConnectionCount("u1"))

	conn, last := registry.Leave(c1.ID())
	req.Same(c1, conn)
	req.False(last, "one device left, user stays online")
	req.True(registry.Online("u1"))

	conn, last = registry.Leave(c2.ID())
	req.Same(c2, conn)
	req.True(last)
	req.False(registry.Online("u1"))
	req.Zero(registry.UserCount(), "emptied sets must be deleted, not kept empty")
}

func Test_Registry_Leave_Unknown_Is_NoOp(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	conn, last := registry.Leave(uuid.New())
	req.Nil(conn)
	req.False(last)

	// Duplicate disconnect for a known connection behaves the same.
	c := NewConnection("u1", 8)
	registry.Join(c)
	registry.Leave(c.ID())
	conn, last = registry.Leave(c.ID())
	req.Nil(conn)
	req.False(last)
}

func Test_Registry_Snapshots(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	c1 := NewConnection("u1", 8)
	c2 := NewConnection("u1", 8)
	c3 := NewConnection("u2", 8)
	registry.Join(c1)
	registry.Join(c2)
	registry.Join(c3)

	req.Len(registry.ConnectionsFor("u1"), 2)
	req.Len(registry.ConnectionsFor("u2"), 1)
	req.Nil(registry.ConnectionsFor("nobody"))
	req.Len(registry.All(), 3)
	req.Equal(2, registry.UserCount())
	req.Equal(3, registry.TotalConnections())
	req.Equal(2, registry.ConnectionCount("u1"))
}
