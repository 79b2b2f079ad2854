package runtime

import (
	"sync"

	"github.com/google/uuid"
)

// Registry is the process-wide table from user id to that user's active
// connections. It is constructed once at startup and injected into every
// component that needs it; there is no package-level instance.
//
// Invariant: a user entry exists if and only if its connection set is
// non-empty. Emptied sets are deleted immediately, so presence(user) is
// exactly "the registry holds an entry for user".
//
// The owners index maps connection id back to user id, so Leave is O(1)
// instead of a scan over every user's set.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]map[uuid.UUID]*Connection
	owners map[uuid.UUID]string
}

func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[string]map[uuid.UUID]*Connection),
		owners: make(map[uuid.UUID]string),
	}
}

// Join registers a connection under its owning user. It reports whether
// this was the user's first connection, i.e. an offline→online
// transition. The decision is atomic with the set mutation.
func (r *Registry) Join(c *Connection) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[c.UserID()]
	if !ok {
		set = make(map[uuid.UUID]*Connection)
		r.users[c.UserID()] = set
	}
	first = len(set) == 0
	set[c.ID()] = c
	r.owners[c.ID()] = c.UserID()
	return first
}

// Leave removes a connection. It returns the connection and whether it
// was the user's last one (online→offline transition). An unknown id is
// a no-op returning nil; duplicate disconnect events must not error.
func (r *Registry) Leave(connID uuid.UUID) (conn *Connection, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[connID]
	if !ok {
		return nil, false
	}
	delete(r.owners, connID)

	set := r.users[userID]
	conn = set[connID]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.users, userID)
		last = true
	}
	return conn, last
}

// ConnectionsFor returns a snapshot of a user's connections. Callers
// write to them without holding the registry lock.
func (r *Registry) ConnectionsFor(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.users[userID]
	if !ok {
		return nil
	}
	conns := make([]*Connection, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	return conns
}

// All returns a snapshot of every open connection, regardless of user.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []*Connection
	for _, set := range r.users {
		for _, c := range set {
			conns = append(conns, c)
		}
	}
	return conns
}

// Online reports presence: true iff the user has at least one
// registered connection.
func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// ConnectionCount counts a user's connections (multiple tabs/devices).
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}

// UserCount counts users with at least one connection.
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// TotalConnections counts every open connection across all users.
func (r *Registry) TotalConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}
