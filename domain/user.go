package domain

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleHR       Role = "hr"
	RoleEmployee Role = "employee"
)

// Elevated roles may act on records they do not own (e.g. delete
// another user's message).
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleHR
}

// User is the slice of the external user directory the realtime core
// cares about. The Online flag is owned by the presence tracker and must
// not be written by anyone else.
type User struct {
	ID        string
	Name      string
	Role      Role
	Online    bool
	CreatedAt time.Time
}
