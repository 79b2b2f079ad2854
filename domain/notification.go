package domain

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryMessage Category = "message"
	CategoryTask    Category = "task"
	CategoryTicket  Category = "ticket"
	CategoryPayroll Category = "payroll"
)

// Notification is created once per triggering event and never mutated
// except for its Read flag.
type Notification struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Category     Category  `json:"category"`
	Link         string    `json:"link,omitempty"`
	TargetUserID string    `json:"targetUser"`
	Read         bool      `json:"readFlag"`
	CreatedAt    time.Time `json:"createdAt"`
}
