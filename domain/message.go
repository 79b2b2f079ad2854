package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is a durable chat message between a user pair. Either Body or
// AttachmentRef must be non-empty; the store is the source of truth, the
// live channel only accelerates delivery.
type Message struct {
	ID            uuid.UUID `json:"id"`
	SenderID      string    `json:"sender"`
	ReceiverID    string    `json:"receiver"`
	Body          string    `json:"body"`
	AttachmentRef string    `json:"attachmentRef,omitempty"`
	Lang          string    `json:"lang,omitempty"`
	Read          bool      `json:"readFlag"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Contact is the per-counterpart aggregate used to render a
// conversation list.
type Contact struct {
	User        User     `json:"user"`
	UnreadCount int      `json:"unreadCount"`
	LastMessage *Message `json:"lastMessage,omitempty"`
}

// LastMessageTime is the zero time for contacts with no history, which
// sorts them after every contact that has one.
func (c Contact) LastMessageTime() time.Time {
	if c.LastMessage == nil {
		return time.Time{}
	}
	return c.LastMessage.CreatedAt
}
