package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification is an immutable message addressed to one principal. Only
// Read ever changes after creation.
type Notification struct {
	ID        uuid.UUID
	StreamID  *int64
	Recipient Principal
	Type      NotificationType
	Message   string
	Read      bool
	CreatedAt time.Time
}

// NotificationFilter narrows notification listings.
type NotificationFilter struct {
	UnreadOnly bool
	Type       *NotificationType
}
