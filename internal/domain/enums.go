package domain

// StreamStatus is the lifecycle state of a payment stream.
type StreamStatus string

const (
	StreamStatusActive    StreamStatus = "ACTIVE"
	StreamStatusPaused    StreamStatus = "PAUSED"
	StreamStatusCompleted StreamStatus = "COMPLETED"
	StreamStatusCancelled StreamStatus = "CANCELLED"
)

func (s StreamStatus) String() string { return string(s) }

func (s StreamStatus) IsValid() bool {
	switch s {
	case StreamStatusActive, StreamStatusPaused, StreamStatusCompleted, StreamStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further lifecycle transition is possible.
func (s StreamStatus) IsTerminal() bool {
	return s == StreamStatusCompleted || s == StreamStatusCancelled
}

// EventType names an engine transition.
type EventType string

const (
	EventStreamCreated   EventType = "STREAM_CREATED"
	EventStreamPaused    EventType = "STREAM_PAUSED"
	EventStreamResumed   EventType = "STREAM_RESUMED"
	EventStreamCompleted EventType = "STREAM_COMPLETED"
	EventStreamCancelled EventType = "STREAM_CANCELLED"
	EventPaymentClaimed  EventType = "PAYMENT_CLAIMED"
)

func (e EventType) String() string { return string(e) }

func (e EventType) IsValid() bool {
	switch e {
	case EventStreamCreated, EventStreamPaused, EventStreamResumed,
		EventStreamCompleted, EventStreamCancelled, EventPaymentClaimed:
		return true
	}
	return false
}

// NotificationType classifies a user-facing notification.
type NotificationType string

const (
	NotificationStreamCreated   NotificationType = "STREAM_CREATED"
	NotificationStreamPaused    NotificationType = "STREAM_PAUSED"
	NotificationStreamResumed   NotificationType = "STREAM_RESUMED"
	NotificationStreamCompleted NotificationType = "STREAM_COMPLETED"
	NotificationStreamCancelled NotificationType = "STREAM_CANCELLED"
	NotificationPaymentReceived NotificationType = "PAYMENT_RECEIVED"
	NotificationLowBalance      NotificationType = "LOW_BALANCE"
	NotificationSystem          NotificationType = "SYSTEM"
)

func (n NotificationType) String() string { return string(n) }

func (n NotificationType) IsValid() bool {
	switch n {
	case NotificationStreamCreated, NotificationStreamPaused, NotificationStreamResumed,
		NotificationStreamCompleted, NotificationStreamCancelled, NotificationPaymentReceived,
		NotificationLowBalance, NotificationSystem:
		return true
	}
	return false
}

// StreamRole selects which side of a stream a principal is on.
type StreamRole string

const (
	StreamRoleAny       StreamRole = ""
	StreamRoleSender    StreamRole = "SENDER"
	StreamRoleRecipient StreamRole = "RECIPIENT"
)

func (r StreamRole) IsValid() bool {
	switch r {
	case StreamRoleAny, StreamRoleSender, StreamRoleRecipient:
		return true
	}
	return false
}
