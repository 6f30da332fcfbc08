package notification

import (
	"strings"
	"time"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

const (
	defaultRetryBase = 100 * time.Millisecond
	maxMessageLen    = 1000
)

// ListInput holds the parameters for listing notifications.
type ListInput struct {
	UnreadOnly bool
	Type       *domain.NotificationType
	Limit      int
	Offset     int
}

// Validate checks all fields and collects all errors.
func (i ListInput) Validate() error {
	var errs []domain.FieldError
	if i.Limit < 0 {
		errs = append(errs, domain.FieldError{Field: "limit", Message: "must be non-negative"})
	}
	if i.Limit > MaxLimit {
		errs = append(errs, domain.FieldError{Field: "limit", Message: "max 200"})
	}
	if i.Offset < 0 {
		errs = append(errs, domain.FieldError{Field: "offset", Message: "must be non-negative"})
	}
	if i.Type != nil && !i.Type.IsValid() {
		errs = append(errs, domain.FieldError{Field: "type", Message: "unknown notification type"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// SystemInput holds a free-form system notification.
type SystemInput struct {
	Recipient domain.Principal
	Message   string
}

// Validate checks all fields and collects all errors.
func (i SystemInput) Validate() error {
	var errs []domain.FieldError
	if !i.Recipient.Valid() {
		errs = append(errs, domain.FieldError{Field: "recipient", Message: "malformed principal"})
	}
	msg := strings.TrimSpace(i.Message)
	if msg == "" {
		errs = append(errs, domain.FieldError{Field: "message", Message: "required"})
	}
	if len(msg) > maxMessageLen {
		errs = append(errs, domain.FieldError{Field: "message", Message: "max 1000 characters"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}
