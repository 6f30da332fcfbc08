package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

// ListResult is one page of notifications.
type ListResult struct {
	Items       []*domain.Notification
	TotalCount  int
	UnreadCount int
}

// List returns the caller's notifications, newest first.
func (s *Service) List(ctx context.Context, caller domain.Principal, input ListInput) (ListResult, error) {
	caller = domain.NormalizePrincipal(string(caller))
	if !caller.Valid() {
		return ListResult{}, domain.ErrUnauthorized
	}
	if err := input.Validate(); err != nil {
		return ListResult{}, err
	}

	limit := input.Limit
	if limit == 0 {
		limit = DefaultLimit
	}

	filter := domain.NotificationFilter{UnreadOnly: input.UnreadOnly, Type: input.Type}
	items, total, err := s.repo.List(ctx, caller, filter, limit, input.Offset)
	if err != nil {
		return ListResult{}, fmt.Errorf("list notifications: %w", domain.AsPersistence(err))
	}
	unread, err := s.repo.CountUnread(ctx, caller)
	if err != nil {
		return ListResult{}, fmt.Errorf("count unread notifications: %w", domain.AsPersistence(err))
	}

	return ListResult{Items: items, TotalCount: total, UnreadCount: unread}, nil
}

// UnreadCount returns how many of the principal's notifications are unread.
func (s *Service) UnreadCount(ctx context.Context, p domain.Principal) (int, error) {
	n, err := s.repo.CountUnread(ctx, domain.NormalizePrincipal(string(p)))
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", domain.AsPersistence(err))
	}
	return n, nil
}

// owned loads a notification and checks it is addressed to caller.
func (s *Service) owned(ctx context.Context, id uuid.UUID, caller domain.Principal) (*domain.Notification, error) {
	if id == uuid.Nil {
		return nil, domain.NewValidationError("id", "required")
	}
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.AsPersistence(err)
	}
	if n.Recipient != domain.NormalizePrincipal(string(caller)) {
		return nil, fmt.Errorf("notification %s: %w", id, domain.ErrUnauthorized)
	}
	return n, nil
}

// MarkRead acknowledges a notification. Only its recipient may do so.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID, caller domain.Principal) error {
	n, err := s.owned(ctx, id, caller)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n.Read {
		return nil
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return fmt.Errorf("mark notification read: %w", domain.AsPersistence(err))
	}
	return nil
}

// Delete removes a notification. Only its recipient may do so.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, caller domain.Principal) error {
	if _, err := s.owned(ctx, id, caller); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete notification: %w", domain.AsPersistence(err))
	}

	s.log.InfoContext(ctx, "notification deleted", "notification_id", id, "recipient", caller)
	return nil
}

// ClearAll removes every notification addressed to caller.
func (s *Service) ClearAll(ctx context.Context, caller domain.Principal) (int, error) {
	caller = domain.NormalizePrincipal(string(caller))
	if !caller.Valid() {
		return 0, domain.ErrUnauthorized
	}
	n, err := s.repo.DeleteAll(ctx, caller)
	if err != nil {
		return 0, fmt.Errorf("clear notifications: %w", domain.AsPersistence(err))
	}

	s.log.InfoContext(ctx, "notifications cleared", "recipient", caller, "count", n)
	return n, nil
}

// NotifySystem stores a system notification for one principal.
func (s *Service) NotifySystem(ctx context.Context, input SystemInput) (uuid.UUID, error) {
	input.Recipient = domain.NormalizePrincipal(string(input.Recipient))
	if err := input.Validate(); err != nil {
		return uuid.Nil, err
	}

	ids, err := s.store(ctx, nil, s.clock.Now(), []draft{{
		recipient: input.Recipient,
		typ:       domain.NotificationSystem,
		message:   strings.TrimSpace(input.Message),
	}})
	if err != nil {
		return uuid.Nil, fmt.Errorf("notify system: %w", err)
	}
	return ids[0], nil
}
