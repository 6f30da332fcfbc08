package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

type notificationRow = domain.Notification

// NotificationRepo stores notifications.
type NotificationRepo struct {
	store *Store
}

// NewNotificationRepo creates a NotificationRepo over s.
func NewNotificationRepo(s *Store) *NotificationRepo {
	return &NotificationRepo{store: s}
}

func cloneNotification(n domain.Notification) *domain.Notification {
	if n.StreamID != nil {
		v := *n.StreamID
		n.StreamID = &v
	}
	return &n
}

// Create stores n. Its ID must be unique.
func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	key := n.ID.String()
	if _, ok := st.notifications[key]; ok {
		return nil, fmt.Errorf("notification %s: %w", n.ID, domain.ErrAlreadyExists)
	}
	st.notifications[key] = *cloneNotification(*n)

	st.record(ctx, func() { delete(st.notifications, key) })
	return cloneNotification(*n), nil
}

// GetByID returns a notification or domain.ErrNotFound.
func (r *NotificationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Notification, error) {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	row, ok := st.notifications[id.String()]
	if !ok {
		return nil, fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
	}
	return cloneNotification(row), nil
}

// List returns a page of a recipient's notifications, newest first, and
// the total number matching filter.
func (r *NotificationRepo) List(_ context.Context, recipient domain.Principal, filter domain.NotificationFilter, limit, offset int) ([]*domain.Notification, int, error) {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	var all []*domain.Notification
	for _, row := range st.notifications {
		if row.Recipient != recipient {
			continue
		}
		if filter.UnreadOnly && row.Read {
			continue
		}
		if filter.Type != nil && row.Type != *filter.Type {
			continue
		}
		all = append(all, cloneNotification(row))
	}
	slices.SortFunc(all, func(a, b *domain.Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(b.ID[:], a.ID[:])
	})

	total := len(all)
	if offset >= total {
		return []*domain.Notification{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

// MarkRead sets the read flag.
func (r *NotificationRepo) MarkRead(ctx context.Context, id uuid.UUID) error {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	key := id.String()
	prev, ok := st.notifications[key]
	if !ok {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
	}
	row := prev
	row.Read = true
	st.notifications[key] = row

	st.record(ctx, func() { st.notifications[key] = prev })
	return nil
}

// Delete removes a notification.
func (r *NotificationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	key := id.String()
	prev, ok := st.notifications[key]
	if !ok {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
	}
	delete(st.notifications, key)

	st.record(ctx, func() { st.notifications[key] = prev })
	return nil
}

// DeleteAll removes every notification addressed to recipient.
func (r *NotificationRepo) DeleteAll(ctx context.Context, recipient domain.Principal) (int, error) {
	return r.deleteWhere(ctx, func(n domain.Notification) bool { return n.Recipient == recipient })
}

// DeleteReadBefore removes read notifications created before t.
func (r *NotificationRepo) DeleteReadBefore(ctx context.Context, t time.Time) (int, error) {
	return r.deleteWhere(ctx, func(n domain.Notification) bool { return n.Read && n.CreatedAt.Before(t) })
}

func (r *NotificationRepo) deleteWhere(ctx context.Context, match func(domain.Notification) bool) (int, error) {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	removed := make(map[string]notificationRow)
	for key, row := range st.notifications {
		if match(row) {
			removed[key] = row
			delete(st.notifications, key)
		}
	}

	st.record(ctx, func() {
		for key, row := range removed {
			st.notifications[key] = row
		}
	})
	return len(removed), nil
}

// CountUnread returns the number of unread notifications for recipient.
func (r *NotificationRepo) CountUnread(_ context.Context, recipient domain.Principal) (int, error) {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	n := 0
	for _, row := range st.notifications {
		if row.Recipient == recipient && !row.Read {
			n++
		}
	}
	return n, nil
}

// ExistsForStream reports whether a notification of type typ was ever
// stored for the stream and has not been deleted.
func (r *NotificationRepo) ExistsForStream(_ context.Context, streamID int64, typ domain.NotificationType) (bool, error) {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, row := range st.notifications {
		if row.Type == typ && row.StreamID != nil && *row.StreamID == streamID {
			return true, nil
		}
	}
	return false, nil
}
