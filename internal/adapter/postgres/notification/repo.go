// Package notification implements the notification repository using PostgreSQL.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/satstream-ledger/internal/adapter/postgres"
	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

const table = "notifications"

var columns = []string{"id", "stream_id", "recipient", "type", "message", "read", "created_at"}

// Repo provides notification persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new notification repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a notification or domain.ErrNotFound.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := postgres.Builder.Select(columns...).From(table).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select notification: %w", err)
	}

	n, err := scanNotification(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, postgres.MapError(err, "notification", id)
	}
	return n, nil
}

// List returns a page of a recipient's notifications, newest first, and
// the total number matching filter.
func (r *Repo) List(ctx context.Context, recipient domain.Principal, filter domain.NotificationFilter, limit, offset int) ([]*domain.Notification, int, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	where := squirrel.And{squirrel.Eq{"recipient": string(recipient)}}
	if filter.UnreadOnly {
		where = append(where, squirrel.Eq{"read": false})
	}
	if filter.Type != nil {
		where = append(where, squirrel.Eq{"type": string(*filter.Type)})
	}

	countSQL, countArgs, err := postgres.Builder.Select("count(*)").From(table).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count notifications: %w", err)
	}
	var total int
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	sb := postgres.Builder.Select(columns...).From(table).Where(where).
		OrderBy("created_at DESC", "id DESC").
		Offset(uint64(offset))
	if limit > 0 {
		sb = sb.Limit(uint64(limit))
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list notifications: %w", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Notification, error) {
		return scanNotification(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan notifications: %w", err)
	}
	return items, total, nil
}

// CountUnread returns the number of unread notifications for recipient.
func (r *Repo) CountUnread(ctx context.Context, recipient domain.Principal) (int, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var n int
	err := q.QueryRow(ctx, `SELECT count(*) FROM notifications WHERE recipient = $1 AND NOT read`, string(recipient)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// ExistsForStream reports whether a notification of type typ exists for the stream.
func (r *Repo) ExistsForStream(ctx context.Context, streamID int64, typ domain.NotificationType) (bool, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE stream_id = $1 AND type = $2)`,
		streamID, string(typ),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("notification exists for stream %d: %w", streamID, err)
	}
	return exists, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts n and returns the persisted notification.
func (r *Repo) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := postgres.Builder.
		Insert(table).
		Columns(columns...).
		Values(n.ID, n.StreamID, string(n.Recipient), string(n.Type), n.Message, n.Read, n.CreatedAt).
		Suffix("RETURNING " + strings.Join(columns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert notification: %w", err)
	}

	out, err := scanNotification(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, postgres.MapError(err, "notification", n.ID)
	}
	return out, nil
}

// MarkRead sets the read flag.
func (r *Repo) MarkRead(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, `UPDATE notifications SET read = true WHERE id = $1`, id)
}

// Delete removes a notification.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, `DELETE FROM notifications WHERE id = $1`, id)
}

func (r *Repo) execOne(ctx context.Context, sql string, id uuid.UUID) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx, sql, id)
	if err != nil {
		return postgres.MapError(err, "notification", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteAll removes every notification addressed to recipient. Returns the
// number of deleted rows.
func (r *Repo) DeleteAll(ctx context.Context, recipient domain.Principal) (int, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx, `DELETE FROM notifications WHERE recipient = $1`, string(recipient))
	if err != nil {
		return 0, fmt.Errorf("delete all notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteReadBefore removes read notifications created before t.
func (r *Repo) DeleteReadBefore(ctx context.Context, t time.Time) (int, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx, `DELETE FROM notifications WHERE read AND created_at < $1`, t)
	if err != nil {
		return 0, fmt.Errorf("delete read notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var (
		n         domain.Notification
		recipient string
		typ       string
	)
	if err := row.Scan(&n.ID, &n.StreamID, &recipient, &typ, &n.Message, &n.Read, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Recipient = domain.Principal(recipient)
	n.Type = domain.NotificationType(typ)
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}
