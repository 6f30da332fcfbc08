// Package stream implements the stream repository using PostgreSQL.
package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/satstream-ledger/internal/adapter/postgres"
	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

const table = "streams"

var columns = []string{
	"id", "sender", "recipient", "rate", "total_locked", "claimed",
	"accrual_anchor", "accrued_at_anchor", "status", "duration_secs",
	"refunded", "cancel_fee", "template_id", "dedup_token", "created_at", "updated_at",
	"version",
}

// Repo provides stream persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new stream repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Create inserts s and returns it with the assigned id.
func (r *Repo) Create(ctx context.Context, s *domain.Stream) (*domain.Stream, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := postgres.Builder.
		Insert(table).
		Columns(columns[1:]...).
		Values(
			string(s.Sender), string(s.Recipient), s.Rate, s.TotalLocked, s.Claimed,
			s.AccrualAnchor, s.AccruedAtAnchor, string(s.Status), int64(s.Duration/time.Second),
			s.Refunded, s.CancelFee, s.TemplateID, s.DedupToken, s.CreatedAt, s.UpdatedAt,
			0,
		).
		Suffix("RETURNING " + strings.Join(columns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert stream: %w", err)
	}

	out, err := scanStream(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, postgres.MapError(err, "stream", s.Sender)
	}
	return out, nil
}

// Update overwrites the mutable columns of an existing stream if its stored
// version still equals s.Version, and sets s.Version to the bumped value.
// A row changed by another writer yields domain.ErrConflict.
func (r *Repo) Update(ctx context.Context, s *domain.Stream) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := postgres.Builder.
		Update(table).
		Set("claimed", s.Claimed).
		Set("accrual_anchor", s.AccrualAnchor).
		Set("accrued_at_anchor", s.AccruedAtAnchor).
		Set("status", string(s.Status)).
		Set("refunded", s.Refunded).
		Set("cancel_fee", s.CancelFee).
		Set("updated_at", s.UpdatedAt).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": s.ID, "version": s.Version}).
		Suffix("RETURNING version").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update stream: %w", err)
	}

	var version int64
	err = q.QueryRow(ctx, sql, args...).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.missOrConflict(ctx, s)
	}
	if err != nil {
		return postgres.MapError(err, "stream", s.ID)
	}
	s.Version = version
	return nil
}

// missOrConflict explains an update that matched no row.
func (r *Repo) missOrConflict(ctx context.Context, s *domain.Stream) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var stored int64
	err := q.QueryRow(ctx, `SELECT version FROM streams WHERE id = $1`, s.ID).Scan(&stored)
	if err != nil {
		return postgres.MapError(err, "stream", s.ID)
	}
	return fmt.Errorf("stream %d version %d (stored %d): %w", s.ID, s.Version, stored, domain.ErrConflict)
}

// GetByID returns a stream or domain.ErrNotFound.
func (r *Repo) GetByID(ctx context.Context, id int64) (*domain.Stream, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, id)
}

// GetByDedupToken finds the stream a sender created with token.
func (r *Repo) GetByDedupToken(ctx context.Context, sender domain.Principal, token string) (*domain.Stream, error) {
	return r.getOne(ctx, squirrel.Eq{"sender": string(sender), "dedup_token": token}, token)
}

func (r *Repo) getOne(ctx context.Context, where squirrel.Sqlizer, id any) (*domain.Stream, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := postgres.Builder.Select(columns...).From(table).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select stream: %w", err)
	}

	s, err := scanStream(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, postgres.MapError(err, "stream", id)
	}
	return s, nil
}

// List returns streams matching filter ordered by id.
func (r *Repo) List(ctx context.Context, filter domain.StreamFilter) ([]*domain.Stream, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sb := postgres.Builder.Select(columns...).From(table).OrderBy("id ASC")
	if filter.Principal != "" {
		p := string(filter.Principal)
		switch filter.Role {
		case domain.StreamRoleSender:
			sb = sb.Where(squirrel.Eq{"sender": p})
		case domain.StreamRoleRecipient:
			sb = sb.Where(squirrel.Eq{"recipient": p})
		default:
			sb = sb.Where(squirrel.Or{squirrel.Eq{"sender": p}, squirrel.Eq{"recipient": p}})
		}
	}
	if filter.Status != nil {
		sb = sb.Where(squirrel.Eq{"status": string(*filter.Status)})
	}
	if filter.Limit > 0 {
		sb = sb.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		sb = sb.Offset(uint64(filter.Offset))
	}

	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list streams: %w", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Stream, error) {
		return scanStream(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan streams: %w", err)
	}
	return out, nil
}

func scanStream(row pgx.Row) (*domain.Stream, error) {
	var (
		s                 domain.Stream
		sender, recipient string
		status            string
		durationSecs      int64
	)
	err := row.Scan(
		&s.ID, &sender, &recipient, &s.Rate, &s.TotalLocked, &s.Claimed,
		&s.AccrualAnchor, &s.AccruedAtAnchor, &status, &durationSecs,
		&s.Refunded, &s.CancelFee, &s.TemplateID, &s.DedupToken, &s.CreatedAt, &s.UpdatedAt,
		&s.Version,
	)
	if err != nil {
		return nil, err
	}
	s.Sender = domain.Principal(sender)
	s.Recipient = domain.Principal(recipient)
	s.Status = domain.StreamStatus(status)
	s.Duration = time.Duration(durationSecs) * time.Second
	s.AccrualAnchor = s.AccrualAnchor.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}
