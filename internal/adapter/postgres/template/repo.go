// Package template implements the stream template repository using PostgreSQL.
package template

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/satstream-ledger/internal/adapter/postgres"
	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

const table = "stream_templates"

var columns = []string{"id", "name", "description", "duration_secs", "rate", "creator", "usage_count", "created_at"}

// Repo provides template persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new template repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var returning = "RETURNING " + strings.Join(columns, ", ")

// Create inserts t. Names are unique.
func (r *Repo) Create(ctx context.Context, t *domain.StreamTemplate) (*domain.StreamTemplate, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := postgres.Builder.
		Insert(table).
		Columns(columns[1:]...).
		Values(t.Name, t.Description, int64(t.Duration/time.Second), t.Rate, string(t.Creator), t.UsageCount, t.CreatedAt).
		Suffix(returning).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert stream_template: %w", err)
	}

	out, err := scanTemplate(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, postgres.MapError(err, "stream_template", t.Name)
	}
	return out, nil
}

// GetByID returns a template or domain.ErrNotFound.
func (r *Repo) GetByID(ctx context.Context, id int64) (*domain.StreamTemplate, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := postgres.Builder.Select(columns...).From(table).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select stream_template: %w", err)
	}

	out, err := scanTemplate(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, postgres.MapError(err, "stream_template", id)
	}
	return out, nil
}

// List returns every template ordered by id.
func (r *Repo) List(ctx context.Context) ([]*domain.StreamTemplate, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := postgres.Builder.Select(columns...).From(table).OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list stream_templates: %w", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list stream_templates: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.StreamTemplate, error) {
		return scanTemplate(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan stream_templates: %w", err)
	}
	return out, nil
}

// IncrementUsage bumps usage_count and returns the updated template.
func (r *Repo) IncrementUsage(ctx context.Context, id int64) (*domain.StreamTemplate, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := postgres.Builder.
		Update(table).
		Set("usage_count", squirrel.Expr("usage_count + 1")).
		Where(squirrel.Eq{"id": id}).
		Suffix(returning).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build increment stream_template usage: %w", err)
	}

	out, err := scanTemplate(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, postgres.MapError(err, "stream_template", id)
	}
	return out, nil
}

func scanTemplate(row pgx.Row) (*domain.StreamTemplate, error) {
	var (
		t            domain.StreamTemplate
		durationSecs int64
		creator      string
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &durationSecs, &t.Rate, &creator, &t.UsageCount, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Duration = time.Duration(durationSecs) * time.Second
	t.Creator = domain.Principal(creator)
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}
