// Package event implements the append-only stream event log using PostgreSQL.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/satstream-ledger/internal/adapter/postgres"
	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

const table = "stream_events"

const insertEventSQL = `
INSERT INTO stream_events (stream_id, type, actor, amount, fee, snapshot, at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING seq`

var columns = []string{"seq", "stream_id", "type", "actor", "amount", "fee", "snapshot", "at"}

// Repo provides event log persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new event repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Append inserts events in one batch and sets their Seq.
func (r *Repo) Append(ctx context.Context, events []domain.StreamEvent) error {
	if len(events) == 0 {
		return nil
	}
	q := postgres.QuerierFromCtx(ctx, r.pool)

	batch := &pgx.Batch{}
	for _, ev := range events {
		snapshot, err := json.Marshal(ev.Stream)
		if err != nil {
			return fmt.Errorf("stream_event marshal snapshot: %w", err)
		}
		batch.Queue(insertEventSQL, ev.StreamID, string(ev.Type), string(ev.Actor), ev.Amount, ev.Fee, snapshot, ev.At)
	}

	br := q.SendBatch(ctx, batch)
	defer br.Close()

	for i := range events {
		if err := br.QueryRow().Scan(&events[i].Seq); err != nil {
			return postgres.MapError(err, "stream_event", events[i].StreamID)
		}
	}
	return nil
}

// ListByStream returns a stream's events oldest first. limit <= 0 means all.
func (r *Repo) ListByStream(ctx context.Context, streamID int64, limit int) ([]domain.StreamEvent, error) {
	sb := postgres.Builder.
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"stream_id": streamID}).
		OrderBy("seq ASC")
	if limit > 0 {
		sb = sb.Limit(uint64(limit))
	}
	return r.list(ctx, sb)
}

// ListPending returns up to limit events no one has marked notified, oldest
// first. Inside a transaction the rows stay locked until it ends and are
// skipped by concurrent callers, so two processes never hand out the same
// event.
func (r *Repo) ListPending(ctx context.Context, limit int) ([]domain.StreamEvent, error) {
	sb := postgres.Builder.
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"notified_at": nil}).
		OrderBy("seq ASC")
	if postgres.InTx(ctx) {
		sb = sb.Suffix("FOR UPDATE SKIP LOCKED")
	}
	if limit > 0 {
		sb = sb.Limit(uint64(limit))
	}
	return r.list(ctx, sb)
}

// MarkNotified stamps the events with the given seqs as handled. Every seq
// must still be pending, otherwise nothing is stamped and domain.ErrConflict
// is returned.
func (r *Repo) MarkNotified(ctx context.Context, seqs []int64, at time.Time) error {
	if len(seqs) == 0 {
		return nil
	}
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := postgres.Builder.
		Update(table).
		Set("notified_at", at).
		Where(squirrel.Eq{"seq": seqs, "notified_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark stream_events: %w", err)
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "stream_event", seqs[0])
	}
	if n := tag.RowsAffected(); n != int64(len(seqs)) {
		return fmt.Errorf("stream_event mark notified: %d of %d pending: %w", n, len(seqs), domain.ErrConflict)
	}
	return nil
}

func (r *Repo) list(ctx context.Context, sb squirrel.SelectBuilder) ([]domain.StreamEvent, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list stream_events: %w", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list stream_events: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.StreamEvent, error) {
		var (
			ev       domain.StreamEvent
			typ      string
			actor    string
			snapshot []byte
		)
		if err := row.Scan(&ev.Seq, &ev.StreamID, &typ, &actor, &ev.Amount, &ev.Fee, &snapshot, &ev.At); err != nil {
			return domain.StreamEvent{}, err
		}
		if err := json.Unmarshal(snapshot, &ev.Stream); err != nil {
			return domain.StreamEvent{}, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		ev.Type = domain.EventType(typ)
		ev.Actor = domain.Principal(actor)
		ev.At = ev.At.UTC()
		return ev, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan stream_events: %w", err)
	}
	return out, nil
}
