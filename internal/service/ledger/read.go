package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

// Buffer returns the stream with its claimable balance at the current time,
// completing it first if its lock has fully accrued.
func (e *Engine) Buffer(ctx context.Context, id int64) (domain.StreamView, error) {
	c, err := e.load(ctx, id)
	if err != nil {
		return domain.StreamView{}, err
	}

	now := e.clock.Now()
	s := c.snapshot()
	if !s.FullyAccrued(now) {
		return domain.ViewAt(s, now), nil
	}

	s, err = e.touch(ctx, id)
	if err != nil {
		return domain.StreamView{}, err
	}
	return domain.ViewAt(s, e.clock.Now()), nil
}

// GetStream is an alias of Buffer for callers that want the stream itself.
func (e *Engine) GetStream(ctx context.Context, id int64) (domain.Stream, error) {
	v, err := e.Buffer(ctx, id)
	return v.Stream, err
}

// History returns the persisted transition log of a stream, oldest first.
// limit <= 0 means all events.
func (e *Engine) History(ctx context.Context, id int64, limit int) ([]domain.StreamEvent, error) {
	if _, err := e.load(ctx, id); err != nil {
		return nil, err
	}
	events, err := e.events.ListByStream(ctx, id, limit)
	if err != nil {
		return nil, domain.AsPersistence(fmt.Errorf("stream %d history: %w", id, err))
	}
	return events, nil
}

func (e *Engine) touch(ctx context.Context, id int64) (domain.Stream, error) {
	s, _, err := e.apply(ctx, id, func(s *domain.Stream, now time.Time) ([]domain.StreamEvent, error) {
		return settle(s, now), nil
	})
	return s, err
}

// ListStreamsForUser returns the streams where principal is sender or
// recipient (narrowed by filter.Role and filter.Status), ordered by id.
func (e *Engine) ListStreamsForUser(ctx context.Context, principal domain.Principal, filter domain.StreamFilter) ([]domain.StreamView, error) {
	principal = domain.NormalizePrincipal(string(principal))
	if !principal.Valid() {
		return nil, domain.NewValidationError("principal", "malformed principal")
	}
	if !filter.Role.IsValid() {
		return nil, domain.NewValidationError("role", "unknown role")
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, domain.NewValidationError("limit", "must not be negative")
	}

	now := e.clock.Now()
	var ids []int64
	e.arena.Range(func(id int64, c *cell) bool {
		s := c.snapshot()
		if involves(s, principal, filter.Role) {
			ids = append(ids, id)
		}
		return true
	})
	slices.Sort(ids)

	views := make([]domain.StreamView, 0, len(ids))
	for _, id := range ids {
		c, _ := e.arena.Load(id)
		s := c.snapshot()
		if s.FullyAccrued(now) {
			var err error
			if s, err = e.touch(ctx, id); err != nil {
				return nil, err
			}
		}
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		views = append(views, domain.ViewAt(s, now))
	}

	if filter.Offset >= len(views) {
		return []domain.StreamView{}, nil
	}
	views = views[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(views) {
		views = views[:filter.Limit]
	}
	return views, nil
}

func involves(s domain.Stream, p domain.Principal, role domain.StreamRole) bool {
	switch role {
	case domain.StreamRoleSender:
		return s.Sender == p
	case domain.StreamRoleRecipient:
		return s.Recipient == p
	default:
		return s.Sender == p || s.Recipient == p
	}
}

// Snapshot returns a copy of every stream, ordered by id. Each copy is
// internally consistent; the set as a whole is not transactional.
func (e *Engine) Snapshot() []domain.Stream {
	out := make([]domain.Stream, 0, e.arena.Size())
	e.arena.Range(func(_ int64, c *cell) bool {
		out = append(out, c.snapshot())
		return true
	})
	slices.SortFunc(out, func(a, b domain.Stream) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Restore loads every stream from the store into the arena.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	n, err := e.Refresh(ctx)
	if err != nil {
		return 0, err
	}
	e.log.InfoContext(ctx, "streams restored", "count", e.arena.Size())
	return n, nil
}

// Refresh merges the stored streams into the arena: streams created by
// other processes are added and cells older than their stored version are
// replaced. It returns how many cells it added or replaced.
func (e *Engine) Refresh(ctx context.Context) (int, error) {
	streams, err := e.streams.List(ctx, domain.StreamFilter{})
	if err != nil {
		return 0, domain.AsPersistence(fmt.Errorf("refresh streams: %w", err))
	}

	changed := 0
	for _, s := range streams {
		c, loaded := e.arena.LoadOrStore(s.ID, newCell(*s))
		if !loaded {
			changed++
			continue
		}
		c.mu.Lock()
		if s.Version > c.state.Load().Version {
			c.state.Store(s)
			changed++
		}
		c.mu.Unlock()
	}
	return changed, nil
}

// TouchActive refreshes the arena from the store, then completes every
// Active stream whose lock has fully accrued, using a bounded worker pool.
// It returns how many streams it completed.
func (e *Engine) TouchActive(ctx context.Context) (int, error) {
	if _, err := e.Refresh(ctx); err != nil {
		return 0, err
	}

	now := e.clock.Now()
	var due []int64
	e.arena.Range(func(id int64, c *cell) bool {
		s := c.snapshot()
		if s.FullyAccrued(now) {
			due = append(due, id)
		}
		return true
	})
	if len(due) == 0 {
		return 0, nil
	}

	workers := max(e.limits.TouchWorkers, 1)
	pool := pond.NewPool(workers, pond.WithQueueSize(len(due)))
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	var completed atomic.Int64
	var failures atomic.Int64
	for _, id := range due {
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			s, err := e.touch(groupCtx, id)
			if err != nil {
				failures.Add(1)
				e.log.WarnContext(groupCtx, "touch stream", "stream_id", id, "error", err)
				return
			}
			if s.Status == domain.StreamStatusCompleted {
				completed.Add(1)
			}
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return int(completed.Load()), fmt.Errorf("touch active streams: %w", err)
	}
	if n := failures.Load(); n > 0 {
		return int(completed.Load()), fmt.Errorf("touch active streams: %d failed: %w", n, domain.ErrPersistence)
	}
	return int(completed.Load()), nil
}
