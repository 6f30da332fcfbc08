package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
	"github.com/heartmarshall/satstream-ledger/pkg/ctxutil"
)

// cell holds one stream. mu serialises transitions; state is swapped only
// after the store has committed, so readers see the pre- or post-state.
type cell struct {
	mu    sync.Mutex
	state atomic.Pointer[domain.Stream]
}

func newCell(s domain.Stream) *cell {
	c := &cell{}
	c.state.Store(&s)
	return c
}

func (c *cell) snapshot() domain.Stream {
	return *c.state.Load()
}

// transition mutates s in place. A transition that fails may still return
// events it applied before failing (lazy auto-completion); those are
// committed and the error is reported.
type transition func(s *domain.Stream, now time.Time) ([]domain.StreamEvent, error)

func (e *Engine) load(ctx context.Context, id int64) (*cell, error) {
	if c, ok := e.arena.Load(id); ok {
		return c, nil
	}
	s, err := e.streams.GetByID(ctx, id)
	if err != nil {
		return nil, domain.AsPersistence(err)
	}
	c, _ := e.arena.LoadOrStore(id, newCell(*s))
	return c, nil
}

// maxConflictRetries bounds how often apply reloads a stream that another
// process changed underneath it.
const maxConflictRetries = 3

// apply runs op under the stream lock and commits whatever it changed. When
// the store holds a newer version, the cell is reloaded and op runs again
// on the fresh state.
func (e *Engine) apply(ctx context.Context, id int64, op transition) (domain.Stream, []domain.StreamEvent, error) {
	c, err := e.load(ctx, id)
	if err != nil {
		return domain.Stream{}, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 0; ; attempt++ {
		now := e.clock.Now()
		next := c.snapshot()
		events, opErr := op(&next, now)
		if len(events) == 0 {
			return c.snapshot(), nil, opErr
		}

		err := e.commit(ctx, c, &next, events, now)
		if errors.Is(err, domain.ErrConflict) && attempt < maxConflictRetries {
			e.log.InfoContext(ctx, "stream changed by another writer, reloading",
				"stream_id", id,
				"version", next.Version,
				"attempt", attempt+1,
			)
			if err := e.reload(ctx, c, id); err != nil {
				return c.snapshot(), nil, err
			}
			continue
		}
		if err != nil {
			return c.snapshot(), nil, err
		}
		return next, events, opErr
	}
}

// reload replaces the cell state with the stored row. Caller holds c.mu.
func (e *Engine) reload(ctx context.Context, c *cell, id int64) error {
	s, err := e.streams.GetByID(ctx, id)
	if err != nil {
		return domain.AsPersistence(fmt.Errorf("reload stream %d: %w", id, err))
	}
	c.state.Store(s)
	return nil
}

// commit persists next and its events in one transaction, moves funds,
// swaps the cell state and publishes. Caller holds c.mu.
func (e *Engine) commit(ctx context.Context, c *cell, next *domain.Stream, events []domain.StreamEvent, now time.Time) error {
	next.UpdatedAt = now
	base := next.Version

	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := e.streams.Update(ctx, next); err != nil {
			return fmt.Errorf("update stream %d: %w", next.ID, err)
		}
		for i := range events {
			events[i].StreamID = next.ID
			events[i].At = now
			events[i].Stream = *next
		}
		if err := e.events.Append(ctx, events); err != nil {
			return fmt.Errorf("append events for stream %d: %w", next.ID, err)
		}
		// funds move last: a failure here still rolls the store back
		return e.moveFunds(ctx, next, events)
	})
	if errors.Is(err, domain.ErrConflict) {
		next.Version = base
		return err
	}
	if err != nil {
		next.Version = base
		e.log.ErrorContext(ctx, "commit stream transition",
			"stream_id", next.ID,
			"request_id", ctxutil.RequestIDFromCtx(ctx),
			"error", err,
		)
		return domain.AsPersistence(err)
	}

	c.state.Store(next)
	e.publish(ctx, events)
	return nil
}

func (e *Engine) moveFunds(ctx context.Context, s *domain.Stream, events []domain.StreamEvent) error {
	for _, ev := range events {
		switch ev.Type {
		case domain.EventPaymentClaimed:
			if err := e.funds.Payout(ctx, s.Recipient, ev.Amount); err != nil {
				return fmt.Errorf("payout stream %d: %w", s.ID, err)
			}
		case domain.EventStreamCancelled:
			if err := e.funds.Refund(ctx, s.Sender, ev.Amount, ev.Fee); err != nil {
				return fmt.Errorf("refund stream %d: %w", s.ID, err)
			}
		}
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, events []domain.StreamEvent) {
	for _, ev := range events {
		if err := e.bus.Publish(ev); err != nil {
			e.log.WarnContext(ctx, "publish stream event",
				"stream_id", ev.StreamID,
				"event", ev.Type,
				"seq", ev.Seq,
				"error", err,
			)
		}
	}
}

// settle applies lazy auto-completion to an Active stream whose lock has
// fully accrued.
func settle(s *domain.Stream, now time.Time) []domain.StreamEvent {
	if !s.FullyAccrued(now) {
		return nil
	}
	s.AccruedAtAnchor = s.TotalLocked
	s.AccrualAnchor = now
	s.Status = domain.StreamStatusCompleted
	return []domain.StreamEvent{{Type: domain.EventStreamCompleted}}
}
