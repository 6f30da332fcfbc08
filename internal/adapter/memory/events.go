package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

type eventRow struct {
	ev         domain.StreamEvent
	notifiedAt *time.Time
}

// EventRepo is the append-only stream event log.
type EventRepo struct {
	store *Store
}

// NewEventRepo creates an EventRepo over s.
func NewEventRepo(s *Store) *EventRepo {
	return &EventRepo{store: s}
}

// Append adds events to the log and sets their Seq.
func (r *EventRepo) Append(ctx context.Context, events []domain.StreamEvent) error {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	n := len(st.events)
	for i := range events {
		st.nextEventID++
		events[i].Seq = st.nextEventID
		st.events = append(st.events, eventRow{ev: events[i]})
	}

	st.record(ctx, func() { st.events = st.events[:n] })
	return nil
}

// ListByStream returns a stream's events oldest first. limit <= 0 means all.
func (r *EventRepo) ListByStream(_ context.Context, streamID int64, limit int) ([]domain.StreamEvent, error) {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	var out []domain.StreamEvent
	for _, row := range st.events {
		if row.ev.StreamID != streamID {
			continue
		}
		out = append(out, row.ev)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListPending returns up to limit events not yet marked notified, oldest
// first.
func (r *EventRepo) ListPending(_ context.Context, limit int) ([]domain.StreamEvent, error) {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	var out []domain.StreamEvent
	for _, row := range st.events {
		if row.notifiedAt != nil {
			continue
		}
		out = append(out, row.ev)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkNotified stamps the events with the given seqs as handled.
func (r *EventRepo) MarkNotified(ctx context.Context, seqs []int64, at time.Time) error {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	want := make(map[int64]bool, len(seqs))
	for _, seq := range seqs {
		want[seq] = true
	}

	var marked []int
	for i := range st.events {
		if !want[st.events[i].ev.Seq] || st.events[i].notifiedAt != nil {
			continue
		}
		stamp := at
		st.events[i].notifiedAt = &stamp
		marked = append(marked, i)
		delete(want, st.events[i].ev.Seq)
	}
	if len(want) > 0 {
		for i := range marked {
			st.events[marked[i]].notifiedAt = nil
		}
		return fmt.Errorf("stream_event mark notified: %d unknown or already handled: %w", len(want), domain.ErrConflict)
	}

	st.record(ctx, func() {
		for _, i := range marked {
			st.events[i].notifiedAt = nil
		}
	})
	return nil
}
