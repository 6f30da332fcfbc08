package ledger

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/heartmarshall/satstream-ledger/internal/adapter/memory"
	"github.com/heartmarshall/satstream-ledger/internal/clock"
	"github.com/heartmarshall/satstream-ledger/internal/config"
	"github.com/heartmarshall/satstream-ledger/internal/domain"
	"github.com/heartmarshall/satstream-ledger/internal/service/funding"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

var testLimits = config.LedgerConfig{MinRate: 1, MaxRate: 1_000_000, TouchWorkers: 4}

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []domain.StreamEvent
}

func (r *recorder) Publish(ev domain.StreamEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	engine *Engine
	clock  *clock.Manual
	escrow *funding.Escrow
	store  *memory.Store
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := slog.New(slog.DiscardHandler)
	store := memory.New()
	clk := clock.NewManual(t0)
	escrow := funding.NewEscrow(log, config.FundingConfig{InitialBalance: 1_000_000, CancelFeeBps: 100})
	rec := &recorder{}

	engine := NewEngine(log, clk, testLimits,
		memory.NewStreamRepo(store),
		memory.NewEventRepo(store),
		memory.NewTxManager(store),
		escrow,
		rec,
	)
	return &fixture{engine: engine, clock: clk, escrow: escrow, store: store, events: rec}
}

// standard creates the rate=10, lock=1000 alice→bob stream at t0.
func (f *fixture) standard(t *testing.T) domain.Stream {
	t.Helper()
	s, err := f.engine.CreateStream(context.Background(), CreateStreamInput{
		Sender:      "alice",
		Recipient:   "bob",
		Rate:        10,
		TotalLocked: 1000,
	})
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	return s
}

// peer returns a second engine over the fixture's store with its own
// arena and escrow, the way another process sharing the database runs.
func (f *fixture) peer(t *testing.T) *Engine {
	t.Helper()

	log := slog.New(slog.DiscardHandler)
	escrow := funding.NewEscrow(log, config.FundingConfig{InitialBalance: 1_000_000, CancelFeeBps: 100})
	engine := NewEngine(log, f.clock, testLimits,
		memory.NewStreamRepo(f.store),
		memory.NewEventRepo(f.store),
		memory.NewTxManager(f.store),
		escrow,
		&recorder{},
	)
	if _, err := engine.Restore(context.Background()); err != nil {
		t.Fatalf("peer Restore: %v", err)
	}
	escrow.Replay(engine.Snapshot())
	return engine
}

// stored reads a stream straight from the store.
func (f *fixture) stored(t *testing.T, id int64) *domain.Stream {
	t.Helper()
	s, err := memory.NewStreamRepo(f.store).GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("stored(%d): %v", id, err)
	}
	return s
}

func (f *fixture) at(d time.Duration) {
	f.clock.Set(t0.Add(d))
}

func (f *fixture) view(t *testing.T, id int64) domain.StreamView {
	t.Helper()
	v, err := f.engine.Buffer(context.Background(), id)
	if err != nil {
		t.Fatalf("Buffer(%d): %v", id, err)
	}
	assertConserved(t, v)
	return v
}

func assertConserved(t *testing.T, v domain.StreamView) {
	t.Helper()
	if v.Claimed < 0 || v.Buffer < 0 || v.RemainingLocked < 0 {
		t.Fatalf("negative term: claimed=%d buffer=%d remaining=%d", v.Claimed, v.Buffer, v.RemainingLocked)
	}
	if got := v.Claimed + v.Buffer + v.RemainingLocked; got != v.TotalLocked {
		t.Fatalf("conservation broken: %d + %d + %d = %d, want %d",
			v.Claimed, v.Buffer, v.RemainingLocked, got, v.TotalLocked)
	}
}
