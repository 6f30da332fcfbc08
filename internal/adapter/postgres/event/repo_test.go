package event_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/heartmarshall/satstream-ledger/internal/adapter/postgres"
	"github.com/heartmarshall/satstream-ledger/internal/adapter/postgres/event"
	"github.com/heartmarshall/satstream-ledger/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

func TestRepo_AppendAndList(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := event.New(pool)
	ctx := context.Background()

	s := testhelper.SeedStream(t, pool)
	at := s.CreatedAt.Add(30 * time.Second)
	claimed := s
	claimed.Claimed = 300
	claimed.AccruedAtAnchor = 300

	events := []domain.StreamEvent{
		{Type: domain.EventStreamCreated, StreamID: s.ID, Actor: s.Sender, Stream: s, At: s.CreatedAt},
		{Type: domain.EventPaymentClaimed, StreamID: s.ID, Actor: s.Recipient, Amount: 300, Stream: claimed, At: at},
	}
	if err := repo.Append(ctx, events); err != nil {
		t.Fatalf("Append: unexpected error: %v", err)
	}
	if events[0].Seq == 0 || events[1].Seq <= events[0].Seq {
		t.Fatalf("Append: seqs not assigned in order: %d, %d", events[0].Seq, events[1].Seq)
	}
	if err := repo.Append(ctx, nil); err != nil {
		t.Fatalf("Append empty: unexpected error: %v", err)
	}

	got, err := repo.ListByStream(ctx, s.ID, 0)
	if err != nil {
		t.Fatalf("ListByStream: unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByStream: got %d events, want 2", len(got))
	}
	if got[1].Seq != events[1].Seq {
		t.Errorf("second event seq: got %d, want %d", got[1].Seq, events[1].Seq)
	}
	if got[1].Type != domain.EventPaymentClaimed || got[1].Amount != 300 || got[1].Actor != s.Recipient {
		t.Errorf("second event mismatch: %+v", got[1])
	}
	if got[1].Stream.Claimed != 300 || got[1].Stream.ID != s.ID {
		t.Errorf("snapshot mismatch: %+v", got[1].Stream)
	}
	if !got[1].At.Equal(at) {
		t.Errorf("At mismatch: got %s, want %s", got[1].At, at)
	}

	first, err := repo.ListByStream(ctx, s.ID, 1)
	if err != nil {
		t.Fatalf("ListByStream limit: unexpected error: %v", err)
	}
	if len(first) != 1 || first[0].Type != domain.EventStreamCreated {
		t.Errorf("ListByStream limit: got %+v", first)
	}
}

func TestRepo_PendingAndMarkNotified(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := event.New(pool)
	tx := postgres.NewTxManager(pool)
	ctx := context.Background()

	s := testhelper.SeedStream(t, pool)
	cancelled := s
	cancelled.Status = domain.StreamStatusCancelled
	cancelled.Refunded = 1000
	cancelled.CancelFee = 10
	events := []domain.StreamEvent{
		{Type: domain.EventStreamCreated, StreamID: s.ID, Actor: s.Sender, Stream: s, At: s.CreatedAt},
		{Type: domain.EventStreamCancelled, StreamID: s.ID, Actor: s.Sender, Amount: 1000, Fee: 10, Stream: cancelled, At: s.CreatedAt},
	}
	if err := repo.Append(ctx, events); err != nil {
		t.Fatalf("Append: unexpected error: %v", err)
	}

	pending := pendingSeqs(t, ctx, repo)
	if !pending[events[0].Seq] || !pending[events[1].Seq] {
		t.Fatalf("ListPending: appended events missing from %v", pending)
	}

	err := tx.RunInTx(ctx, func(ctx context.Context) error {
		return repo.MarkNotified(ctx, []int64{events[0].Seq}, s.CreatedAt)
	})
	if err != nil {
		t.Fatalf("MarkNotified: unexpected error: %v", err)
	}

	pending = pendingSeqs(t, ctx, repo)
	if pending[events[0].Seq] || !pending[events[1].Seq] {
		t.Errorf("after mark: pending %v, want only %d", pending, events[1].Seq)
	}

	err = repo.MarkNotified(ctx, []int64{events[0].Seq, events[1].Seq}, s.CreatedAt)
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("MarkNotified twice: got %v, want ErrConflict", err)
	}

	got, err := repo.ListByStream(ctx, s.ID, 0)
	if err != nil {
		t.Fatalf("ListByStream: unexpected error: %v", err)
	}
	if len(got) != 2 || got[1].Fee != 10 || got[1].Stream.CancelFee != 10 {
		t.Errorf("fee not persisted: %+v", got)
	}
}

func pendingSeqs(t *testing.T, ctx context.Context, repo *event.Repo) map[int64]bool {
	t.Helper()
	evs, err := repo.ListPending(ctx, 0)
	if err != nil {
		t.Fatalf("ListPending: unexpected error: %v", err)
	}
	out := make(map[int64]bool, len(evs))
	for _, ev := range evs {
		out[ev.Seq] = true
	}
	return out
}
