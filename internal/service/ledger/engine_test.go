package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

// ---------------------------------------------------------------------------
// CreateStream
// ---------------------------------------------------------------------------

func TestCreateStream_Success(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	s := f.standard(t)

	assert.Equal(t, int64(1), s.ID)
	assert.Equal(t, domain.StreamStatusActive, s.Status)
	assert.Equal(t, t0, s.AccrualAnchor)
	assert.Zero(t, s.AccruedAtAnchor)
	assert.Zero(t, s.Claimed)
	assert.Equal(t, int64(1_000_000-1000), f.escrow.Balance("alice"))
	assert.Equal(t, int64(1000), f.escrow.Escrowed())
	assert.Equal(t, []domain.EventType{domain.EventStreamCreated}, f.events.types())
}

func TestCreateStream_LockFromDuration(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	s, err := f.engine.CreateStream(context.Background(), CreateStreamInput{
		Sender: "alice", Recipient: "bob", Rate: 5, Duration: time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(18000), s.TotalLocked)
	assert.Equal(t, time.Hour, s.Duration)
}

func TestCreateStream_NormalizesPrincipals(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	s, err := f.engine.CreateStream(context.Background(), CreateStreamInput{
		Sender: " Alice ", Recipient: "BOB", Rate: 1, TotalLocked: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Principal("alice"), s.Sender)
	assert.Equal(t, domain.Principal("bob"), s.Recipient)
}

func TestCreateStream_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    CreateStreamInput
		field string
	}{
		{"zero rate", CreateStreamInput{Sender: "alice", Recipient: "bob", TotalLocked: 10}, "rate"},
		{"negative lock", CreateStreamInput{Sender: "alice", Recipient: "bob", Rate: 1, TotalLocked: -1}, "total_locked"},
		{"no lock no duration", CreateStreamInput{Sender: "alice", Recipient: "bob", Rate: 1}, "total_locked"},
		{"same principal", CreateStreamInput{Sender: "alice", Recipient: "alice", Rate: 1, TotalLocked: 10}, "recipient"},
		{"malformed recipient", CreateStreamInput{Sender: "alice", Recipient: "b@b", Rate: 1, TotalLocked: 10}, "recipient"},
		{"malformed sender", CreateStreamInput{Sender: "", Recipient: "bob", Rate: 1, TotalLocked: 10}, "sender"},
		{"rate above max", CreateStreamInput{Sender: "alice", Recipient: "bob", Rate: 2_000_000, TotalLocked: 10}, "rate"},
		{"negative duration", CreateStreamInput{Sender: "alice", Recipient: "bob", Rate: 1, TotalLocked: 10, Duration: -time.Second}, "duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			_, err := f.engine.CreateStream(context.Background(), tt.in)

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			require.ErrorIs(t, err, domain.ErrValidation)
			fields := make([]string, len(ve.Errors))
			for i, fe := range ve.Errors {
				fields[i] = fe.Field
			}
			assert.Contains(t, fields, tt.field)
			assert.Empty(t, f.events.types())
			assert.Zero(t, f.escrow.Escrowed())
		})
	}
}

func TestCreateStream_InsufficientFunds(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.engine.CreateStream(context.Background(), CreateStreamInput{
		Sender: "alice", Recipient: "bob", Rate: 1, TotalLocked: 1_000_001,
	})

	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Empty(t, f.engine.Snapshot())
	assert.Empty(t, f.events.types())
}

func TestCreateStream_DedupToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	in := CreateStreamInput{Sender: "alice", Recipient: "bob", Rate: 10, TotalLocked: 1000, DedupToken: "invoice-9"}
	first, err := f.engine.CreateStream(ctx, in)
	require.NoError(t, err)

	second, err := f.engine.CreateStream(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1000), f.escrow.Escrowed(), "funds reserved once")
	assert.Len(t, f.engine.Snapshot(), 1)
}

func TestCreateStream_PersistFailureReleasesFunds(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.engine.events = &eventRepoMock{
		AppendFunc: func(ctx context.Context, events []domain.StreamEvent) error {
			return errors.New("disk full")
		},
	}

	_, err := f.engine.CreateStream(context.Background(), CreateStreamInput{
		Sender: "alice", Recipient: "bob", Rate: 10, TotalLocked: 1000,
	})

	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.True(t, domain.IsRetryable(err))
	assert.Zero(t, f.escrow.Escrowed())
	assert.Equal(t, int64(1_000_000), f.escrow.Balance("alice"))
	assert.Empty(t, f.engine.Snapshot())
}

func TestCreateStream_KeepsCellLoadedMeanwhile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	// id 1 is what the store assigns next; a dedup lookup racing the
	// create can load it into the arena first
	early := newCell(domain.Stream{ID: 1, Sender: "alice", Recipient: "bob", Rate: 10, TotalLocked: 1000, Status: domain.StreamStatusActive})
	f.engine.arena.Store(1, early)

	s := f.standard(t)
	require.Equal(t, int64(1), s.ID)

	c, ok := f.engine.arena.Load(s.ID)
	require.True(t, ok)
	assert.Same(t, early, c, "create must not replace a cell other callers hold")
}

// ---------------------------------------------------------------------------
// Accrual
// ---------------------------------------------------------------------------

func TestAccrual_Correctness(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := f.standard(t)

	f.at(50 * time.Second)
	assert.Equal(t, int64(500), f.view(t, s.ID).Buffer)

	f.at(200 * time.Second)
	v := f.view(t, s.ID)
	assert.Equal(t, int64(1000), v.Buffer)
	assert.Equal(t, domain.StreamStatusCompleted, v.Status)
	assert.Equal(t, []domain.EventType{domain.EventStreamCreated, domain.EventStreamCompleted}, f.events.types())

	// completion is detected once
	f.view(t, s.ID)
	assert.Len(t, f.events.types(), 2)
}

func TestAccrual_PauseFreezes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := f.standard(t)

	f.at(30 * time.Second)
	require.NoError(t, f.engine.PauseStream(ctx, s.ID, "alice"))
	assert.Equal(t, int64(300), f.view(t, s.ID).Buffer)

	f.at(1000 * time.Second)
	v := f.view(t, s.ID)
	assert.Equal(t, int64(300), v.Buffer)
	assert.Equal(t, domain.StreamStatusPaused, v.Status)
	assert.Zero(t, v.TimeRemaining)

	require.NoError(t, f.engine.ResumeStream(ctx, s.ID, "alice"))
	f.at(1030 * time.Second)
	assert.Equal(t, int64(600), f.view(t, s.ID).Buffer)

	assert.Equal(t, []domain.EventType{
		domain.EventStreamCreated, domain.EventStreamPaused, domain.EventStreamResumed,
	}, f.events.types())
}

func TestPauseResume_Idempotence(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := f.standard(t)

	err := f.engine.ResumeStream(ctx, s.ID, "alice")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	f.at(10 * time.Second)
	require.NoError(t, f.engine.PauseStream(ctx, s.ID, "alice"))
	before := f.view(t, s.ID).Stream

	f.at(20 * time.Second)
	err = f.engine.PauseStream(ctx, s.ID, "alice")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	assert.Equal(t, before, f.view(t, s.ID).Stream)
	assert.Len(t, f.events.types(), 2)
}

func TestPause_FullyAccruedCompletesInstead(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := f.standard(t)

	f.at(150 * time.Second)
	err := f.engine.PauseStream(context.Background(), s.ID, "alice")

	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	v := f.view(t, s.ID)
	assert.Equal(t, domain.StreamStatusCompleted, v.Status)
	assert.Equal(t, int64(1000), v.Buffer)
	assert.Equal(t, []domain.EventType{domain.EventStreamCreated, domain.EventStreamCompleted}, f.events.types())
}

// ---------------------------------------------------------------------------
// Claim
// ---------------------------------------------------------------------------

func TestClaim_ResetsAnchor(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := f.standard(t)

	f.at(30 * time.Second)
	got, err := f.engine.ClaimStream(ctx, s.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(300), got)

	v := f.view(t, s.ID)
	assert.Equal(t, int64(300), v.Claimed)
	assert.Equal(t, int64(300), v.AccruedAtAnchor)
	assert.Equal(t, t0.Add(30*time.Second), v.AccrualAnchor)
	assert.Zero(t, v.Buffer)
	assert.Equal(t, domain.StreamStatusActive, v.Status)

	f.at(50 * time.Second)
	assert.Equal(t, int64(200), f.view(t, s.ID).Buffer)
	assert.Equal(t, int64(1_000_300), f.escrow.Balance("bob"))
}

func TestClaim_NothingToClaim(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := f.standard(t)

	_, err := f.engine.ClaimStream(context.Background(), s.ID, "bob")
	require.ErrorIs(t, err, domain.ErrNothingToClaim)
	assert.False(t, domain.IsRetryable(err))
}

func TestClaim_Exhaustion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := f.standard(t)

	f.at(40 * time.Second)
	_, err := f.engine.ClaimStream(ctx, s.ID, "bob")
	require.NoError(t, err)

	f.at(100 * time.Second)
	got, err := f.engine.ClaimStream(ctx, s.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(600), got)

	v := f.view(t, s.ID)
	assert.Equal(t, domain.StreamStatusCompleted, v.Status)
	assert.Equal(t, int64(1000), v.Claimed)
	assert.Equal(t, []domain.EventType{
		domain.EventStreamCreated,
		domain.EventPaymentClaimed,
		domain.EventPaymentClaimed,
		domain.EventStreamCompleted,
	}, f.events.types())

	f.at(500 * time.Second)
	_, err = f.engine.ClaimStream(ctx, s.ID, "bob")
	require.ErrorIs(t, err, domain.ErrNothingToClaim)
	assert.Zero(t, f.escrow.Escrowed())
}

func TestClaim_CompletedStreamDrainsFrozenBuffer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := f.standard(t)

	f.at(300 * time.Second)
	require.Equal(t, domain.StreamStatusCompleted, f.view(t, s.ID).Status)

	got, err := f.engine.ClaimStream(ctx, s.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got)
	assert.Equal(t, domain.StreamStatusCompleted, f.view(t, s.ID).Status)
}

// ---------------------------------------------------------------------------
// Cancel
// ---------------------------------------------------------------------------

func TestCancel_Refund(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := f.standard(t)

	f.at(40 * time.Second)
	res, err := f.engine.CancelStream(ctx, s.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(600), res.Refund)
	assert.Equal(t, int64(6), res.Fee)

	f.at(500 * time.Second)
	v := f.view(t, s.ID)
	assert.Equal(t, domain.StreamStatusCancelled, v.Status)
	assert.Equal(t, int64(400), v.Buffer)
	assert.Equal(t, int64(600), v.Refunded)

	got, err := f.engine.ClaimStream(ctx, s.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(400), got)

	_, err = f.engine.ClaimStream(ctx, s.ID, "bob")
	require.ErrorIs(t, err, domain.ErrNothingToClaim)
	require.ErrorIs(t, err, domain.ErrStreamCancelled)

	assert.Equal(t, domain.StreamStatusCancelled, f.view(t, s.ID).Status)
	assert.Zero(t, f.escrow.Escrowed())
	assert.Equal(t, int64(1_000_000-1000+594), f.escrow.Balance("alice"))
	assert.Equal(t, int64(6), f.escrow.FeesPaid("alice"))

	assert.Equal(t, int64(6), f.stored(t, s.ID).CancelFee, "fee is stored with the stream")
	history, err := f.engine.History(ctx, s.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.EventStreamCancelled, history[1].Type)
	assert.Equal(t, int64(6), history[1].Fee)
}

func TestCancel_Paused(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := f.standard(t)

	f.at(20 * time.Second)
	require.NoError(t, f.engine.PauseStream(ctx, s.ID, "alice"))

	f.at(90 * time.Second)
	res, err := f.engine.CancelStream(ctx, s.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(800), res.Refund)
	assert.Equal(t, int64(200), f.view(t, s.ID).Buffer)
}

func TestCancel_Terminal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := f.standard(t)

	_, err := f.engine.CancelStream(ctx, s.ID, "alice")
	require.NoError(t, err)

	_, err = f.engine.CancelStream(ctx, s.ID, "alice")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	err = f.engine.ResumeStream(ctx, s.ID, "alice")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

// ---------------------------------------------------------------------------
// Authorization
// ---------------------------------------------------------------------------

func TestAuthorization(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := f.standard(t)

	f.at(150 * time.Second)
	before := f.engine.Snapshot()[0]

	require.ErrorIs(t, f.engine.PauseStream(ctx, s.ID, "bob"), domain.ErrUnauthorized)
	require.ErrorIs(t, f.engine.ResumeStream(ctx, s.ID, "bob"), domain.ErrUnauthorized)
	_, err := f.engine.CancelStream(ctx, s.ID, "mallory")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.engine.ClaimStream(ctx, s.ID, "alice")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.Equal(t, before, f.engine.Snapshot()[0], "unauthorized calls change nothing")
	assert.Len(t, f.events.types(), 1)
}

func TestUnknownStream(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.engine.ClaimStream(context.Background(), 404, "bob")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.engine.Buffer(context.Background(), 404)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

// ---------------------------------------------------------------------------
// Persistence failures
// ---------------------------------------------------------------------------

func TestTransition_PersistFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := f.standard(t)

	f.engine.events = &eventRepoMock{
		AppendFunc: func(ctx context.Context, events []domain.StreamEvent) error {
			return errors.New("connection reset")
		},
	}

	f.at(30 * time.Second)
	_, err := f.engine.ClaimStream(ctx, s.ID, "bob")
	require.ErrorIs(t, err, domain.ErrPersistence)

	v := f.view(t, s.ID)
	assert.Zero(t, v.Claimed)
	assert.Equal(t, int64(300), v.Buffer)
	assert.Equal(t, int64(1_000_000), f.escrow.Balance("bob"))
	assert.Len(t, f.events.types(), 1)
}

// ---------------------------------------------------------------------------
// Engines sharing one store
// ---------------------------------------------------------------------------

func TestSharedStore_ClaimsNeverExceedAccrual(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := f.standard(t)
	other := f.peer(t)

	f.at(50 * time.Second)
	first, err := f.engine.ClaimStream(ctx, s.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(500), first)

	_, err = other.ClaimStream(ctx, s.ID, "bob")
	require.ErrorIs(t, err, domain.ErrNothingToClaim, "the other engine reloads and sees the claim")

	f.at(300 * time.Second)
	second, err := other.ClaimStream(ctx, s.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(500), second)

	_, err = f.engine.ClaimStream(ctx, s.ID, "bob")
	require.ErrorIs(t, err, domain.ErrNothingToClaim, "a stale copy cannot pay out again")

	got := f.stored(t, s.ID)
	assert.Equal(t, int64(1000), got.Claimed)
	assert.Equal(t, domain.StreamStatusCompleted, got.Status)
	assert.Equal(t, int64(1000), first+second)

	v := f.view(t, s.ID)
	assert.Equal(t, int64(1000), v.Claimed, "the stale engine caught up")
}

func TestSharedStore_StaleCopyCannotOverwriteCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := f.standard(t)
	other := f.peer(t)

	f.at(40 * time.Second)
	res, err := other.CancelStream(ctx, s.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(600), res.Refund)

	// the first engine still believes the stream is Active and fully
	// accrued; the completion it tries to write must lose
	f.at(300 * time.Second)
	v := f.view(t, s.ID)
	assert.Equal(t, domain.StreamStatusCancelled, v.Status)
	assert.Equal(t, int64(400), v.Buffer)

	err = f.engine.PauseStream(ctx, s.ID, "alice")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	got := f.stored(t, s.ID)
	assert.Equal(t, domain.StreamStatusCancelled, got.Status)
	assert.Equal(t, int64(600), got.Refunded)
	assert.Equal(t, int64(6), got.CancelFee)
	assert.Equal(t, int64(400), got.AccruedAtAnchor)
}

func TestRefresh_PicksUpOtherWriters(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := f.standard(t)
	other := f.peer(t)

	created, err := other.CreateStream(ctx, CreateStreamInput{Sender: "carol", Recipient: "dave", Rate: 1, TotalLocked: 100})
	require.NoError(t, err)
	f.at(20 * time.Second)
	_, err = other.ClaimStream(ctx, s.ID, "bob")
	require.NoError(t, err)

	require.Len(t, f.engine.Snapshot(), 1)

	n, err := f.engine.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one new stream, one newer version")

	snap := f.engine.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, int64(200), snap[0].Claimed)
	assert.Equal(t, created.ID, snap[1].ID)

	n, err = f.engine.Refresh(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHistory_StoreFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := f.standard(t)

	mock := &eventRepoMock{
		ListByStreamFunc: func(ctx context.Context, streamID int64, limit int) ([]domain.StreamEvent, error) {
			return nil, errors.New("connection reset")
		},
	}
	f.engine.events = mock

	_, err := f.engine.History(context.Background(), s.ID, 0)
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, []int64{s.ID}, mock.ListByStreamCalls())
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func TestListStreamsForUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []CreateStreamInput{
		{Sender: "alice", Recipient: "bob", Rate: 10, TotalLocked: 1000},
		{Sender: "carol", Recipient: "alice", Rate: 1, TotalLocked: 50},
		{Sender: "bob", Recipient: "carol", Rate: 1, TotalLocked: 10},
	} {
		_, err := f.engine.CreateStream(ctx, in)
		require.NoError(t, err)
	}

	f.at(60 * time.Second)
	views, err := f.engine.ListStreamsForUser(ctx, "alice", domain.StreamFilter{})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, int64(1), views[0].ID)
	assert.Equal(t, int64(2), views[1].ID)
	assert.Equal(t, int64(600), views[0].Buffer)
	assert.Equal(t, domain.StreamStatusCompleted, views[1].Status, "listing completes fully accrued streams")

	completed := domain.StreamStatusCompleted
	views, err = f.engine.ListStreamsForUser(ctx, "alice", domain.StreamFilter{Status: &completed})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, int64(2), views[0].ID)

	views, err = f.engine.ListStreamsForUser(ctx, "alice", domain.StreamFilter{Role: domain.StreamRoleSender})
	require.NoError(t, err)
	require.Len(t, views, 1)

	views, err = f.engine.ListStreamsForUser(ctx, "alice", domain.StreamFilter{Offset: 1, Limit: 5})
	require.NoError(t, err)
	require.Len(t, views, 1)

	_, err = f.engine.ListStreamsForUser(ctx, "Not Valid", domain.StreamFilter{})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestRestore(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := f.standard(t)

	f.at(25 * time.Second)
	require.NoError(t, f.engine.PauseStream(ctx, s.ID, "alice"))

	rec := &recorder{}
	restarted := NewEngine(f.engine.log, f.clock, testLimits,
		f.engine.streams, f.engine.events, f.engine.tx, f.escrow, rec)
	n, err := restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, err := restarted.Buffer(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StreamStatusPaused, v.Status)
	assert.Equal(t, int64(250), v.Buffer)

	require.NoError(t, restarted.ResumeStream(ctx, s.ID, "alice"))
	require.Len(t, rec.events, 1)
	assert.Equal(t, int64(3), rec.events[0].Seq, "the event log keeps numbering after restart")
}

func TestHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := f.standard(t)

	f.at(10 * time.Second)
	require.NoError(t, f.engine.PauseStream(ctx, s.ID, "alice"))
	_, err := f.engine.ClaimStream(ctx, s.ID, "bob")
	require.NoError(t, err)

	events, err := f.engine.History(ctx, s.ID, 0)
	require.NoError(t, err)
	types := make([]domain.EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	assert.Equal(t, []domain.EventType{
		domain.EventStreamCreated, domain.EventStreamPaused, domain.EventPaymentClaimed,
	}, types)
	assert.Equal(t, int64(100), events[2].Amount)

	events, err = f.engine.History(ctx, s.ID, 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = f.engine.History(ctx, 999, 0)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTouchActive(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	for range 20 {
		f.standard(t)
	}
	_, err := f.engine.CreateStream(ctx, CreateStreamInput{Sender: "alice", Recipient: "carol", Rate: 1, TotalLocked: 1_000})
	require.NoError(t, err)

	f.at(101 * time.Second)
	n, err := f.engine.TouchActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	n, err = f.engine.TouchActive(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	completed := 0
	for _, s := range f.engine.Snapshot() {
		if s.Status == domain.StreamStatusCompleted {
			completed++
		}
	}
	assert.Equal(t, 20, completed)
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestConcurrentClaimsNeverDoubleSpend(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := f.standard(t)

	f.at(70 * time.Second)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int64
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.engine.ClaimStream(ctx, s.ID, "bob")
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrNothingToClaim)
				return
			}
			mu.Lock()
			total += got
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(700), total)
	v := f.view(t, s.ID)
	assert.Equal(t, int64(700), v.Claimed)
	assert.Equal(t, int64(1_000_700), f.escrow.Balance("bob"))
}

func TestConcurrentMixedOperationsConserve(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s := f.standard(t)

	var wg sync.WaitGroup
	for i := range 30 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.clock.Advance(time.Second)
			switch i % 3 {
			case 0:
				_ = f.engine.PauseStream(ctx, s.ID, "alice")
			case 1:
				_ = f.engine.ResumeStream(ctx, s.ID, "alice")
			default:
				_, _ = f.engine.ClaimStream(ctx, s.ID, "bob")
			}
		}()
		go func() {
			defer wg.Done()
			v, err := f.engine.Buffer(ctx, s.ID)
			if assert.NoError(t, err) {
				assertConserved(t, v)
			}
		}()
	}
	wg.Wait()

	v := f.view(t, s.ID)
	assert.Equal(t, v.Claimed, f.escrow.Balance("bob")-1_000_000)
}
