package domain

import "time"

// Stream is the persisted state of a payment stream. Buffer, remaining
// lock and time remaining are derived from it and never stored.
//
// AccruedAtAnchor counts every sat accrued up to AccrualAnchor, claimed or
// not, so AccruedAtAnchor >= Claimed always holds.
type Stream struct {
	ID              int64
	Sender          Principal
	Recipient       Principal
	Rate            int64 // sats per second
	TotalLocked     int64
	Claimed         int64
	AccrualAnchor   time.Time
	AccruedAtAnchor int64
	Status          StreamStatus
	Duration        time.Duration // informational; 0 means continuous
	Refunded        int64
	CancelFee       int64 // retained by funding out of Refunded
	TemplateID      *int64
	DedupToken      *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64 // bumped by every stored update
}

// ElapsedSeconds returns whole seconds between anchor and now, floored at 0.
func ElapsedSeconds(anchor, now time.Time) int64 {
	d := now.Sub(anchor)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

// RawAccrued returns the cumulative accrual at now, capped at TotalLocked.
// Only Active streams accrue.
func (s *Stream) RawAccrued(now time.Time) int64 {
	if s.Status != StreamStatusActive {
		return min(s.AccruedAtAnchor, s.TotalLocked)
	}
	left := s.TotalLocked - s.AccruedAtAnchor
	if left <= 0 {
		return s.TotalLocked
	}
	elapsed := ElapsedSeconds(s.AccrualAnchor, now)
	// compare before multiplying so large rates cannot overflow
	if elapsed >= (left+s.Rate-1)/s.Rate {
		return s.TotalLocked
	}
	return s.AccruedAtAnchor + elapsed*s.Rate
}

// Buffer returns the sats claimable at now.
func (s *Stream) Buffer(now time.Time) int64 {
	return max(s.RawAccrued(now)-s.Claimed, 0)
}

// RemainingLocked returns the sats not yet accrued at now.
func (s *Stream) RemainingLocked(now time.Time) int64 {
	return s.TotalLocked - s.Claimed - s.Buffer(now)
}

// FullyAccrued reports whether an Active stream has accrued its whole lock
// and is due for auto-completion.
func (s *Stream) FullyAccrued(now time.Time) bool {
	return s.Status == StreamStatusActive && s.RawAccrued(now) >= s.TotalLocked
}

// TimeRemaining estimates how long until the lock is fully accrued. It is
// derived from accrual state, so paused and terminal streams report 0.
func (s *Stream) TimeRemaining(now time.Time) time.Duration {
	if s.Status != StreamStatusActive {
		return 0
	}
	left := s.TotalLocked - s.RawAccrued(now)
	if left <= 0 {
		return 0
	}
	secs := (left + s.Rate - 1) / s.Rate
	return time.Duration(secs) * time.Second
}

// ComputeBuffer is the functional form of Stream.Buffer.
func ComputeBuffer(s Stream, now time.Time) int64 {
	return s.Buffer(now)
}

// StreamView is a stream snapshot with its derived balances at At.
type StreamView struct {
	Stream
	At              time.Time
	Buffer          int64
	RemainingLocked int64
	TimeRemaining   time.Duration
}

// ViewAt derives a StreamView from s.
func ViewAt(s Stream, now time.Time) StreamView {
	return StreamView{
		Stream:          s,
		At:              now,
		Buffer:          s.Buffer(now),
		RemainingLocked: s.RemainingLocked(now),
		TimeRemaining:   s.TimeRemaining(now),
	}
}

// CancelResult is returned by a successful cancellation. Refund is the
// un-accrued remainder released from the stream; Fee is the part of it the
// funding side retained.
type CancelResult struct {
	Refund int64
	Fee    int64
}

// StreamFilter narrows stream listings.
type StreamFilter struct {
	Principal Principal
	Role      StreamRole
	Status    *StreamStatus
	Limit     int
	Offset    int
}
