package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

// ClaimStream withdraws the whole current buffer to the recipient and
// returns the claimed amount. A cancelled or completed stream can still be
// claimed until its frozen buffer is drained.
func (e *Engine) ClaimStream(ctx context.Context, id int64, caller domain.Principal) (int64, error) {
	caller = domain.NormalizePrincipal(string(caller))
	s, events, err := e.apply(ctx, id, func(s *domain.Stream, now time.Time) ([]domain.StreamEvent, error) {
		if caller != s.Recipient {
			return nil, fmt.Errorf("claim stream %d: %w", id, domain.ErrUnauthorized)
		}

		amount := s.Buffer(now)
		if amount == 0 {
			events := settle(s, now)
			if s.Status == domain.StreamStatusCancelled {
				return events, fmt.Errorf("claim stream %d: %w: %w", id, domain.ErrStreamCancelled, domain.ErrNothingToClaim)
			}
			return events, fmt.Errorf("claim stream %d: %w", id, domain.ErrNothingToClaim)
		}

		if s.Status == domain.StreamStatusActive {
			s.AccruedAtAnchor = s.RawAccrued(now)
			s.AccrualAnchor = now
		}
		s.Claimed += amount
		events := []domain.StreamEvent{{Type: domain.EventPaymentClaimed, Actor: caller, Amount: amount}}

		return append(events, settle(s, now)...), nil
	})
	if err != nil {
		return 0, err
	}

	var claimed int64
	for _, ev := range events {
		if ev.Type == domain.EventPaymentClaimed {
			claimed = ev.Amount
		}
	}

	e.log.InfoContext(ctx, "stream claimed",
		"stream_id", id,
		"amount", claimed,
		"claimed_total", s.Claimed,
		"status", s.Status,
	)
	return claimed, nil
}

// PauseStream freezes accrual. Sender only; the stream must be Active.
func (e *Engine) PauseStream(ctx context.Context, id int64, caller domain.Principal) error {
	caller = domain.NormalizePrincipal(string(caller))
	_, _, err := e.apply(ctx, id, func(s *domain.Stream, now time.Time) ([]domain.StreamEvent, error) {
		if caller != s.Sender {
			return nil, fmt.Errorf("pause stream %d: %w", id, domain.ErrUnauthorized)
		}
		events := settle(s, now)
		if s.Status != domain.StreamStatusActive {
			return events, fmt.Errorf("pause stream %d in status %s: %w", id, s.Status, domain.ErrInvalidTransition)
		}

		s.AccruedAtAnchor = s.RawAccrued(now)
		s.AccrualAnchor = now
		s.Status = domain.StreamStatusPaused
		return []domain.StreamEvent{{Type: domain.EventStreamPaused, Actor: caller}}, nil
	})
	if err != nil {
		return err
	}

	e.log.InfoContext(ctx, "stream paused", "stream_id", id)
	return nil
}

// ResumeStream restarts accrual from the frozen baseline. Sender only; the
// stream must be Paused.
func (e *Engine) ResumeStream(ctx context.Context, id int64, caller domain.Principal) error {
	caller = domain.NormalizePrincipal(string(caller))
	_, _, err := e.apply(ctx, id, func(s *domain.Stream, now time.Time) ([]domain.StreamEvent, error) {
		if caller != s.Sender {
			return nil, fmt.Errorf("resume stream %d: %w", id, domain.ErrUnauthorized)
		}
		events := settle(s, now)
		if s.Status != domain.StreamStatusPaused {
			return events, fmt.Errorf("resume stream %d in status %s: %w", id, s.Status, domain.ErrInvalidTransition)
		}

		s.AccrualAnchor = now
		s.Status = domain.StreamStatusActive
		return []domain.StreamEvent{{Type: domain.EventStreamResumed, Actor: caller}}, nil
	})
	if err != nil {
		return err
	}

	e.log.InfoContext(ctx, "stream resumed", "stream_id", id)
	return nil
}

// CancelStream stops future accrual and returns the un-accrued remainder to
// the sender. Sats already accrued stay claimable by the recipient.
func (e *Engine) CancelStream(ctx context.Context, id int64, caller domain.Principal) (domain.CancelResult, error) {
	caller = domain.NormalizePrincipal(string(caller))
	_, events, err := e.apply(ctx, id, func(s *domain.Stream, now time.Time) ([]domain.StreamEvent, error) {
		if caller != s.Sender {
			return nil, fmt.Errorf("cancel stream %d: %w", id, domain.ErrUnauthorized)
		}
		events := settle(s, now)
		if s.Status.IsTerminal() {
			return events, fmt.Errorf("cancel stream %d in status %s: %w", id, s.Status, domain.ErrInvalidTransition)
		}

		s.AccruedAtAnchor = s.RawAccrued(now)
		s.AccrualAnchor = now
		refund := s.TotalLocked - s.AccruedAtAnchor
		s.Refunded = refund
		s.CancelFee = e.funds.CancelFee(refund)
		s.Status = domain.StreamStatusCancelled
		return []domain.StreamEvent{{Type: domain.EventStreamCancelled, Actor: caller, Amount: refund, Fee: s.CancelFee}}, nil
	})
	if err != nil {
		return domain.CancelResult{}, err
	}

	var res domain.CancelResult
	for _, ev := range events {
		if ev.Type == domain.EventStreamCancelled {
			res = domain.CancelResult{Refund: ev.Amount, Fee: ev.Fee}
		}
	}

	e.log.InfoContext(ctx, "stream cancelled", "stream_id", id, "refund", res.Refund, "fee", res.Fee)
	return res, nil
}
