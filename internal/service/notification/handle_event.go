package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

const (
	// drainBatch bounds how many pending events one transaction handles.
	drainBatch = 100

	defaultPollInterval = 5 * time.Second
)

// HandleEvent stores the notifications for one engine event and returns
// their ids. Either all of them are stored or none.
func (s *Service) HandleEvent(ctx context.Context, ev domain.StreamEvent) ([]uuid.UUID, error) {
	drafts, err := draftsFor(ev)
	if err != nil {
		return nil, err
	}

	streamID := ev.StreamID
	ids, err := s.store(ctx, &streamID, ev.At, drafts)
	if err != nil {
		return nil, fmt.Errorf("notify %s for stream %d: %w", ev.Type, ev.StreamID, err)
	}
	return ids, nil
}

// Drain turns every pending event of the log into notifications. Each
// batch is stored and marked notified in one transaction, so an event is
// notified exactly once no matter which process wrote it. Events with no
// notification template are marked and skipped. It returns how many events
// it handled.
func (s *Service) Drain(ctx context.Context) (int, error) {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()

	total := 0
	for {
		n, err := s.drainOnce(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n < drainBatch {
			return total, nil
		}
	}
}

func (s *Service) drainOnce(ctx context.Context) (int, error) {
	var handled int
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		handled = 0
		pending, err := s.events.ListPending(ctx, drainBatch)
		if err != nil {
			return fmt.Errorf("list pending events: %w", err)
		}
		if len(pending) == 0 {
			return nil
		}

		seqs := make([]int64, 0, len(pending))
		for _, ev := range pending {
			if _, err := s.HandleEvent(ctx, ev); err != nil {
				if !errors.Is(err, domain.ErrValidation) {
					return fmt.Errorf("event %d: %w", ev.Seq, err)
				}
				s.log.WarnContext(ctx, "skip stream event without notification",
					"seq", ev.Seq,
					"stream_id", ev.StreamID,
					"event", ev.Type,
					"error", err,
				)
			}
			seqs = append(seqs, ev.Seq)
		}

		if err := s.events.MarkNotified(ctx, seqs, s.clock.Now()); err != nil {
			return fmt.Errorf("mark events notified: %w", err)
		}
		handled = len(seqs)
		return nil
	})
	if err != nil {
		return 0, domain.AsPersistence(fmt.Errorf("drain event log: %w", err))
	}
	return handled, nil
}

type eventSource interface {
	C() <-chan domain.StreamEvent
	Done() <-chan struct{}
}

// Run drains the event log at start, whenever src signals a new event and
// on every poll tick, until ctx is cancelled or src is closed. The poll
// picks up events written by other processes. A drain that keeps failing
// leaves its events pending for the next one.
func (s *Service) Run(ctx context.Context, src eventSource) error {
	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.drainWithRetry(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-src.Done():
			return nil
		case <-src.C():
			s.drainWithRetry(ctx)
		case <-ticker.C:
			s.drainWithRetry(ctx)
		}
	}
}

func (s *Service) backoff() retry.Backoff {
	base := s.cfg.RetryBase
	if base <= 0 {
		base = defaultRetryBase
	}
	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(20, b)
	return retry.WithMaxRetries(s.cfg.RetryMax, b)
}

func (s *Service) drainWithRetry(ctx context.Context) {
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		_, err := s.Drain(ctx)
		if domain.IsRetryable(err) {
			s.log.WarnContext(ctx, "retry event log drain", "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && ctx.Err() == nil {
		s.log.ErrorContext(ctx, "drain event log, events stay pending", "error", err)
	}
}
