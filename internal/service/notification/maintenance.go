package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

// CheckLowBalance warns the sender of every Active stream whose un-accrued
// remainder fell below the configured percentage of its lock. Each stream
// is warned at most once. It returns the number of warnings stored.
func (s *Service) CheckLowBalance(ctx context.Context) (int, error) {
	threshold := int64(s.cfg.LowBalanceThreshold)
	if threshold <= 0 {
		return 0, nil
	}

	now := s.clock.Now()
	sent := 0
	for _, st := range s.streams.Snapshot() {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if st.Status != domain.StreamStatusActive {
			continue
		}
		remaining := st.RemainingLocked(now)
		if remaining == 0 || remaining*100 >= threshold*st.TotalLocked {
			continue
		}

		exists, err := s.repo.ExistsForStream(ctx, st.ID, domain.NotificationLowBalance)
		if err != nil {
			return sent, fmt.Errorf("check low balance for stream %d: %w", st.ID, domain.AsPersistence(err))
		}
		if exists {
			continue
		}

		percent := remaining * 100 / st.TotalLocked
		streamID := st.ID
		if _, err := s.store(ctx, &streamID, now, []draft{lowBalanceDraft(st, remaining, percent)}); err != nil {
			return sent, fmt.Errorf("notify low balance for stream %d: %w", st.ID, err)
		}
		sent++
	}

	if sent > 0 {
		s.log.InfoContext(ctx, "low balance warnings sent", "count", sent)
	}
	return sent, nil
}

// PurgeRead deletes read notifications older than olderThan (the configured
// retention when olderThan <= 0).
func (s *Service) PurgeRead(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		olderThan = s.cfg.ReadRetention
	}
	cutoff := s.clock.Now().Add(-olderThan)

	n, err := s.repo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge read notifications: %w", domain.AsPersistence(err))
	}

	s.log.InfoContext(ctx, "read notifications purged", "count", n, "cutoff", cutoff)
	return n, nil
}
