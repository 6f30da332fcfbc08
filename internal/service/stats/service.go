// Package stats folds engine snapshots into per-principal and global
// read models. Nothing is cached; every call recomputes.
package stats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

type streamSource interface {
	Snapshot() []domain.Stream
}

type feeSource interface {
	FeesPaid(p domain.Principal) int64
}

type unreadCounter interface {
	UnreadCount(ctx context.Context, p domain.Principal) (int, error)
}

// Service is the stats aggregator.
type Service struct {
	streams streamSource
	fees    feeSource
	unread  unreadCounter
	log     *slog.Logger
}

// NewService creates a new stats Service.
func NewService(log *slog.Logger, streams streamSource, fees feeSource, unread unreadCounter) *Service {
	return &Service{
		streams: streams,
		fees:    fees,
		unread:  unread,
		log:     log.With("service", "stats"),
	}
}

// UserStats summarises the streams p sent and received.
func (s *Service) UserStats(ctx context.Context, p domain.Principal) (domain.UserStats, error) {
	p = domain.NormalizePrincipal(string(p))
	if !p.Valid() {
		return domain.UserStats{}, domain.NewValidationError("principal", "malformed principal")
	}

	out := domain.UserStats{Principal: p}
	var lockedSent int64
	for _, st := range s.streams.Snapshot() {
		switch p {
		case st.Sender:
			out.StreamsCreated++
			out.TotalSent += st.Claimed
			lockedSent += st.TotalLocked
		case st.Recipient:
			out.StreamsReceived++
			out.TotalReceived += st.Claimed
		default:
			continue
		}
		if st.Status == domain.StreamStatusActive {
			out.ActiveStreams++
		}
	}
	if out.StreamsCreated > 0 {
		out.AvgStreamSize = lockedSent / int64(out.StreamsCreated)
	}
	out.TotalFeesPaid = s.fees.FeesPaid(p)

	unread, err := s.unread.UnreadCount(ctx, p)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("user stats for %s: %w", p, err)
	}
	out.UnreadNotifications = unread

	return out, nil
}

// GlobalStats summarises every stream known to the engine.
func (s *Service) GlobalStats(ctx context.Context) (domain.GlobalStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.GlobalStats{}, err
	}

	var out domain.GlobalStats
	for _, st := range s.streams.Snapshot() {
		out.TotalStreamsCreated++
		out.TotalVolumeLocked += st.TotalLocked
		out.TotalVolumeClaimed += st.Claimed

		switch st.Status {
		case domain.StreamStatusActive:
			out.ActiveStreams++
		case domain.StreamStatusPaused:
			out.PausedStreams++
		case domain.StreamStatusCompleted:
			out.CompletedStreams++
		case domain.StreamStatusCancelled:
			out.CancelledStreams++
		default:
			s.log.WarnContext(ctx, "stream with unknown status", "stream_id", st.ID, "status", st.Status)
		}
	}
	return out, nil
}
