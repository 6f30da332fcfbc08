// Package ledger implements the stream accrual engine: the authoritative,
// per-stream linearizable state of every payment stream.
package ledger

import (
	"context"
	"log/slog"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/heartmarshall/satstream-ledger/internal/clock"
	"github.com/heartmarshall/satstream-ledger/internal/config"
	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

type streamRepo interface {
	Create(ctx context.Context, s *domain.Stream) (*domain.Stream, error)
	Update(ctx context.Context, s *domain.Stream) error
	GetByID(ctx context.Context, id int64) (*domain.Stream, error)
	GetByDedupToken(ctx context.Context, sender domain.Principal, token string) (*domain.Stream, error)
	List(ctx context.Context, filter domain.StreamFilter) ([]*domain.Stream, error)
}

type eventRepo interface {
	Append(ctx context.Context, events []domain.StreamEvent) error
	ListByStream(ctx context.Context, streamID int64, limit int) ([]domain.StreamEvent, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type funder interface {
	Reserve(ctx context.Context, p domain.Principal, amount int64) error
	Release(ctx context.Context, p domain.Principal, amount int64) error
	Payout(ctx context.Context, p domain.Principal, amount int64) error
	CancelFee(amount int64) int64
	Refund(ctx context.Context, p domain.Principal, amount, fee int64) error
}

type publisher interface {
	Publish(ev domain.StreamEvent) error
}

// Engine owns every stream. Transitions on one stream are serialised by
// that stream's cell lock; different streams proceed independently.
// Engines in other processes may share the store: every stored update is
// checked against the stream version, and a stale cell is reloaded and the
// transition recomputed.
type Engine struct {
	streams streamRepo
	events  eventRepo
	tx      txManager
	funds   funder
	bus     publisher
	clock   clock.Clock
	limits  config.LedgerConfig
	log     *slog.Logger

	arena *xsync.Map[int64, *cell]
}

// NewEngine creates a new Engine. Call Restore before serving reads.
func NewEngine(
	log *slog.Logger,
	clk clock.Clock,
	limits config.LedgerConfig,
	streams streamRepo,
	events eventRepo,
	tx txManager,
	funds funder,
	bus publisher,
) *Engine {
	return &Engine{
		streams: streams,
		events:  events,
		tx:      tx,
		funds:   funds,
		bus:     bus,
		clock:   clk,
		limits:  limits,
		log:     log.With("service", "ledger"),
		arena:   xsync.NewMap[int64, *cell](),
	}
}
