// Package notification turns engine transitions into stored, per-principal
// notifications and manages their read state.
package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/satstream-ledger/internal/clock"
	"github.com/heartmarshall/satstream-ledger/internal/config"
	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type notificationRepo interface {
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
	List(ctx context.Context, recipient domain.Principal, filter domain.NotificationFilter, limit, offset int) ([]*domain.Notification, int, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context, recipient domain.Principal) (int, error)
	CountUnread(ctx context.Context, recipient domain.Principal) (int, error)
	DeleteReadBefore(ctx context.Context, before time.Time) (int, error)
	ExistsForStream(ctx context.Context, streamID int64, typ domain.NotificationType) (bool, error)
}

// eventLog is the persisted transition log the generator drains.
type eventLog interface {
	ListPending(ctx context.Context, limit int) ([]domain.StreamEvent, error)
	MarkNotified(ctx context.Context, seqs []int64, at time.Time) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type streamSource interface {
	Snapshot() []domain.Stream
}

// Service is the notification generator.
type Service struct {
	repo    notificationRepo
	events  eventLog
	tx      txManager
	streams streamSource
	clock   clock.Clock
	cfg     config.NotificationsConfig
	log     *slog.Logger
	newID   func() uuid.UUID

	drainMu sync.Mutex
}

// NewService creates a new notification Service.
func NewService(
	log *slog.Logger,
	clk clock.Clock,
	cfg config.NotificationsConfig,
	repo notificationRepo,
	events eventLog,
	tx txManager,
	streams streamSource,
) *Service {
	return &Service{
		repo:    repo,
		events:  events,
		tx:      tx,
		streams: streams,
		clock:   clk,
		cfg:     cfg,
		log:     log.With("service", "notification"),
		newID:   uuid.New,
	}
}

// store persists drafts atomically and returns the new ids in order.
func (s *Service) store(ctx context.Context, streamID *int64, at time.Time, drafts []draft) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(drafts))
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		for _, d := range drafts {
			n, err := s.repo.Create(ctx, &domain.Notification{
				ID:        s.newID(),
				StreamID:  streamID,
				Recipient: d.recipient,
				Type:      d.typ,
				Message:   d.message,
				CreatedAt: at,
			})
			if err != nil {
				return err
			}
			ids = append(ids, n.ID)
		}
		return nil
	})
	if err != nil {
		return nil, domain.AsPersistence(err)
	}
	return ids, nil
}
