package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/satstream-ledger/internal/adapter/memory"
	"github.com/heartmarshall/satstream-ledger/internal/adapter/postgres"
	eventrepo "github.com/heartmarshall/satstream-ledger/internal/adapter/postgres/event"
	notificationrepo "github.com/heartmarshall/satstream-ledger/internal/adapter/postgres/notification"
	streamrepo "github.com/heartmarshall/satstream-ledger/internal/adapter/postgres/stream"
	templaterepo "github.com/heartmarshall/satstream-ledger/internal/adapter/postgres/template"
	"github.com/heartmarshall/satstream-ledger/internal/config"
	"github.com/heartmarshall/satstream-ledger/internal/domain"
	"github.com/heartmarshall/satstream-ledger/migrations"
)

// The store interfaces below are the union of what the services consume;
// both drivers satisfy them.

type streamStore interface {
	Create(ctx context.Context, s *domain.Stream) (*domain.Stream, error)
	Update(ctx context.Context, s *domain.Stream) error
	GetByID(ctx context.Context, id int64) (*domain.Stream, error)
	GetByDedupToken(ctx context.Context, sender domain.Principal, token string) (*domain.Stream, error)
	List(ctx context.Context, filter domain.StreamFilter) ([]*domain.Stream, error)
}

type eventStore interface {
	Append(ctx context.Context, events []domain.StreamEvent) error
	ListByStream(ctx context.Context, streamID int64, limit int) ([]domain.StreamEvent, error)
	ListPending(ctx context.Context, limit int) ([]domain.StreamEvent, error)
	MarkNotified(ctx context.Context, seqs []int64, at time.Time) error
}

type notificationStore interface {
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

type templateStore interface {
	Create(ctx context.Context, t *domain.StreamTemplate) (*domain.StreamTemplate, error)
	GetByID(ctx context.Context, id int64) (*domain.StreamTemplate, error)
	List(ctx context.Context) ([]*domain.StreamTemplate, error)
	IncrementUsage(ctx context.Context, id int64) (*domain.StreamTemplate, error)
}

type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// storage bundles the repositories of one driver.
type storage struct {
	driver        string
	streams       streamStore
	events        eventStore
	notifications notificationStore
	templates     templateStore
	tx            txRunner
	ping          func(ctx context.Context) error
	close         func()
}

// Ping reports whether the backing store answers.
func (s *storage) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// openStorage connects the configured driver. For postgres it applies
// pending migrations when database.auto_migrate is set.
func openStorage(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*storage, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		store := memory.New()
		log.WarnContext(ctx, "using in-memory storage; state is lost on exit")
		return &storage{
			driver:        config.DriverMemory,
			streams:       memory.NewStreamRepo(store),
			events:        memory.NewEventRepo(store),
			notifications: memory.NewNotificationRepo(store),
			templates:     memory.NewTemplateRepo(store),
			tx:            memory.NewTxManager(store),
			ping:          func(context.Context) error { return nil },
			close:         func() {},
		}, nil

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if _, err := postgres.Migrate(ctx, pool, migrations.FS, log); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return &storage{
			driver:        config.DriverPostgres,
			streams:       streamrepo.New(pool),
			events:        eventrepo.New(pool),
			notifications: notificationrepo.New(pool),
			templates:     templaterepo.New(pool),
			tx:            postgres.NewTxManager(pool),
			ping:          pool.Ping,
			close:         pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
