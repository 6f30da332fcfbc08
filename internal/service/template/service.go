// Package template manages reusable rate/duration presets for new streams.
package template

import (
	"context"
	"log/slog"

	"github.com/heartmarshall/satstream-ledger/internal/clock"
	"github.com/heartmarshall/satstream-ledger/internal/domain"
	"github.com/heartmarshall/satstream-ledger/internal/service/ledger"
)

type templateRepo interface {
	Create(ctx context.Context, t *domain.StreamTemplate) (*domain.StreamTemplate, error)
	GetByID(ctx context.Context, id int64) (*domain.StreamTemplate, error)
	List(ctx context.Context) ([]*domain.StreamTemplate, error)
	IncrementUsage(ctx context.Context, id int64) (*domain.StreamTemplate, error)
}

type streamCreator interface {
	CreateStream(ctx context.Context, in ledger.CreateStreamInput) (domain.Stream, error)
}

// Service provides template management operations.
type Service struct {
	templates templateRepo
	engine    streamCreator
	clock     clock.Clock
	log       *slog.Logger
}

// NewService creates a new template Service.
func NewService(log *slog.Logger, clk clock.Clock, templates templateRepo, engine streamCreator) *Service {
	return &Service{
		templates: templates,
		engine:    engine,
		clock:     clk,
		log:       log.With("service", "template"),
	}
}
