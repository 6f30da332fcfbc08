package template

import (
	"context"
	"fmt"
	"strings"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
	"github.com/heartmarshall/satstream-ledger/internal/service/ledger"
)

// CreateTemplate stores a new template. Names are unique.
func (s *Service) CreateTemplate(ctx context.Context, input CreateTemplateInput) (*domain.StreamTemplate, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	tpl, err := s.templates.Create(ctx, &domain.StreamTemplate{
		Name:        domain.NormalizeTemplateName(input.Name),
		Description: strings.TrimSpace(input.Description),
		Duration:    input.Duration,
		Rate:        input.Rate,
		Creator:     domain.NormalizePrincipal(string(input.Creator)),
		CreatedAt:   s.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create template: %w", domain.AsPersistence(err))
	}

	s.log.InfoContext(ctx, "template created",
		"template_id", tpl.ID,
		"name", tpl.Name,
		"creator", tpl.Creator,
	)
	return tpl, nil
}

// ListTemplates returns every template ordered by id.
func (s *Service) ListTemplates(ctx context.Context) ([]*domain.StreamTemplate, error) {
	tpls, err := s.templates.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", domain.AsPersistence(err))
	}
	return tpls, nil
}

// CreateStreamFromTemplate creates a stream with the template's rate and
// duration and bumps its usage count.
func (s *Service) CreateStreamFromTemplate(ctx context.Context, input FromTemplateInput) (domain.Stream, error) {
	tpl, err := s.templates.GetByID(ctx, input.TemplateID)
	if err != nil {
		return domain.Stream{}, fmt.Errorf("create stream from template %d: %w", input.TemplateID, domain.AsPersistence(err))
	}

	templateID := tpl.ID
	stream, err := s.engine.CreateStream(ctx, ledger.CreateStreamInput{
		Sender:      input.Sender,
		Recipient:   input.Recipient,
		Rate:        tpl.Rate,
		Duration:    tpl.Duration,
		TotalLocked: input.TotalLocked,
		DedupToken:  input.DedupToken,
		TemplateID:  &templateID,
	})
	if err != nil {
		return domain.Stream{}, fmt.Errorf("create stream from template %d: %w", tpl.ID, err)
	}

	// The stream exists at this point; a lost usage bump is only logged.
	if _, err := s.templates.IncrementUsage(ctx, tpl.ID); err != nil {
		s.log.WarnContext(ctx, "increment template usage", "template_id", tpl.ID, "error", err)
	}

	return stream, nil
}
