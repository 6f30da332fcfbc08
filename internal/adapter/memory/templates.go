package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

type templateRow = domain.StreamTemplate

// TemplateRepo stores stream templates.
type TemplateRepo struct {
	store *Store
}

// NewTemplateRepo creates a TemplateRepo over s.
func NewTemplateRepo(s *Store) *TemplateRepo {
	return &TemplateRepo{store: s}
}

// Create stores t under the next id. Names are unique.
func (r *TemplateRepo) Create(ctx context.Context, t *domain.StreamTemplate) (*domain.StreamTemplate, error) {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, row := range st.templates {
		if row.Name == t.Name {
			return nil, fmt.Errorf("stream_template %q: %w", t.Name, domain.ErrAlreadyExists)
		}
	}

	st.nextTplID++
	row := *t
	row.ID = st.nextTplID
	st.templates[row.ID] = row

	st.record(ctx, func() { delete(st.templates, row.ID) })
	return &row, nil
}

// GetByID returns a template or domain.ErrNotFound.
func (r *TemplateRepo) GetByID(_ context.Context, id int64) (*domain.StreamTemplate, error) {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	row, ok := st.templates[id]
	if !ok {
		return nil, fmt.Errorf("stream_template %d: %w", id, domain.ErrNotFound)
	}
	return &row, nil
}

// List returns every template ordered by id.
func (r *TemplateRepo) List(_ context.Context) ([]*domain.StreamTemplate, error) {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]*domain.StreamTemplate, 0, len(st.templates))
	for _, row := range st.templates {
		out = append(out, &row)
	}
	slices.SortFunc(out, func(a, b *domain.StreamTemplate) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// IncrementUsage bumps usage_count and returns the updated template.
func (r *TemplateRepo) IncrementUsage(ctx context.Context, id int64) (*domain.StreamTemplate, error) {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	prev, ok := st.templates[id]
	if !ok {
		return nil, fmt.Errorf("stream_template %d: %w", id, domain.ErrNotFound)
	}
	row := prev
	row.UsageCount++
	st.templates[id] = row

	st.record(ctx, func() { st.templates[id] = prev })
	return &row, nil
}
