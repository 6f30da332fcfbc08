package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

type streamRow = domain.Stream

// StreamRepo stores streams.
type StreamRepo struct {
	store *Store
}

// NewStreamRepo creates a StreamRepo over s.
func NewStreamRepo(s *Store) *StreamRepo {
	return &StreamRepo{store: s}
}

func cloneStream(s domain.Stream) *domain.Stream {
	if s.TemplateID != nil {
		v := *s.TemplateID
		s.TemplateID = &v
	}
	if s.DedupToken != nil {
		v := *s.DedupToken
		s.DedupToken = &v
	}
	return &s
}

// Create assigns the next id and stores s.
func (r *StreamRepo) Create(ctx context.Context, s *domain.Stream) (*domain.Stream, error) {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	if s.DedupToken != nil {
		for _, row := range st.streams {
			if row.Sender == s.Sender && row.DedupToken != nil && *row.DedupToken == *s.DedupToken {
				return nil, fmt.Errorf("stream dedup %s: %w", *s.DedupToken, domain.ErrAlreadyExists)
			}
		}
	}

	st.nextStreamID++
	row := *cloneStream(*s)
	row.ID = st.nextStreamID
	row.Version = 0
	st.streams[row.ID] = row

	st.record(ctx, func() { delete(st.streams, row.ID) })
	return cloneStream(row), nil
}

// Update overwrites the mutable fields of an existing stream if the stored
// version still equals s.Version, then bumps the version in both places.
// A newer stored version yields domain.ErrConflict.
func (r *StreamRepo) Update(ctx context.Context, s *domain.Stream) error {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	prev, ok := st.streams[s.ID]
	if !ok {
		return fmt.Errorf("stream %d: %w", s.ID, domain.ErrNotFound)
	}
	if prev.Version != s.Version {
		return fmt.Errorf("stream %d version %d (stored %d): %w", s.ID, s.Version, prev.Version, domain.ErrConflict)
	}
	row := prev
	row.Claimed = s.Claimed
	row.AccrualAnchor = s.AccrualAnchor
	row.AccruedAtAnchor = s.AccruedAtAnchor
	row.Status = s.Status
	row.Refunded = s.Refunded
	row.CancelFee = s.CancelFee
	row.UpdatedAt = s.UpdatedAt
	row.Version++
	st.streams[s.ID] = row
	s.Version = row.Version

	st.record(ctx, func() { st.streams[s.ID] = prev })
	return nil
}

// GetByID returns a stream or domain.ErrNotFound.
func (r *StreamRepo) GetByID(_ context.Context, id int64) (*domain.Stream, error) {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	row, ok := st.streams[id]
	if !ok {
		return nil, fmt.Errorf("stream %d: %w", id, domain.ErrNotFound)
	}
	return cloneStream(row), nil
}

// GetByDedupToken finds the stream a sender created with token.
func (r *StreamRepo) GetByDedupToken(_ context.Context, sender domain.Principal, token string) (*domain.Stream, error) {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, row := range st.streams {
		if row.Sender == sender && row.DedupToken != nil && *row.DedupToken == token {
			return cloneStream(row), nil
		}
	}
	return nil, fmt.Errorf("stream dedup %s: %w", token, domain.ErrNotFound)
}

// List returns streams matching filter ordered by id.
func (r *StreamRepo) List(_ context.Context, filter domain.StreamFilter) ([]*domain.Stream, error) {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]*domain.Stream, 0, len(st.streams))
	for _, row := range st.streams {
		if !matches(row, filter) {
			continue
		}
		out = append(out, cloneStream(row))
	}
	slices.SortFunc(out, func(a, b *domain.Stream) int { return cmp.Compare(a.ID, b.ID) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*domain.Stream{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matches(s domain.Stream, f domain.StreamFilter) bool {
	if f.Status != nil && s.Status != *f.Status {
		return false
	}
	if f.Principal == "" {
		return true
	}
	switch f.Role {
	case domain.StreamRoleSender:
		return s.Sender == f.Principal
	case domain.StreamRoleRecipient:
		return s.Recipient == f.Principal
	default:
		return s.Sender == f.Principal || s.Recipient == f.Principal
	}
}
