package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

// CreateStream escrows the lock from the sender and opens an Active stream.
// With a DedupToken, repeating the call returns the original stream.
func (e *Engine) CreateStream(ctx context.Context, in CreateStreamInput) (domain.Stream, error) {
	in = in.normalize()
	if err := in.Validate(e.limits); err != nil {
		return domain.Stream{}, err
	}

	if in.DedupToken != "" {
		if s, ok, err := e.findDuplicate(ctx, in); err != nil || ok {
			return s, err
		}
	}

	total := in.lock()
	if err := e.funds.Reserve(ctx, in.Sender, total); err != nil {
		return domain.Stream{}, fmt.Errorf("reserve %d sats from %s: %w", total, in.Sender, err)
	}

	now := e.clock.Now()
	s := domain.Stream{
		Sender:        in.Sender,
		Recipient:     in.Recipient,
		Rate:          in.Rate,
		TotalLocked:   total,
		AccrualAnchor: now,
		Status:        domain.StreamStatusActive,
		Duration:      in.Duration,
		TemplateID:    in.TemplateID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.DedupToken != "" {
		s.DedupToken = &in.DedupToken
	}

	var created *domain.Stream
	events := []domain.StreamEvent{{Type: domain.EventStreamCreated, Actor: in.Sender, Amount: total, At: now}}

	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = e.streams.Create(ctx, &s)
		if err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		events[0].StreamID = created.ID
		events[0].Stream = *created
		return e.events.Append(ctx, events)
	})
	if err != nil {
		if relErr := e.funds.Release(ctx, in.Sender, total); relErr != nil {
			e.log.ErrorContext(ctx, "release reservation after failed create",
				"sender", in.Sender, "amount", total, "error", relErr)
		}
		if in.DedupToken != "" && errors.Is(err, domain.ErrAlreadyExists) {
			if s, ok, dupErr := e.findDuplicate(ctx, in); dupErr != nil || ok {
				return s, dupErr
			}
		}
		return domain.Stream{}, domain.AsPersistence(err)
	}

	// a concurrent dedup lookup may have loaded the row already; keep its cell
	e.arena.LoadOrStore(created.ID, newCell(*created))
	e.publish(ctx, events)

	e.log.InfoContext(ctx, "stream created",
		"stream_id", created.ID,
		"sender", created.Sender,
		"recipient", created.Recipient,
		"rate", created.Rate,
		"total_locked", created.TotalLocked,
	)

	return *created, nil
}

func (e *Engine) findDuplicate(ctx context.Context, in CreateStreamInput) (domain.Stream, bool, error) {
	s, err := e.streams.GetByDedupToken(ctx, in.Sender, in.DedupToken)
	switch {
	case err == nil:
		c, err := e.load(ctx, s.ID)
		if err != nil {
			return domain.Stream{}, false, err
		}
		return c.snapshot(), true, nil
	case errors.Is(err, domain.ErrNotFound):
		return domain.Stream{}, false, nil
	default:
		return domain.Stream{}, false, domain.AsPersistence(err)
	}
}
