package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/heartmarshall/satstream-ledger/internal/config"
	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

const maxDedupTokenLen = 128

// CreateStreamInput describes a new stream. TotalLocked may be left 0 when
// Duration is set; the lock is then Rate * Duration.
type CreateStreamInput struct {
	Sender      domain.Principal
	Recipient   domain.Principal
	Rate        int64
	Duration    time.Duration
	TotalLocked int64
	DedupToken  string
	TemplateID  *int64
}

func (i CreateStreamInput) normalize() CreateStreamInput {
	i.Sender = domain.NormalizePrincipal(string(i.Sender))
	i.Recipient = domain.NormalizePrincipal(string(i.Recipient))
	return i
}

// lock returns the sats to escrow. Valid only after Validate.
func (i CreateStreamInput) lock() int64 {
	if i.TotalLocked > 0 {
		return i.TotalLocked
	}
	return int64(i.Duration/time.Second) * i.Rate
}

func (i CreateStreamInput) Validate(limits config.LedgerConfig) error {
	var errs []domain.FieldError

	if !i.Sender.Valid() {
		errs = append(errs, domain.FieldError{Field: "sender", Message: "malformed principal"})
	}
	if !i.Recipient.Valid() {
		errs = append(errs, domain.FieldError{Field: "recipient", Message: "malformed principal"})
	}
	if i.Sender != "" && i.Sender == i.Recipient {
		errs = append(errs, domain.FieldError{Field: "recipient", Message: "must differ from sender"})
	}

	switch {
	case i.Rate <= 0:
		errs = append(errs, domain.FieldError{Field: "rate", Message: "must be positive"})
	case i.Rate < limits.MinRate || (limits.MaxRate > 0 && i.Rate > limits.MaxRate):
		errs = append(errs, domain.FieldError{
			Field:   "rate",
			Message: fmt.Sprintf("must be within %d..%d sats/s", limits.MinRate, limits.MaxRate),
		})
	}

	if i.Duration < 0 {
		errs = append(errs, domain.FieldError{Field: "duration", Message: "must not be negative"})
	}

	switch {
	case i.TotalLocked < 0:
		errs = append(errs, domain.FieldError{Field: "total_locked", Message: "must be positive"})
	case i.TotalLocked == 0 && i.Duration < time.Second:
		errs = append(errs, domain.FieldError{Field: "total_locked", Message: "required when duration is not set"})
	case i.TotalLocked == 0 && i.Rate > 0 && int64(i.Duration/time.Second) > math.MaxInt64/i.Rate:
		errs = append(errs, domain.FieldError{Field: "duration", Message: "rate * duration overflows"})
	}

	if len(i.DedupToken) > maxDedupTokenLen {
		errs = append(errs, domain.FieldError{Field: "dedup_token", Message: fmt.Sprintf("max %d characters", maxDedupTokenLen)})
	}

	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}
