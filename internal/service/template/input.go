package template

import (
	"strings"
	"time"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

// CreateTemplateInput holds the parameters for creating a template.
type CreateTemplateInput struct {
	Name        string
	Description string
	Duration    time.Duration
	Rate        int64
	Creator     domain.Principal
}

// Validate checks all fields and collects all errors.
func (i CreateTemplateInput) Validate() error {
	var errs []domain.FieldError

	name := strings.TrimSpace(i.Name)
	if name == "" {
		errs = append(errs, domain.FieldError{Field: "name", Message: "required"})
	}
	if len(name) > 100 {
		errs = append(errs, domain.FieldError{Field: "name", Message: "max 100 characters"})
	}
	if len(strings.TrimSpace(i.Description)) > 500 {
		errs = append(errs, domain.FieldError{Field: "description", Message: "max 500 characters"})
	}
	if i.Rate <= 0 {
		errs = append(errs, domain.FieldError{Field: "rate", Message: "must be positive"})
	}
	if i.Duration < 0 {
		errs = append(errs, domain.FieldError{Field: "duration", Message: "must not be negative"})
	}
	if i.Duration%time.Second != 0 {
		errs = append(errs, domain.FieldError{Field: "duration", Message: "must be whole seconds"})
	}
	if !domain.NormalizePrincipal(string(i.Creator)).Valid() {
		errs = append(errs, domain.FieldError{Field: "creator", Message: "malformed principal"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// FromTemplateInput starts a stream from a template. TotalLocked may be 0
// when the template has a duration.
type FromTemplateInput struct {
	TemplateID  int64
	Sender      domain.Principal
	Recipient   domain.Principal
	TotalLocked int64
	DedupToken  string
}
