package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the ledger rejected the operation
	ExitUsage        = 2 // bad flags or arguments
	ExitCommandError = 3 // config, storage or network trouble
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Validation failures
// map to ExitUsage, persistence failures to ExitCommandError and any other
// error to ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, domain.ErrValidation):
		return ExitUsage
	case errors.Is(err, domain.ErrPersistence), errors.Is(err, domain.ErrConflict):
		return ExitCommandError
	default:
		return ExitFailure
	}
}

// printer writes either JSON or aligned text.
type printer struct {
	json bool
	w    io.Writer
	tw   *tabwriter.Writer
}

func newPrinter(opts *RootOptions, cmd *cobra.Command) *printer {
	return &printer{json: opts.Format == "json", w: cmd.OutOrStdout()}
}

// emit prints v as JSON, or calls text to render it for humans.
func (p *printer) emit(v any, text func(p *printer)) error {
	if p.json {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	p.tw = tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	text(p)
	return p.tw.Flush()
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.tw, format+"\n", args...)
}

// btc renders sats as BTC with all eight decimals.
func btc(sats int64) string {
	return decimal.New(sats, -8).StringFixed(8)
}

func ts(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
