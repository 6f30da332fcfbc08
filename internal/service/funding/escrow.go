// Package funding implements the escrow collaborator the ledger draws
// stream locks from and pays claims and refunds back into.
package funding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/heartmarshall/satstream-ledger/internal/config"
	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

type account struct {
	mu      sync.Mutex
	balance int64
	fees    int64
}

// Escrow keeps per-principal spendable balances in sats. Locked funds live
// in the streams themselves; Escrow tracks their total as Escrowed.
type Escrow struct {
	accounts *xsync.Map[domain.Principal, *account]
	initial  int64
	feeBps   int64
	log      *slog.Logger

	mu       sync.Mutex
	escrowed int64
	fees     int64
}

// NewEscrow creates an Escrow. New principals start with cfg.InitialBalance.
func NewEscrow(log *slog.Logger, cfg config.FundingConfig) *Escrow {
	return &Escrow{
		accounts: xsync.NewMap[domain.Principal, *account](),
		initial:  cfg.InitialBalance,
		feeBps:   cfg.CancelFeeBps,
		log:      log.With("service", "funding"),
	}
}

func (e *Escrow) account(p domain.Principal) *account {
	a, _ := e.accounts.LoadOrCompute(p, func() (*account, bool) {
		return &account{balance: e.initial}, false
	})
	return a
}

func positive(amount int64) error {
	if amount <= 0 {
		return domain.NewValidationError("amount", "must be positive")
	}
	return nil
}

// Deposit credits p. Used for seeding and tests.
func (e *Escrow) Deposit(_ context.Context, p domain.Principal, amount int64) error {
	if err := positive(amount); err != nil {
		return err
	}
	a := e.account(p)
	a.mu.Lock()
	a.balance += amount
	a.mu.Unlock()
	return nil
}

// Reserve moves amount from p's balance into escrow.
func (e *Escrow) Reserve(_ context.Context, p domain.Principal, amount int64) error {
	if err := positive(amount); err != nil {
		return err
	}
	a := e.account(p)
	a.mu.Lock()
	if a.balance < amount {
		bal := a.balance
		a.mu.Unlock()
		return fmt.Errorf("%s has %d sats, needs %d: %w", p, bal, amount, domain.ErrInsufficientFunds)
	}
	a.balance -= amount
	a.mu.Unlock()

	e.mu.Lock()
	e.escrowed += amount
	e.mu.Unlock()
	return nil
}

// Release returns a reservation to p unchanged.
func (e *Escrow) Release(_ context.Context, p domain.Principal, amount int64) error {
	if err := positive(amount); err != nil {
		return err
	}
	e.mu.Lock()
	e.escrowed -= amount
	e.mu.Unlock()

	a := e.account(p)
	a.mu.Lock()
	a.balance += amount
	a.mu.Unlock()
	return nil
}

// Payout moves claimed sats from escrow to the recipient.
func (e *Escrow) Payout(ctx context.Context, p domain.Principal, amount int64) error {
	return e.Release(ctx, p, amount)
}

// CancelFee quotes the fee Refund will retain from a refund of amount at
// the configured rate.
func (e *Escrow) CancelFee(amount int64) int64 {
	return Fee(amount, e.feeBps)
}

// Refund returns a cancelled stream's remainder to the sender, keeping fee
// (quoted earlier by CancelFee and stored with the stream).
func (e *Escrow) Refund(ctx context.Context, p domain.Principal, amount, fee int64) error {
	if err := positive(amount); err != nil {
		return err
	}
	if fee < 0 || fee > amount {
		return domain.NewValidationError("fee", "must be between 0 and the refund")
	}

	e.mu.Lock()
	e.escrowed -= amount
	e.fees += fee
	e.mu.Unlock()

	a := e.account(p)
	a.mu.Lock()
	a.balance += amount - fee
	a.fees += fee
	a.mu.Unlock()

	if fee > 0 {
		e.log.DebugContext(ctx, "cancellation fee retained", "principal", p, "refund", amount, "fee", fee)
	}
	return nil
}

// Fee returns amount * bps / 10000 rounded half up.
func Fee(amount, bps int64) int64 {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	// split to keep amount*bps from overflowing
	whole, rest := amount/10000, amount%10000
	return whole*bps + (rest*bps+5000)/10000
}

// Balance returns p's spendable balance.
func (e *Escrow) Balance(p domain.Principal) int64 {
	a := e.account(p)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// FeesPaid returns the cancellation fees p has paid.
func (e *Escrow) FeesPaid(p domain.Principal) int64 {
	a, ok := e.accounts.Load(p)
	if !ok {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fees
}

// Escrowed returns the sats currently held for open streams.
func (e *Escrow) Escrowed() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.escrowed
}

// FeesCollected returns all fees retained so far.
func (e *Escrow) FeesCollected() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fees
}

// Replay rebuilds balances from persisted streams after a restart: every
// lock is drawn from its sender, claims are paid to recipients, and refunds
// return to senders minus the fee stored with the stream. Call it once,
// before serving.
func (e *Escrow) Replay(streams []domain.Stream) {
	for _, s := range streams {
		sender := e.account(s.Sender)
		recipient := e.account(s.Recipient)
		fee := s.CancelFee

		sender.mu.Lock()
		sender.balance += s.Refunded - fee - s.TotalLocked
		sender.fees += fee
		sender.mu.Unlock()

		recipient.mu.Lock()
		recipient.balance += s.Claimed
		recipient.mu.Unlock()

		e.mu.Lock()
		e.escrowed += s.TotalLocked - s.Claimed - s.Refunded
		e.fees += fee
		e.mu.Unlock()
	}
	e.log.Info("escrow replayed", "streams", len(streams), "escrowed", e.Escrowed())
}
