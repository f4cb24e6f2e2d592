// Package ledger owns user credit balances and their audit trail.
//
// Every mutation goes through the store's atomic primitives: a debit is a
// single conditional decrement plus one deduction row, a credit is an
// increment plus one addition row. The ledger never reads a balance and
// then writes it back.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/focal-ai/focal/internal/domain"
	"github.com/focal-ai/focal/internal/infra/observability"
)

// Config controls ledger behavior.
type Config struct {
	InitialGrant int64 // credits given to a newly created user
}

// DefaultConfig returns the production grant.
func DefaultConfig() Config {
	return Config{InitialGrant: 10}
}

// Ledger is the credit ledger service.
type Ledger struct {
	store domain.LedgerStore
	cfg   Config
}

// New creates a ledger over store.
func New(store domain.LedgerStore, cfg Config) *Ledger {
	return &Ledger{store: store, cfg: cfg}
}

// EnsureUser returns the user for a verified identity, creating it with
// the initial grant on first sight.
func (l *Ledger) EnsureUser(ctx context.Context, id domain.Identity) (*domain.User, error) {
	u, err := l.store.EnsureUser(ctx, id, l.cfg.InitialGrant)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return u, nil
}

// User returns the user record for email.
func (l *Ledger) User(ctx context.Context, email string) (*domain.User, error) {
	return l.store.GetUser(ctx, email)
}

// GetBalance returns the user's credits. An unknown user has a balance of 0.
func (l *Ledger) GetBalance(ctx context.Context, email string) (int64, error) {
	bal, err := l.store.Balance(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return 0, nil
	}
	return bal, err
}

// Debit charges amount if and only if the balance covers it. On
// insufficient funds it returns *domain.InsufficientCreditsError and
// nothing is written.
func (l *Ledger) Debit(ctx context.Context, email string, amount int64, description string) (int64, error) {
	bal, err := l.store.Debit(ctx, email, amount, description)
	var ic *domain.InsufficientCreditsError
	switch {
	case err == nil:
		observability.LedgerDebits.WithLabelValues("ok").Inc()
		log.Printf("[ledger] debit %s amount=%d balance=%d (%s)", email, amount, bal, description)
	case errors.As(err, &ic):
		observability.LedgerDebits.WithLabelValues("insufficient").Inc()
		log.Printf("[ledger] debit refused %s required=%d available=%d", email, ic.Required, ic.Available)
	default:
		observability.LedgerDebits.WithLabelValues("error").Inc()
	}
	return bal, err
}

// Credit adds amount to the balance as an addition.
func (l *Ledger) Credit(ctx context.Context, email string, amount int64, description string) (int64, error) {
	bal, err := l.store.Credit(ctx, email, domain.TxAddition, amount, description)
	if err != nil {
		return 0, err
	}
	observability.LedgerCredits.WithLabelValues(string(domain.TxAddition)).Inc()
	log.Printf("[ledger] credit %s amount=%d balance=%d (%s)", email, amount, bal, description)
	return bal, nil
}

// Refund returns amount after a paid operation failed at stage.
func (l *Ledger) Refund(ctx context.Context, email string, amount int64, stage string) (int64, error) {
	bal, err := l.Credit(ctx, email, amount, "Refund: "+stage+" failed")
	if err != nil {
		log.Printf("[ledger] REFUND FAILED %s amount=%d stage=%s: %v", email, amount, stage, err)
		return 0, err
	}
	observability.LedgerRefunds.WithLabelValues(stage).Inc()
	return bal, nil
}

// ListTransactions returns up to limit transactions, newest first.
func (l *Ledger) ListTransactions(ctx context.Context, email string, limit int) ([]domain.CreditTransaction, error) {
	return l.store.ListTransactions(ctx, email, limit)
}
