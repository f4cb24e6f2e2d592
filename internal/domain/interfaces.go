package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// TextGenerator abstracts the external generative-text service.
type TextGenerator interface {
	// Complete returns the model's reply to a system + user prompt pair.
	// A rate-limit condition must be reported as an error wrapping ErrRateLimited.
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// LedgerStore is the backing store of the credit ledger. Every mutating
// method writes the balance change and its transaction row atomically.
type LedgerStore interface {
	EnsureUser(ctx context.Context, id Identity, initialGrant int64) (*User, error)
	GetUser(ctx context.Context, email string) (*User, error)
	Balance(ctx context.Context, email string) (int64, error)
	Debit(ctx context.Context, email string, amount int64, description string) (int64, error)
	Credit(ctx context.Context, email string, kind TransactionKind, amount int64, description string) (int64, error)
	ListTransactions(ctx context.Context, email string, limit int) ([]CreditTransaction, error)
}

// IdeaStore persists ideas, debate entries and requirements.
type IdeaStore interface {
	SaveIdea(ctx context.Context, idea *Idea) error
	SaveDebateEntries(ctx context.Context, ideaID string, turns []DebateTurn) error
	SaveRequirement(ctx context.Context, ideaID string, s Sections) (*Requirement, error)
	History(ctx context.Context, userID string, limit int) ([]HistoryItem, error)
	Details(ctx context.Context, ideaID string) (*IdeaDetails, error)
}

// TokenVerifier resolves a bearer token into an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
