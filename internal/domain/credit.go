package domain

import "time"

// ─── Credit Types ───────────────────────────────────────────────────────────
// A user's balance is the sum of every transaction amount recorded for them.
// Deductions are negative; initial grants and additions are positive.

// TransactionKind is the closed set of reasons a balance can change.
type TransactionKind string

const (
	TxInitial   TransactionKind = "initial"
	TxDeduction TransactionKind = "deduction"
	TxAddition  TransactionKind = "addition"
)

// Valid reports whether k is one of the known transaction kinds.
func (k TransactionKind) Valid() bool {
	switch k {
	case TxInitial, TxDeduction, TxAddition:
		return true
	}
	return false
}

// SignedAmount applies the sign convention for k to a positive magnitude.
func (k TransactionKind) SignedAmount(amount int64) int64 {
	if k == TxDeduction {
		return -amount
	}
	return amount
}

// User is a ledger account keyed by the identity provider's email.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Picture   string    `json:"picture,omitempty"`
	SubjectID string    `json:"subject_id,omitempty"`
	Credits   int64     `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
	LastLogin time.Time `json:"last_login"`
}

// CreditTransaction is one immutable row of a user's audit trail.
type CreditTransaction struct {
	ID          int64           `json:"id"`
	UserID      string          `json:"user_id"`
	Kind        TransactionKind `json:"kind"`
	Amount      int64           `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Identity is what a verified bearer token resolves to.
type Identity struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Picture   string `json:"picture"`
	SubjectID string `json:"sub"`
}
