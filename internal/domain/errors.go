package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────

var (
	// Ledger errors
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidAmount = errors.New("credit amount must be positive")

	// Idea errors
	ErrIdeaNotFound = errors.New("idea not found")
	ErrEmptyIdea    = errors.New("idea text is required")

	// Upstream generation errors
	ErrRateLimited = errors.New("generation service rate limited")

	// Auth errors
	ErrUnauthorized = errors.New("authorization required")
)

// InsufficientCreditsError is returned by a debit that would overdraw the
// balance. No mutation has happened when it is returned.
type InsufficientCreditsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

// UpstreamError wraps a generation failure that is not a rate limit.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// PersistenceError wraps a store failure during a paid operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsValidation reports whether err was caused by bad caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyIdea) || errors.Is(err, ErrInvalidAmount)
}
