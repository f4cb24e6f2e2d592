package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/focal-ai/focal/internal/domain"
)

// ─── Ledger Operations ──────────────────────────────────────────────────────
// Users are keyed by email. Every balance change and its credit_transactions
// row commit in one transaction. CHECK(credits >= 0) backs the conditional
// UPDATE.

const defaultTxLimit = 50

// EnsureUser returns the user for id.Email, creating it with an initial
// grant when absent. An existing user's last_login is refreshed.
func (db *DB) EnsureUser(ctx context.Context, id domain.Identity, initialGrant int64) (*domain.User, error) {
	if id.Email == "" {
		return nil, fmt.Errorf("ensure user: empty email")
	}
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ts := formatTime(now())
	res, err := tx.ExecContext(ctx, `
		UPDATE users SET
			last_login = ?,
			name       = CASE WHEN ? <> '' THEN ? ELSE name END,
			picture    = CASE WHEN ? <> '' THEN ? ELSE picture END
		WHERE email = ?
	`, ts, id.Name, id.Name, id.Picture, id.Picture, id.Email)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if initialGrant < 0 {
			initialGrant = 0
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (id, email, name, picture, subject_id, credits, created_at, last_login)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, uuid.NewString(), id.Email, id.Name, id.Picture, id.SubjectID, initialGrant, ts, ts)
		if err != nil {
			return nil, err
		}
		if initialGrant > 0 {
			if err := insertTransaction(ctx, tx, id.Email, domain.TxInitial, initialGrant, "Initial credits", ts); err != nil {
				return nil, err
			}
		}
	}

	u, err := scanUser(tx.QueryRowContext(ctx, userSelect+` WHERE email = ?`, id.Email))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return u, nil
}

const userSelect = `SELECT id, email, name, picture, subject_id, credits, created_at, last_login FROM users`

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var created, login string
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Picture, &u.SubjectID, &u.Credits, &created, &login)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(created)
	u.LastLogin = parseTime(login)
	return &u, nil
}

// GetUser retrieves a user by email.
func (db *DB) GetUser(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(db.db.QueryRowContext(ctx, userSelect+` WHERE email = ?`, email))
}

// Balance returns the user's current credits.
func (db *DB) Balance(ctx context.Context, email string) (int64, error) {
	var credits int64
	err := db.db.QueryRowContext(ctx, `SELECT credits FROM users WHERE email = ?`, email).Scan(&credits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrUserNotFound
	}
	return credits, err
}

// Debit subtracts amount only if the balance covers it, in one conditional
// UPDATE. Returns the new balance.
func (db *DB) Debit(ctx context.Context, email string, amount int64, description string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx, `
		UPDATE users SET credits = credits - ?
		WHERE email = ? AND credits >= ?
		RETURNING credits
	`, amount, email, amount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		var available int64
		err = tx.QueryRowContext(ctx, `SELECT credits FROM users WHERE email = ?`, email).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrUserNotFound
		}
		if err != nil {
			return 0, err
		}
		return 0, &domain.InsufficientCreditsError{Required: amount, Available: available}
	}
	if err != nil {
		return 0, err
	}

	if err := insertTransaction(ctx, tx, email, domain.TxDeduction, amount, description, formatTime(now())); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

// Credit adds amount unconditionally. kind must be initial or addition.
func (db *DB) Credit(ctx context.Context, email string, kind domain.TransactionKind, amount int64, description string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	if kind != domain.TxAddition && kind != domain.TxInitial {
		return 0, fmt.Errorf("credit: invalid kind %q", kind)
	}
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx, `
		UPDATE users SET credits = credits + ? WHERE email = ? RETURNING credits
	`, amount, email).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}

	if err := insertTransaction(ctx, tx, email, kind, amount, description, formatTime(now())); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, email string, kind domain.TransactionKind, amount int64, description, ts string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (user_id, kind, amount, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, email, string(kind), kind.SignedAmount(amount), description, ts)
	return err
}

// ListTransactions returns the user's transactions, newest first.
func (db *DB) ListTransactions(ctx context.Context, email string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 {
		limit = defaultTxLimit
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, user_id, kind, amount, description, created_at
		FROM credit_transactions WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, email, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CreditTransaction
	for rows.Next() {
		var t domain.CreditTransaction
		var kind, created string
		if err := rows.Scan(&t.ID, &t.UserID, &kind, &t.Amount, &t.Description, &created); err != nil {
			return nil, err
		}
		t.Kind = domain.TransactionKind(kind)
		t.CreatedAt = parseTime(created)
		result = append(result, t)
	}
	return result, rows.Err()
}

// AuditBalance returns the stored balance next to the sum of the user's
// transactions. The two must always be equal.
func (db *DB) AuditBalance(ctx context.Context, email string) (balance, sum int64, err error) {
	err = db.db.QueryRowContext(ctx, `
		SELECT u.credits,
		       COALESCE((SELECT SUM(amount) FROM credit_transactions t WHERE t.user_id = u.email), 0)
		FROM users u WHERE u.email = ?
	`, email).Scan(&balance, &sum)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, domain.ErrUserNotFound
	}
	return
}
