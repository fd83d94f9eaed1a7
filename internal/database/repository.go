package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LedgerPolicy controls how long expiring balance entries stay spendable
type LedgerPolicy struct {
	// MaxBalanceAge is the age after which an expiring entry no longer counts.
	MaxBalanceAge time.Duration
	// AtRiskWindow is how close to expiry an entry must be to count as at risk.
	AtRiskWindow time.Duration
}

// Repository handles database operations
type Repository struct {
	db     *DB
	policy LedgerPolicy
	now    func() time.Time
}

// NewRepository creates a new repository
func NewRepository(db *DB, policy LedgerPolicy) *Repository {
	return &Repository{
		db:     db,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rebinder adapts $N placeholders to the connection's driver.
type rebinder struct {
	q  querier
	db *DB
}

func (b rebinder) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return b.q.ExecContext(ctx, b.db.rebind(query), args...)
}

func (b rebinder) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.q.QueryContext(ctx, b.db.rebind(query), args...)
}

func (b rebinder) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return b.q.QueryRowContext(ctx, b.db.rebind(query), args...)
}

func (r *Repository) conn() querier {
	return rebinder{q: r.db.conn, db: r.db}
}

// inTx runs fn inside a transaction, committing on success.
func (r *Repository) inTx(ctx context.Context, fn func(tx querier) error) error {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(rebinder{q: tx, db: r.db}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// expiryCutoff is the oldest created_at (unix seconds) that still counts.
func (r *Repository) expiryCutoff(now time.Time) int64 {
	return now.Add(-r.policy.MaxBalanceAge).Unix()
}
