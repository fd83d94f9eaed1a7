package database

import (
	"context"
	"fmt"

	"starbucks/internal/models"
)

// Deposit adds an expiring credit to the user's account
func (r *Repository) Deposit(ctx context.Context, userID string, amount int64, reason string) error {
	if err := r.insertEntry(ctx, r.conn(), "econ_user_balances", userID, amount, reason); err != nil {
		return fmt.Errorf("failed to deposit: %w", err)
	}
	return nil
}

// DepositPerma adds a non-expiring credit, or a debit when amount is negative
func (r *Repository) DepositPerma(ctx context.Context, userID string, amount int64, reason string) error {
	if err := r.insertEntry(ctx, r.conn(), "econ_user_perma_balances", userID, amount, reason); err != nil {
		return fmt.Errorf("failed to deposit perma: %w", err)
	}
	return nil
}

func (r *Repository) insertEntry(ctx context.Context, q querier, table, userID string, amount int64, reason string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO `+table+` (user_id, amount, reason, created_at) VALUES ($1, $2, $3, $4)`,
		userID, amount, reason, r.now().Unix())
	return err
}

// Balance returns the spendable balance: unexpired entries plus the permanent balance
func (r *Repository) Balance(ctx context.Context, userID string) (int64, error) {
	balance, err := r.balance(ctx, r.conn(), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (r *Repository) balance(ctx context.Context, q querier, userID string) (int64, error) {
	var temp, perma int64
	err := q.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM econ_user_balances WHERE user_id = $1 AND created_at >= $2",
		userID, r.expiryCutoff(r.now())).Scan(&temp)
	if err != nil {
		return 0, err
	}
	perma, err = r.permaBalance(ctx, q, userID)
	if err != nil {
		return 0, err
	}
	return temp + perma, nil
}

// PermaBalance returns the non-expiring balance; negative means outstanding fines
func (r *Repository) PermaBalance(ctx context.Context, userID string) (int64, error) {
	perma, err := r.permaBalance(ctx, r.conn(), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get perma balance: %w", err)
	}
	return perma, nil
}

func (r *Repository) permaBalance(ctx context.Context, q querier, userID string) (int64, error) {
	var perma int64
	err := q.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM econ_user_perma_balances WHERE user_id = $1",
		userID).Scan(&perma)
	return perma, err
}

// AtRiskBalance returns the credits that expire within the at-risk window
func (r *Repository) AtRiskBalance(ctx context.Context, userID string) (int64, error) {
	cutoff := r.expiryCutoff(r.now())
	var atRisk int64
	err := r.conn().QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM econ_user_balances WHERE user_id = $1 AND amount > 0 AND created_at >= $2 AND created_at < $3",
		userID, cutoff, cutoff+int64(r.policy.AtRiskWindow.Seconds())).Scan(&atRisk)
	if err != nil {
		return 0, fmt.Errorf("failed to get at risk balance: %w", err)
	}
	return atRisk, nil
}

// Balances gathers networth, at-risk and permanent balance for a user
func (r *Repository) Balances(ctx context.Context, userID string) (models.Balances, error) {
	var b models.Balances
	var err error
	if b.Networth, err = r.Balance(ctx, userID); err != nil {
		return b, err
	}
	if b.AtRisk, err = r.AtRiskBalance(ctx, userID); err != nil {
		return b, err
	}
	if b.Perma, err = r.PermaBalance(ctx, userID); err != nil {
		return b, err
	}
	return b, nil
}

// CleanAccount deletes expired entries and returns how many were removed
func (r *Repository) CleanAccount(ctx context.Context, userID string) (int64, error) {
	res, err := r.conn().ExecContext(ctx,
		"DELETE FROM econ_user_balances WHERE user_id = $1 AND created_at < $2",
		userID, r.expiryCutoff(r.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to clean account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to clean account: %w", err)
	}
	return n, nil
}

// Entries lists the user's unexpired entries, oldest first
func (r *Repository) Entries(ctx context.Context, userID string) ([]models.BalanceEntry, error) {
	rows, err := r.conn().QueryContext(ctx,
		"SELECT entry_id, amount, reason, created_at FROM econ_user_balances WHERE user_id = $1 AND created_at >= $2 ORDER BY created_at ASC, entry_id ASC",
		userID, r.expiryCutoff(r.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}
	defer rows.Close()

	var entries []models.BalanceEntry
	for rows.Next() {
		var e models.BalanceEntry
		var created int64
		if err := rows.Scan(&e.EntryID, &e.Amount, &e.Reason, &created); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.UserID = userID
		e.Timestamp = unixTime(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Withdraw debits amount if the user can afford it. An unaffordable
// withdrawal returns false without error.
func (r *Repository) Withdraw(ctx context.Context, userID string, amount int64) (bool, error) {
	var ok bool
	err := r.inTx(ctx, func(tx querier) error {
		var err error
		ok, err = r.withdraw(ctx, tx, userID, amount)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to withdraw: %w", err)
	}
	return ok, nil
}

// Transfer moves amount between users in one transaction
func (r *Repository) Transfer(ctx context.Context, fromUserID, toUserID string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("transfer amount must be positive")
	}
	var ok bool
	err := r.inTx(ctx, func(tx querier) error {
		var err error
		ok, err = r.withdraw(ctx, tx, fromUserID, amount)
		if err != nil || !ok {
			return err
		}
		return r.insertEntry(ctx, tx, "econ_user_balances", toUserID, amount, "transfer")
	})
	if err != nil {
		return false, fmt.Errorf("failed to transfer: %w", err)
	}
	return ok, nil
}

// ApplyFine takes as much of the fine as the balance covers and records the
// remainder as negative permanent balance. It returns the withdrawn part.
// The covered part is measured under the same row locks that debit it, so
// withdrawn plus the recorded remainder always equals amount.
func (r *Repository) ApplyFine(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("fine amount must be positive")
	}
	var withdrawn int64
	err := r.inTx(ctx, func(tx querier) error {
		funds, err := r.lockFunds(ctx, tx, userID)
		if err != nil {
			return err
		}
		withdrawn = min(amount, max(funds.available(), 0))
		if err := r.consume(ctx, tx, userID, funds, withdrawn); err != nil {
			return err
		}
		if rest := amount - withdrawn; rest > 0 {
			return r.insertEntry(ctx, tx, "econ_user_perma_balances", userID, -rest, "fine")
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to apply fine: %w", err)
	}
	return withdrawn, nil
}

type credit struct {
	id     int64
	amount int64
}

// funds is a user's spendable balance read under row locks.
type funds struct {
	credits []credit
	temp    int64
	perma   int64
}

func (f funds) available() int64 {
	return f.temp + f.perma
}

// lockFunds reads the unexpired credits oldest first, locking them on
// Postgres, and the permanent balance.
func (r *Repository) lockFunds(ctx context.Context, tx querier, userID string) (funds, error) {
	var f funds
	rows, err := tx.QueryContext(ctx,
		"SELECT entry_id, amount FROM econ_user_balances WHERE user_id = $1 AND created_at >= $2 AND amount > 0 ORDER BY created_at ASC, entry_id ASC"+r.db.forUpdate(),
		userID, r.expiryCutoff(r.now()))
	if err != nil {
		return f, err
	}
	for rows.Next() {
		var c credit
		if err := rows.Scan(&c.id, &c.amount); err != nil {
			rows.Close()
			return f, err
		}
		f.credits = append(f.credits, c)
		f.temp += c.amount
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return f, err
	}

	f.perma, err = r.permaBalance(ctx, tx, userID)
	return f, err
}

// withdraw consumes unexpired credits oldest first, then the permanent balance.
func (r *Repository) withdraw(ctx context.Context, tx querier, userID string, amount int64) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("withdraw amount must not be negative")
	}
	if amount == 0 {
		return true, nil
	}

	funds, err := r.lockFunds(ctx, tx, userID)
	if err != nil {
		return false, err
	}
	if funds.available() < amount {
		return false, nil
	}
	return true, r.consume(ctx, tx, userID, funds, amount)
}

// consume debits amount from locked funds. The caller checks affordability.
func (r *Repository) consume(ctx context.Context, tx querier, userID string, f funds, amount int64) error {
	remaining := amount
	for _, c := range f.credits {
		if remaining == 0 {
			break
		}
		take := min(c.amount, remaining)
		var err error
		if take == c.amount {
			_, err = tx.ExecContext(ctx, "DELETE FROM econ_user_balances WHERE entry_id = $1", c.id)
		} else {
			_, err = tx.ExecContext(ctx, "UPDATE econ_user_balances SET amount = amount - $1 WHERE entry_id = $2", take, c.id)
		}
		if err != nil {
			return err
		}
		remaining -= take
	}

	if remaining > 0 {
		return r.insertEntry(ctx, tx, "econ_user_perma_balances", userID, -remaining, "withdraw")
	}
	return nil
}
