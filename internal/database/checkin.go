package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"starbucks/internal/models"
)

// LastCheckin gets the user's last check-in instant, if any
func (r *Repository) LastCheckin(ctx context.Context, userID string) (models.CheckinRecord, bool, error) {
	var ts int64
	err := r.conn().QueryRowContext(ctx,
		"SELECT checkin_timestamp FROM econ_user_checkin_time WHERE user_id = $1",
		userID).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CheckinRecord{}, false, nil
	}
	if err != nil {
		return models.CheckinRecord{}, false, fmt.Errorf("failed to get last checkin: %w", err)
	}
	return models.CheckinRecord{UserID: userID, LastCheckin: unixTime(ts)}, true, nil
}

// ClaimCheckin records a check-in at now and deposits amount, but only if the
// stored check-in is older than dayStart. Both writes share one transaction,
// so concurrent claims for the same user award at most once per day.
func (r *Repository) ClaimCheckin(ctx context.Context, userID string, now, dayStart time.Time, amount int64, reason string) (bool, error) {
	var claimed bool
	err := r.inTx(ctx, func(tx querier) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO econ_user_checkin_time (user_id, checkin_timestamp)
			VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET checkin_timestamp = excluded.checkin_timestamp
			WHERE econ_user_checkin_time.checkin_timestamp < $3`,
			userID, now.Unix(), dayStart.Unix())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		claimed = true
		if amount <= 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO econ_user_balances (user_id, amount, reason, created_at) VALUES ($1, $2, $3, $4)`,
			userID, amount, reason, now.Unix())
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to claim checkin: %w", err)
	}
	return claimed, nil
}

// ClearCheckin deletes the user's check-in record
func (r *Repository) ClearCheckin(ctx context.Context, userID string) (bool, error) {
	res, err := r.conn().ExecContext(ctx, "DELETE FROM econ_user_checkin_time WHERE user_id = $1", userID)
	if err != nil {
		return false, fmt.Errorf("failed to clear checkin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to clear checkin: %w", err)
	}
	return n > 0, nil
}

func unixTime(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}
