package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UserTimezone gets the user's configured timezone name, if any
func (r *Repository) UserTimezone(ctx context.Context, userID string) (string, bool, error) {
	var tz string
	err := r.conn().QueryRowContext(ctx,
		"SELECT timezone FROM user_timezones WHERE user_id = $1", userID).Scan(&tz)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get user timezone: %w", err)
	}
	return tz, true, nil
}

// SetUserTimezone stores the user's timezone name
func (r *Repository) SetUserTimezone(ctx context.Context, userID, timezone string) error {
	_, err := r.conn().ExecContext(ctx, `
		INSERT INTO user_timezones (user_id, timezone)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET timezone = excluded.timezone`,
		userID, timezone)
	if err != nil {
		return fmt.Errorf("failed to set user timezone: %w", err)
	}
	return nil
}
