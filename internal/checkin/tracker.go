// Package checkin implements the once-per-local-day check-in reward.
package checkin

import (
	"context"
	"fmt"
	"time"

	"starbucks/internal/metrics"
	"starbucks/internal/models"
	"starbucks/internal/timezone"
)

// Store persists check-in records. ClaimCheckin must advance the record and
// deposit the reward atomically, and only if the stored instant is before
// dayStart.
type Store interface {
	LastCheckin(ctx context.Context, userID string) (models.CheckinRecord, bool, error)
	ClaimCheckin(ctx context.Context, userID string, now, dayStart time.Time, amount int64, reason string) (bool, error)
	ClearCheckin(ctx context.Context, userID string) (bool, error)
}

// Zones resolves a user's timezone.
type Zones interface {
	Location(ctx context.Context, userID string) (*time.Location, error)
}

// ValueSource looks up reward values by action name.
type ValueSource interface {
	Value(action string) (int64, bool, error)
}

// Result describes one check-in attempt.
type Result struct {
	Claimed bool
	Tier    Tier
	Amount  int64
	// NextIn is the time until the user may check in again.
	NextIn time.Duration
}

// Tracker decides check-in eligibility and performs claims.
type Tracker struct {
	store   Store
	zones   Zones
	values  ValueSource
	tiers   *TierTable
	metrics metrics.Recorder
}

// NewTracker creates a tracker. A nil recorder disables metrics.
func NewTracker(store Store, zones Zones, values ValueSource, tiers *TierTable, recorder metrics.Recorder) *Tracker {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Tracker{store: store, zones: zones, values: values, tiers: tiers, metrics: recorder}
}

// Eligible reports whether a user whose last check-in was at last (if any)
// may check in at now, comparing calendar dates in loc.
func Eligible(last time.Time, hasLast bool, now time.Time, loc *time.Location) bool {
	if !hasLast {
		return true
	}
	return timezone.StartOfDay(last, loc).Before(timezone.StartOfDay(now, loc))
}

// SecondsUntilNext is zero when eligible, otherwise the whole seconds from
// now to the next local midnight.
func SecondsUntilNext(last time.Time, hasLast bool, now time.Time, loc *time.Location) int64 {
	if Eligible(last, hasLast, now, loc) {
		return 0
	}
	return max(timezone.NextMidnight(now, loc).Unix()-now.Unix(), 0)
}

func (t *Tracker) state(ctx context.Context, userID string) (models.CheckinRecord, bool, *time.Location, error) {
	rec, ok, err := t.store.LastCheckin(ctx, userID)
	if err != nil {
		return rec, false, nil, err
	}
	loc, err := t.zones.Location(ctx, userID)
	if err != nil {
		return rec, false, nil, err
	}
	return rec, ok, loc, nil
}

// ComputeEligibility reports whether the user can check in at now.
func (t *Tracker) ComputeEligibility(ctx context.Context, userID string, now time.Time) (bool, error) {
	rec, ok, loc, err := t.state(ctx, userID)
	if err != nil {
		return false, err
	}
	return Eligible(rec.LastCheckin, ok, now, loc), nil
}

// SecondsUntilNextEligible is zero when the user can check in now.
func (t *Tracker) SecondsUntilNextEligible(ctx context.Context, userID string, now time.Time) (int64, error) {
	rec, ok, loc, err := t.state(ctx, userID)
	if err != nil {
		return 0, err
	}
	return SecondsUntilNext(rec.LastCheckin, ok, now, loc), nil
}

// RewardFor sizes the check-in reward for a member with the given roles.
// A tier without a configured value is a configuration error.
func (t *Tracker) RewardFor(roles []string) (Tier, int64, error) {
	tier := t.tiers.Resolve(roles)
	action, err := tier.Action()
	if err != nil {
		return tier, 0, err
	}
	amount, ok, err := t.values.Value(action)
	if err != nil {
		return tier, 0, fmt.Errorf("failed to read %s: %w", action, err)
	}
	if !ok {
		return tier, 0, fmt.Errorf("%w: %s", ErrUnmappedTier, action)
	}
	return tier, amount, nil
}

// ValidatePricing confirms every tier has a reward value.
func (t *Tracker) ValidatePricing() error {
	for _, tier := range AllTiers {
		action, err := tier.Action()
		if err != nil {
			return err
		}
		if _, ok, err := t.values.Value(action); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("%w: %s", ErrUnmappedTier, action)
		}
	}
	return nil
}

// Checkin claims today's reward if the user has not checked in yet today in
// their local timezone. Concurrent calls for one user award at most once.
func (t *Tracker) Checkin(ctx context.Context, userID string, roles []string, now time.Time) (Result, error) {
	tier, amount, err := t.RewardFor(roles)
	if err != nil {
		t.metrics.IncCheckin(metrics.CheckinConfigError)
		return Result{Tier: tier}, err
	}
	action, _ := tier.Action()

	loc, err := t.zones.Location(ctx, userID)
	if err != nil {
		t.metrics.IncCheckin(metrics.CheckinError)
		return Result{Tier: tier}, err
	}

	claimed, err := t.store.ClaimCheckin(ctx, userID, now, timezone.StartOfDay(now, loc), amount, action)
	if err != nil {
		t.metrics.IncCheckin(metrics.CheckinError)
		return Result{Tier: tier}, err
	}

	result := Result{
		Claimed: claimed,
		Tier:    tier,
		Amount:  amount,
		NextIn:  time.Duration(SecondsUntilNext(now, true, now, loc)) * time.Second,
	}
	if claimed {
		t.metrics.IncCheckin(metrics.CheckinClaimed)
	} else {
		t.metrics.IncCheckin(metrics.CheckinTooEarly)
	}
	return result, nil
}

// LastCheckin returns the user's last check-in instant, if any.
func (t *Tracker) LastCheckin(ctx context.Context, userID string) (time.Time, bool, error) {
	rec, ok, err := t.store.LastCheckin(ctx, userID)
	return rec.LastCheckin, ok, err
}

// ClearCheckin removes the user's check-in record.
func (t *Tracker) ClearCheckin(ctx context.Context, userID string) (bool, error) {
	return t.store.ClearCheckin(ctx, userID)
}
