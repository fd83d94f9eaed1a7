// Package timezone resolves each user's local calendar.
package timezone

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coocood/freecache"
)

// ErrUnknownTimezone is returned for names missing from the tz database.
var ErrUnknownTimezone = errors.New("unknown timezone")

// Store persists user timezone names.
type Store interface {
	UserTimezone(ctx context.Context, userID string) (string, bool, error)
	SetUserTimezone(ctx context.Context, userID, timezone string) error
}

// Service answers "what time is it for this user".
type Service struct {
	store       Store
	defaultName string

	cache *freecache.Cache
	ttl   int

	locations sync.Map // name -> *time.Location
}

// NewService creates a timezone service. cacheMB <= 0 disables the name cache.
func NewService(store Store, defaultName string, cacheMB int, ttl time.Duration) (*Service, error) {
	s := &Service{store: store, defaultName: defaultName}
	if _, err := s.load(defaultName); err != nil {
		return nil, fmt.Errorf("default timezone: %w", err)
	}
	if cacheMB > 0 {
		s.cache = freecache.NewCache(cacheMB * 1024 * 1024)
		s.ttl = max(int(ttl.Seconds()), 1)
	}
	return s, nil
}

func (s *Service) load(name string) (*time.Location, error) {
	if loc, ok := s.locations.Load(name); ok {
		return loc.(*time.Location), nil
	}
	if strings.TrimSpace(name) == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}
	s.locations.Store(name, loc)
	return loc, nil
}

// Name returns the user's timezone name, or the default when unset.
func (s *Service) Name(ctx context.Context, userID string) (string, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get([]byte(userID)); err == nil {
			return string(cached), nil
		}
	}

	name, ok, err := s.store.UserTimezone(ctx, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		name = s.defaultName
	}

	if s.cache != nil {
		_ = s.cache.Set([]byte(userID), []byte(name), s.ttl)
	}
	return name, nil
}

// Location returns the user's location. A stored name that no longer
// resolves falls back to the default.
func (s *Service) Location(ctx context.Context, userID string) (*time.Location, error) {
	name, err := s.Name(ctx, userID)
	if err != nil {
		return nil, err
	}
	loc, err := s.load(name)
	if err != nil {
		return s.load(s.defaultName)
	}
	return loc, nil
}

// Set validates and stores the user's timezone, returning its canonical name.
func (s *Service) Set(ctx context.Context, userID, name string) (string, error) {
	loc, err := s.load(strings.TrimSpace(name))
	if err != nil {
		return "", err
	}
	canonical := loc.String()
	if err := s.store.SetUserTimezone(ctx, userID, canonical); err != nil {
		return "", err
	}
	if s.cache != nil {
		s.cache.Del([]byte(userID))
	}
	return canonical, nil
}

// LocalTime converts t to the user's local time.
func (s *Service) LocalTime(ctx context.Context, userID string, t time.Time) (time.Time, error) {
	loc, err := s.Location(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

// Today returns local midnight of the user's current day.
func (s *Service) Today(ctx context.Context, userID string, now time.Time) (time.Time, error) {
	loc, err := s.Location(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}
	return StartOfDay(now, loc), nil
}

// StartOfDay is midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// NextMidnight is the first midnight in loc strictly after t's day began.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	start := StartOfDay(t, loc)
	return time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, loc)
}
