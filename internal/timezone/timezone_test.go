package timezone

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu    sync.Mutex
	zones map[string]string
	reads int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{zones: map[string]string{}}
}

func (m *memoryStore) UserTimezone(_ context.Context, userID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	tz, ok := m.zones[userID]
	return tz, ok, nil
}

func (m *memoryStore) SetUserTimezone(_ context.Context, userID, timezone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones[userID] = timezone
	return nil
}

func TestNewService_BadDefault(t *testing.T) {
	_, err := NewService(newMemoryStore(), "Mars/Olympus", 0, time.Minute)
	assert.ErrorIs(t, err, ErrUnknownTimezone)
}

func TestService_DefaultAndSet(t *testing.T) {
	store := newMemoryStore()
	svc, err := NewService(store, "America/New_York", 1, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	name, err := svc.Name(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", name)

	canonical, err := svc.Set(ctx, "u1", " Asia/Tokyo ")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", canonical)

	loc, err := svc.Location(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestService_SetUnknown(t *testing.T) {
	svc, err := NewService(newMemoryStore(), "UTC", 0, time.Minute)
	require.NoError(t, err)

	_, err = svc.Set(context.Background(), "u1", "Nowhere/Land")
	assert.True(t, errors.Is(err, ErrUnknownTimezone))

	_, err = svc.Set(context.Background(), "u1", "")
	assert.True(t, errors.Is(err, ErrUnknownTimezone))
}

func TestService_CachesLookups(t *testing.T) {
	store := newMemoryStore()
	svc, err := NewService(store, "UTC", 1, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Name(ctx, "u1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.reads)
}

func TestService_StaleStoredNameFallsBack(t *testing.T) {
	store := newMemoryStore()
	store.zones["u1"] = "Old/Zone"
	svc, err := NewService(store, "Europe/Paris", 0, time.Minute)
	require.NoError(t, err)

	loc, err := svc.Location(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())
}

func TestService_TodayAndLocalTime(t *testing.T) {
	store := newMemoryStore()
	store.zones["u1"] = "Asia/Tokyo"
	svc, err := NewService(store, "UTC", 0, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC) // 05:00 on the 11th in Tokyo
	today, err := svc.Today(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, 11, today.Day())
	assert.Equal(t, 0, today.Hour())

	local, err := svc.LocalTime(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, 5, local.Hour())
}

func TestNextMidnight_DST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// spring forward: March 10 2024 has 23 hours
	noon := time.Date(2024, 3, 10, 12, 0, 0, 0, loc)
	next := NextMidnight(noon, loc)

	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, loc), next)
	assert.Equal(t, 23*time.Hour, next.Sub(StartOfDay(noon, loc)))
}
