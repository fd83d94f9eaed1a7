package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func newTestRepository(t *testing.T) (*Repository, *testClock) {
	t.Helper()
	db, err := New(DriverSQLite, filepath.Join(t.TempDir(), "econ.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := &testClock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	repo := NewRepository(db, LedgerPolicy{MaxBalanceAge: 30 * 24 * time.Hour, AtRiskWindow: 7 * 24 * time.Hour})
	repo.now = clock.now
	return repo, clock
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New("mysql", "dsn")
	assert.Error(t, err)
}

func TestNew_CreatesTablesIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "econ.db")

	db, err := New(DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = New(DriverSQLite, path)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, DriverSQLite, db.Driver())
	assert.NotNil(t, db.GetConnection())
}
