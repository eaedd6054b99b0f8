package metrics

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedHistory creates a minimal DNF history schema with a few transactions
func seedHistory(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.sqlite")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE trans (id INTEGER PRIMARY KEY, dt_begin INTEGER NOT NULL)`,
		`CREATE TABLE rpm (item_id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE trans_item (id INTEGER PRIMARY KEY, trans_id INTEGER, item_id INTEGER, state INTEGER)`,
		`INSERT INTO trans (id, dt_begin) VALUES (1, 1700000000), (2, 1700100000), (3, 1700200000)`,
		`INSERT INTO rpm (item_id, name) VALUES (10, 'bash'), (11, 'kernel'), (12, 'vim')`,
		`INSERT INTO trans_item (trans_id, item_id, state) VALUES
			(1, 10, 1), (1, 11, 1),
			(2, 11, 2),
			(3, 12, 1), (3, 10, 9)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	return path
}

func TestPackageOperation(t *testing.T) {
	assert.Equal(t, "Install", PackageOperation(1))
	assert.Equal(t, "Reinstall", PackageOperation(5))
	assert.Equal(t, "Unknown", PackageOperation(42))
}

func TestPackageHistory_Recent(t *testing.T) {
	h := NewPackageHistory(seedHistory(t), 3)
	defer h.Close()

	events, err := h.Recent(context.Background())

	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(1700200000), events[0].Timestamp)
	assert.Equal(t, "bash", events[0].Name)
	assert.Equal(t, "Unknown", events[0].Operation)
	assert.Equal(t, "vim", events[1].Name)
	assert.Equal(t, "kernel", events[2].Name)
	assert.Equal(t, "Update", events[2].Operation)
	assert.NotEmpty(t, events[2].HumanDate)
}

func TestPackageHistory_EventsBounded(t *testing.T) {
	h := NewPackageHistory(seedHistory(t), 10)
	defer h.Close()

	events, err := h.Events(context.Background(), 1700050000, 1700150000)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "kernel", events[0].Name)
}

func TestPackageHistory_TimeRange(t *testing.T) {
	h := NewPackageHistory(seedHistory(t), 10)
	defer h.Close()

	r, err := h.TimeRange(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), r.Earliest)
	assert.Equal(t, int64(1700200000), r.Latest)
	assert.Equal(t, int64(3), r.RangeDays)
	assert.Equal(t, time.Unix(1700000000, 0).Format(packageDateFormat), r.EarliestDate)
	assert.Equal(t, time.Unix(1700200000, 0).Format(packageDateFormat), r.LatestDate)
}

func TestNewPackageRange_RangeDays(t *testing.T) {
	const day = 24 * 60 * 60

	assert.Equal(t, int64(0), NewPackageRange(1000, 1000).RangeDays)
	assert.Equal(t, int64(1), NewPackageRange(0, day).RangeDays)
	assert.Equal(t, int64(2), NewPackageRange(0, day+1).RangeDays)
}

func TestPackageHistory_MissingDatabase(t *testing.T) {
	h := NewPackageHistory(filepath.Join(t.TempDir(), "nope.sqlite"), 10)

	_, err := h.Recent(context.Background())

	assert.ErrorIs(t, err, ErrNoPackageDB)
}

func TestGroupPackageEvents(t *testing.T) {
	events := []PackageEvent{
		{Name: "bash", Timestamp: 300, Operation: "Unknown"},
		{Name: "bash", Timestamp: 100, Operation: "Install"},
		{Name: "kernel", Timestamp: 200, Operation: "Update"},
		{Name: "vim", Timestamp: 400, Operation: "Install"},
	}

	timelines := GroupPackageEvents(events)

	require.Len(t, timelines, 3)
	assert.Equal(t, "vim", timelines[0].Package)
	assert.Equal(t, "bash", timelines[1].Package)
	assert.Equal(t, 2, timelines[1].TotalEvents)
	assert.Equal(t, int64(100), timelines[1].FirstEvent.Timestamp)
	assert.Equal(t, int64(300), timelines[1].LastEvent.Timestamp)
	assert.Equal(t, "kernel", timelines[2].Package)
}
