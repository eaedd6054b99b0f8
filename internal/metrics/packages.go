package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const packageDateFormat = "2006-01-02 03:04 PM"

// packageOperations maps trans_item.state to an operation label
var packageOperations = map[int]string{
	1: "Install",
	2: "Update",
	3: "Remove",
	4: "Downgrade",
	5: "Reinstall",
}

// PackageOperation returns the label for a DNF transaction item state
func PackageOperation(state int) string {
	if op, ok := packageOperations[state]; ok {
		return op
	}
	return "Unknown"
}

// PackageTimeline groups the events of one package, oldest first
type PackageTimeline struct {
	Package     string         `json:"package"`
	Events      []PackageEvent `json:"events"`
	TotalEvents int            `json:"total_events"`
	FirstEvent  PackageEvent   `json:"first_event"`
	LastEvent   PackageEvent   `json:"last_event"`
}

// PackageHistory reads the DNF transaction history database read-only
type PackageHistory struct {
	path  string
	limit int

	mu sync.Mutex
	db *sql.DB
}

// NewPackageHistory returns a reader for the database at path. The file is
// not opened until the first query. limit bounds Recent.
func NewPackageHistory(path string, limit int) *PackageHistory {
	return &PackageHistory{path: path, limit: limit}
}

// Path returns the database location
func (h *PackageHistory) Path() string {
	return h.path
}

func (h *PackageHistory) open() (*sql.DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.db != nil {
		return h.db, nil
	}
	if _, err := os.Stat(h.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoPackageDB, h.path)
		}
		return nil, fmt.Errorf("failed to stat package database: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+h.path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open package database: %w", err)
	}
	db.SetMaxOpenConns(1)
	h.db = db
	return db, nil
}

// Close releases the database handle
func (h *PackageHistory) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}

// Recent returns the latest package events, newest first
func (h *PackageHistory) Recent(ctx context.Context) ([]PackageEvent, error) {
	db, err := h.open()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT rpm.name, trans.dt_begin, trans_item.state
		FROM trans
		JOIN trans_item ON trans_item.trans_id = trans.id
		JOIN rpm ON trans_item.item_id = rpm.item_id
		ORDER BY trans.dt_begin DESC, rpm.name
		LIMIT ?`, h.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query package history: %w", err)
	}
	defer rows.Close()

	return scanPackageEvents(rows)
}

// Events returns package events with dt_begin in [start, end]. A zero bound
// is open. Rows are ordered by package name, then time.
func (h *PackageHistory) Events(ctx context.Context, start, end int64) ([]PackageEvent, error) {
	db, err := h.open()
	if err != nil {
		return nil, err
	}

	var where []string
	var args []interface{}
	if start > 0 {
		where = append(where, "trans.dt_begin >= ?")
		args = append(args, start)
	}
	if end > 0 {
		where = append(where, "trans.dt_begin <= ?")
		args = append(args, end)
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	rows, err := db.QueryContext(ctx, `
		SELECT rpm.name, trans.dt_begin, trans_item.state
		FROM trans
		JOIN trans_item ON trans_item.trans_id = trans.id
		JOIN rpm ON trans_item.item_id = rpm.item_id
		`+clause+`
		ORDER BY rpm.name, trans.dt_begin`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query package history: %w", err)
	}
	defer rows.Close()

	return scanPackageEvents(rows)
}

// TimeRange returns the earliest and latest transaction start
func (h *PackageHistory) TimeRange(ctx context.Context) (PackageRange, error) {
	db, err := h.open()
	if err != nil {
		return PackageRange{}, err
	}

	var earliest, latest sql.NullInt64
	err = db.QueryRowContext(ctx, `SELECT MIN(dt_begin), MAX(dt_begin) FROM trans`).Scan(&earliest, &latest)
	if err != nil {
		return PackageRange{}, fmt.Errorf("failed to query package time range: %w", err)
	}
	if !earliest.Valid || !latest.Valid {
		return PackageRange{}, fmt.Errorf("failed to query package time range: %w", ErrNoData)
	}
	return NewPackageRange(earliest.Int64, latest.Int64), nil
}

// NewPackageRange fills the display fields for a span of unix seconds
func NewPackageRange(earliest, latest int64) PackageRange {
	const day = 24 * 60 * 60
	span := latest - earliest
	days := span / day
	if span%day > 0 {
		days++
	}
	return PackageRange{
		Earliest:     earliest,
		Latest:       latest,
		EarliestDate: time.Unix(earliest, 0).Format(packageDateFormat),
		LatestDate:   time.Unix(latest, 0).Format(packageDateFormat),
		RangeDays:    days,
	}
}

func scanPackageEvents(rows *sql.Rows) ([]PackageEvent, error) {
	events := make([]PackageEvent, 0)
	for rows.Next() {
		var (
			name  string
			begin int64
			state int
		)
		if err := rows.Scan(&name, &begin, &state); err != nil {
			return nil, fmt.Errorf("failed to scan package row: %w", err)
		}
		events = append(events, PackageEvent{
			Name:      name,
			Operation: PackageOperation(state),
			Timestamp: begin,
			HumanDate: time.Unix(begin, 0).Format(packageDateFormat),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read package rows: %w", err)
	}
	return events, nil
}

// GroupPackageEvents builds one timeline per package, most recently touched first
func GroupPackageEvents(events []PackageEvent) []PackageTimeline {
	byName := make(map[string][]PackageEvent)
	var order []string
	for _, e := range events {
		if _, ok := byName[e.Name]; !ok {
			order = append(order, e.Name)
		}
		byName[e.Name] = append(byName[e.Name], e)
	}

	timelines := make([]PackageTimeline, 0, len(order))
	for _, name := range order {
		evs := byName[name]
		sort.SliceStable(evs, func(i, j int) bool {
			return evs[i].Timestamp < evs[j].Timestamp
		})
		timelines = append(timelines, PackageTimeline{
			Package:     name,
			Events:      evs,
			TotalEvents: len(evs),
			FirstEvent:  evs[0],
			LastEvent:   evs[len(evs)-1],
		})
	}

	sort.SliceStable(timelines, func(i, j int) bool {
		return timelines[i].LastEvent.Timestamp > timelines[j].LastEvent.Timestamp
	})
	return timelines
}
