package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/atlasbrief/atlasbrief/internal/report"
)

// Index keeps a queryable record of every classified event across days. It
// feeds the trailing timeline of new reports and on-demand re-renders; the
// cloud store remains the durable artifact archive.
type Index struct {
	db *sql.DB
	mu sync.Mutex
}

func NewIndex(dbPath string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	idx := &Index{db: db}
	if err := idx.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (i *Index) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := i.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (i *Index) initSchema() error {
	_, err := i.db.Exec(`CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		day TEXT NOT NULL,
		summary TEXT NOT NULL,
		continent TEXT NOT NULL DEFAULT '',
		event_type TEXT NOT NULL DEFAULT '',
		importance INTEGER NOT NULL,
		deaths INTEGER,
		declarations TEXT NOT NULL DEFAULT '',
		links TEXT NOT NULL DEFAULT '[]',
		analysis TEXT NOT NULL DEFAULT '',
		ts TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	_, err = i.db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_day ON events(day)`)
	if err != nil {
		return fmt.Errorf("init schema index: %w", err)
	}
	return nil
}

func (i *Index) Close() error {
	if i.db == nil {
		return nil
	}
	return i.db.Close()
}

// InsertEvent records one classified event under its logical day.
func (i *Index) InsertEvent(day string, e report.Event) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	links, err := json.Marshal(e.Links)
	if err != nil {
		return fmt.Errorf("marshal links: %w", err)
	}

	var deaths any
	if e.Deaths != nil {
		deaths = *e.Deaths
	}

	_, err = i.db.Exec(
		`INSERT INTO events (day, summary, continent, event_type, importance, deaths, declarations, links, analysis, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		day, e.Summary, e.Continent, e.Type, e.Importance, deaths,
		e.Declarations, string(links), e.Analysis, e.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Timeline returns up to n events from days strictly before day, most
// recent last, for the trailing continuity window of a new report.
func (i *Index) Timeline(day string, n int) ([]report.TimelineEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	rows, err := i.db.Query(
		`SELECT summary, ts FROM events WHERE day < ? ORDER BY ts DESC, id DESC LIMIT ?`,
		day, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	var entries []report.TimelineEntry
	for rows.Next() {
		var summary, ts string
		if err := rows.Scan(&summary, &ts); err != nil {
			return nil, fmt.Errorf("scan timeline row: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parse timeline timestamp %q: %w", ts, err)
		}
		entries = append(entries, report.TimelineEntry{Timestamp: parsed, Summary: summary})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline rows: %w", err)
	}

	// Reverse into chronological order.
	for l, r := 0, len(entries)-1; l < r; l, r = l+1, r-1 {
		entries[l], entries[r] = entries[r], entries[l]
	}
	return entries, nil
}

// EventsForDay rebuilds a day's events in submission order for on-demand
// rendering.
func (i *Index) EventsForDay(day string) ([]report.Event, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	rows, err := i.db.Query(
		`SELECT summary, continent, event_type, importance, deaths, declarations, links, analysis, ts
		 FROM events WHERE day = ? ORDER BY id`,
		day,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []report.Event
	for rows.Next() {
		var (
			e         report.Event
			deaths    sql.NullInt64
			linksJSON string
			ts        string
		)
		if err := rows.Scan(&e.Summary, &e.Continent, &e.Type, &e.Importance, &deaths, &e.Declarations, &linksJSON, &e.Analysis, &ts); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		if deaths.Valid {
			d := int(deaths.Int64)
			e.Deaths = &d
		}
		if err := json.Unmarshal([]byte(linksJSON), &e.Links); err != nil {
			return nil, fmt.Errorf("parse links %q: %w", linksJSON, err)
		}
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp %q: %w", ts, err)
		}
		e.Timestamp = parsed
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}

// DayCounts reports events per day, newest first, for status output.
func (i *Index) DayCounts(limit int) (map[string]int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	rows, err := i.db.Query(
		`SELECT day, COUNT(*) FROM events GROUP BY day ORDER BY day DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query day counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var day string
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, fmt.Errorf("scan day count: %w", err)
		}
		counts[day] = n
	}
	return counts, rows.Err()
}
