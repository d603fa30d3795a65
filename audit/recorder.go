package audit

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite"

	"tradesafe/core/events"
	"tradesafe/core/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    event_type TEXT NOT NULL,
    attributes TEXT NOT NULL,
    recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
`

// ErrPathRequired is returned when the backing store path is missing.
var ErrPathRequired = errors.New("audit store path must be configured")

// Recorder persists every emitted engine event as an append-only audit row.
// It satisfies events.Emitter so it can sit directly on the engines or inside
// an events.Fanout alongside other subscribers.
type Recorder struct {
	db    *sql.DB
	nowFn func() time.Time
}

// carrier is implemented by engine event wrappers that expose their canonical
// payload.
type carrier interface {
	Event() *types.Event
}

// Open initialises the backing store using a sqlite-compatible DSN.
// "file::memory:?cache=shared" is accepted for tests.
func Open(path string) (*Recorder, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Recorder{db: db, nowFn: time.Now}, nil
}

// Close releases database resources.
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SetNowFunc overrides the timestamp source, primarily used in tests.
func (r *Recorder) SetNowFunc(now func() time.Time) {
	if r == nil {
		return
	}
	if now == nil {
		r.nowFn = time.Now
		return
	}
	r.nowFn = now
}

// Emit implements events.Emitter. Persistence failures are swallowed: the
// audit trail is an observer and must never abort the state transition that
// produced the event.
func (r *Recorder) Emit(evt events.Event) {
	if r == nil || r.db == nil || evt == nil {
		return
	}
	attrs := map[string]string{}
	if c, ok := evt.(carrier); ok {
		if payload := c.Event(); payload != nil && payload.Attributes != nil {
			attrs = payload.Attributes
		}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return
	}
	_, _ = r.db.Exec(`
        INSERT INTO events(event_type, attributes, recorded_at)
        VALUES(?, ?, ?)
    `, evt.EventType(), string(encoded), r.nowFn().UTC().Unix())
}

// Entry is one persisted audit row.
type Entry struct {
	ID         int64
	Type       string
	Attributes map[string]string
	RecordedAt int64
}

// ByType returns up to limit most recent events of the given type.
func (r *Recorder) ByType(eventType string, limit int) ([]Entry, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("audit store not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(`
        SELECT id, event_type, attributes, recorded_at FROM events
        WHERE event_type = ? ORDER BY id DESC LIMIT ?
    `, eventType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var entry Entry
		var attrs string
		if err := rows.Scan(&entry.ID, &entry.Type, &attrs, &entry.RecordedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(attrs), &entry.Attributes); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
