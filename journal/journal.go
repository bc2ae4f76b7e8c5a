// Package journal records dispatched events in SQLite for post-hoc
// debugging. The journal is write-behind observability only: it is never
// read back for delivery, and losing an entry loses nothing but a
// diagnostic trace.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	workbench "github.com/workbench-labs/workbench"
	"github.com/workbench-labs/workbench/bus"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL,
	kind TEXT NOT NULL,
	at TEXT NOT NULL,
	payload BLOB
);

CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);`

// Config configures a Journal.
type Config struct {
	// DSN is the SQLite connection string.
	DSN string

	// RetentionAge deletes entries older than this duration
	// (0 = no age pruning).
	RetentionAge time.Duration

	// RetentionCount keeps at most this many entries
	// (0 = no count pruning).
	RetentionCount int

	// PruneInterval is how often pruning runs (default 1 hour).
	PruneInterval time.Duration

	// Logger receives record and prune diagnostics. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Entry is one journaled event.
type Entry struct {
	Seq     uint64          `json:"seq"`
	ID      string          `json:"id"`
	Kind    workbench.Kind  `json:"kind"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Journal persists event envelopes to a SQLite database. WAL mode is
// enabled so readers never block the recording path. A background pruner
// enforces retention.
type Journal struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger
	stop   chan struct{}
	done   chan struct{}
}

// Open opens (or creates) a journal database.
func Open(cfg Config) (*Journal, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("journal: DSN is required")
	}
	if cfg.PruneInterval == 0 {
		cfg.PruneInterval = time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}

	// WAL mode keeps readers off the write path.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: set WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}

	j := &Journal{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go j.pruneLoop()
	return j, nil
}

// Record journals one event.
func (j *Journal) Record(ctx context.Context, event workbench.Event) error {
	env, err := workbench.Wrap(event)
	if err != nil {
		return err
	}
	_, err = j.db.ExecContext(ctx,
		"INSERT INTO events (id, kind, at, payload) VALUES (?, ?, ?, ?)",
		env.ID,
		env.Kind.String(),
		env.Time.UTC().Format(time.RFC3339Nano),
		[]byte(env.Payload),
	)
	if err != nil {
		return fmt.Errorf("journal: insert event: %w", err)
	}
	return nil
}

// Handler returns a bus handler that journals every event it sees. Record
// failures are logged and swallowed so a broken journal cannot disturb
// dispatch.
func (j *Journal) Handler() bus.Handler {
	return func(event workbench.Event) {
		if err := j.Record(context.Background(), event); err != nil {
			j.logger.Error("failed to journal event",
				"kind", event.EventKind().String(),
				"error", err,
			)
		}
	}
}

// Recent returns the most recent entries, newest first, up to limit.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx,
		"SELECT seq, id, kind, at, payload FROM events ORDER BY seq DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: query recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			kind    string
			at      string
			payload []byte
		)
		if err := rows.Scan(&entry.Seq, &entry.ID, &kind, &at, &payload); err != nil {
			return nil, fmt.Errorf("journal: scan entry: %w", err)
		}
		entry.Kind = workbench.Kind(kind)
		entry.Payload = payload
		if entry.Time, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("journal: parse entry time: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Close stops the pruner and closes the database.
func (j *Journal) Close() error {
	close(j.stop)
	<-j.done
	return j.db.Close()
}

func (j *Journal) pruneLoop() {
	defer close(j.done)

	ticker := time.NewTicker(j.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-ticker.C:
			if err := j.prune(); err != nil {
				j.logger.Error("journal prune failed", "error", err)
			}
		}
	}
}

func (j *Journal) prune() error {
	if j.cfg.RetentionAge > 0 {
		cutoff := time.Now().Add(-j.cfg.RetentionAge).UTC().Format(time.RFC3339Nano)
		if _, err := j.db.Exec("DELETE FROM events WHERE at < ?", cutoff); err != nil {
			return err
		}
	}
	if j.cfg.RetentionCount > 0 {
		_, err := j.db.Exec(
			"DELETE FROM events WHERE seq NOT IN (SELECT seq FROM events ORDER BY seq DESC LIMIT ?)",
			j.cfg.RetentionCount,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
