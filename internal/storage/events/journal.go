// Package events persists the analytics feed to a relational journal.
// The default backend is an embedded sqlite file; a postgres DSN
// selects the server backend. Writes are best-effort: the journal is a
// Sink, and a Sink must never fail the operation that emitted the
// event, so failures are logged and counted instead of propagated.
package events

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/helixdex/godexd/internal/core/events"
)

// Config selects and parameterizes the journal backend.
type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	// DSN is the sqlite file path or the postgres connection string.
	DSN string
}

const schema = `
CREATE TABLE IF NOT EXISTS dex_events (
	seq     BIGINT PRIMARY KEY,
	height  BIGINT NOT NULL,
	at      BIGINT NOT NULL,
	kind    TEXT   NOT NULL,
	fields  TEXT   NOT NULL
);
CREATE INDEX IF NOT EXISTS dex_events_kind ON dex_events (kind, seq);
`

// Journal is a persistent events.Sink over database/sql.
type Journal struct {
	db      *sql.DB
	driver  string
	log     zerolog.Logger
	dropped atomic.Uint64
}

// rebind rewrites ? placeholders to the $n form postgres requires.
// sqlite takes ? as-is.
func (j *Journal) rebind(query string) string {
	if j.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Open connects to the configured backend and ensures the schema.
func Open(cfg Config, log zerolog.Logger) (*Journal, error) {
	switch cfg.Driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unknown event journal driver %q", cfg.Driver)
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open event journal (%s): %w", cfg.Driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping event journal (%s): %w", cfg.Driver, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create event journal schema: %w", err)
	}
	log.Info().Str("driver", cfg.Driver).Msg("event journal open")
	return &Journal{db: db, driver: cfg.Driver, log: log}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Record implements events.Sink. Failures are logged, never returned.
func (j *Journal) Record(ev events.Event) {
	fields, err := json.Marshal(ev.Fields)
	if err != nil {
		j.drop(ev, err)
		return
	}
	_, err = j.db.Exec(
		j.rebind(`INSERT INTO dex_events (seq, height, at, kind, fields) VALUES (?, ?, ?, ?, ?)`),
		int64(ev.Seq), int64(ev.Height), int64(ev.At), ev.Kind, string(fields),
	)
	if err != nil {
		j.drop(ev, err)
	}
}

func (j *Journal) drop(ev events.Event, err error) {
	j.dropped.Add(1)
	j.log.Error().Err(err).Uint64("seq", ev.Seq).Str("kind", ev.Kind).Msg("event journal write failed")
}

// Dropped returns how many events failed to persist.
func (j *Journal) Dropped() uint64 { return j.dropped.Load() }

// Recent returns up to limit events with the highest sequence numbers,
// oldest first.
func (j *Journal) Recent(limit int) ([]events.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.Query(
		j.rebind(`SELECT seq, height, at, kind, fields FROM dex_events ORDER BY seq DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query event journal: %w", err)
	}
	defer rows.Close()
	out, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	// Reverse into ascending order.
	for i, k := 0, len(out)-1; i < k; i, k = i+1, k-1 {
		out[i], out[k] = out[k], out[i]
	}
	return out, nil
}

// ByKind returns up to limit events of one kind, ascending.
func (j *Journal) ByKind(kind string, limit int) ([]events.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.Query(
		j.rebind(`SELECT seq, height, at, kind, fields FROM dex_events WHERE kind = ? ORDER BY seq ASC LIMIT ?`),
		kind, limit)
	if err != nil {
		return nil, fmt.Errorf("query event journal: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]events.Event, error) {
	var out []events.Event
	for rows.Next() {
		var (
			seq, height, at int64
			kind, fields    string
		)
		if err := rows.Scan(&seq, &height, &at, &kind, &fields); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		ev := events.Event{Seq: uint64(seq), Height: uint64(height), At: uint64(at), Kind: kind}
		if fields != "" && fields != "null" {
			if err := json.Unmarshal([]byte(fields), &ev.Fields); err != nil {
				return nil, fmt.Errorf("decode event %d fields: %w", seq, err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
