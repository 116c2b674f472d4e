package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Journal is an optional SQLite-backed append-only record of entity state
// versions: one row per version with the five attributes of the data model.
//
// The journal is written through by the Store; nothing in the core reads it
// back during a run. It exists so a finished run leaves an inspectable
// on-disk history. The runtime lock field (owner_session) is not persisted:
// it changes in place between version boundaries, so rows would go stale.
type Journal struct {
	db *sql.DB
}

const journalSchema = `
CREATE TABLE IF NOT EXISTS entity_versions (
	seq         INTEGER PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	state       TEXT NOT NULL,
	valid_from  TEXT NOT NULL,
	valid_to    TEXT
);
CREATE INDEX IF NOT EXISTS idx_entity_versions_key
	ON entity_versions(entity_type, entity_id, valid_from);
`

// OpenJournal creates or opens a journal database at the given path.
// Use ":memory:" for tests.
//
// The database is configured with WAL mode and a busy timeout, and a single
// connection to avoid SQLITE_BUSY on the write path.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append writes one version row. valid_to is NULL for open versions.
func (j *Journal) Append(seq int64, v *Version) error {
	state, err := marshalState(v.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	var validTo any
	if v.ValidTo != nil {
		validTo = formatTime(*v.ValidTo)
	}

	_, err = j.db.Exec(`
		INSERT INTO entity_versions (seq, entity_type, entity_id, state, valid_from, valid_to)
		VALUES (?, ?, ?, ?, ?, ?)
	`, seq, v.EntityType, v.EntityID, state, formatTime(v.ValidFrom), validTo)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// CloseVersion records the valid_to of a version that was open when
// appended. Matched by (entity_type, entity_id, valid_from).
func (j *Journal) CloseVersion(v *Version) error {
	if v.ValidTo == nil {
		return fmt.Errorf("close version: version is still open")
	}
	_, err := j.db.Exec(`
		UPDATE entity_versions
		SET valid_to = ?
		WHERE entity_type = ? AND entity_id = ? AND valid_from = ? AND valid_to IS NULL
	`, formatTime(*v.ValidTo), v.EntityType, v.EntityID, formatTime(v.ValidFrom))
	if err != nil {
		return fmt.Errorf("close version: %w", err)
	}
	return nil
}

// JournalRow is one persisted version row, state kept as JSON text.
type JournalRow struct {
	Seq        int64
	EntityType string
	EntityID   string
	StateJSON  string
	ValidFrom  string
	ValidTo    sql.NullString
}

// ReadVersions returns all rows for an entity ordered by seq.
func (j *Journal) ReadVersions(typ, id string) ([]JournalRow, error) {
	rows, err := j.db.Query(`
		SELECT seq, entity_type, entity_id, state, valid_from, valid_to
		FROM entity_versions
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY seq ASC
	`, typ, id)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var out []JournalRow
	for rows.Next() {
		var r JournalRow
		if err := rows.Scan(&r.Seq, &r.EntityType, &r.EntityID, &r.StateJSON, &r.ValidFrom, &r.ValidTo); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return out, nil
}

// marshalState serializes a snapshot as JSON text. Map keys sort
// alphabetically under encoding/json, which keeps rows byte-stable across
// runs with the same history. Timestamps are stored as RFC 3339 strings.
func marshalState(state map[string]any) (string, error) {
	normalized := make(map[string]any, len(state))
	for k, v := range state {
		if k == OwnerField {
			continue
		}
		if t, ok := v.(time.Time); ok {
			normalized[k] = formatTime(t)
			continue
		}
		normalized[k] = v
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
