package sink

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/mirage/internal/event"
)

// SQLite writes events into one table per topic. Tables are created on
// the topic's first event, with a column per record field typed from the
// field's Go value. Unsupported values fall back to their JSON text form.
type SQLite struct {
	db     *sql.DB
	tables map[string][]string
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite sink %s: %w", path, err)
	}
	// Single connection: topic writes are ordered and WAL checkpoints
	// stay predictable.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite sink %s: %w", path, err)
	}
	return &SQLite{db: db, tables: make(map[string][]string)}, nil
}

// Write inserts the event's record into the topic's table.
func (s *SQLite) Write(ev event.Event, topic string) error {
	rec := ev.Record()
	cols, err := s.ensureTable(topic, rec)
	if err != nil {
		return err
	}

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		placeholders[i] = "?"
		args[i] = sqliteValue(rec[col])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(topic), quoteIdents(cols), strings.Join(placeholders, ", "))
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", topic, err)
	}
	return nil
}

// ensureTable creates the topic table from the first record's shape and
// returns the column order used for every later insert.
func (s *SQLite) ensureTable(topic string, rec map[string]any) ([]string, error) {
	if cols, ok := s.tables[topic]; ok {
		return cols, nil
	}

	cols := make([]string, 0, len(rec))
	for k := range rec {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	defs := make([]string, len(cols))
	for i, col := range cols {
		defs[i] = fmt.Sprintf("%s %s", quoteIdent(col), sqliteType(rec[col]))
	}
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		quoteIdent(topic), strings.Join(defs, ", "))
	if _, err := s.db.Exec(query); err != nil {
		return nil, fmt.Errorf("create table %s: %w", topic, err)
	}

	s.tables[topic] = cols
	return cols, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func sqliteType(v any) string {
	switch v.(type) {
	case bool, int, int32, int64:
		return "INTEGER"
	case float32, float64:
		return "REAL"
	default:
		return "TEXT"
	}
}

func sqliteValue(v any) any {
	switch x := v.(type) {
	case nil, bool, int, int32, int64, float32, float64, string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		data, err := event.MarshalRecord(map[string]any{"v": x})
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		// Stored as the canonical JSON of the value alone.
		return strings.TrimSuffix(strings.TrimPrefix(string(data), `{"v":`), "}")
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}
