package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// MemoryPath opens a private in-memory database. Each Open gets its own.
const MemoryPath = ":memory:"

// pragma is one connection setting and the value SQLite reports once set.
type pragma struct {
	name, value, reported string
}

var pragmas = []pragma{
	{"journal_mode", "WAL", "wal"},
	{"synchronous", "NORMAL", "1"},
	{"busy_timeout", "5000", "5000"},
	{"foreign_keys", "ON", "1"},
}

// migrations[i] upgrades a database from user_version i to i+1.
var migrations = []func(*sql.DB) error{
	indexStatement("idx_trace_events_type", "trace_events(run_id, type)"),
	indexStatement("idx_runs_seq", "runs(seq)"),
}

func indexStatement(name, target string) func(*sql.DB) error {
	return func(db *sql.DB) error {
		_, err := db.Exec("CREATE INDEX IF NOT EXISTS " + name + " ON " + target)
		return err
	}
}

// Store is a SQLite run log. A single connection serialises writers.
type Store struct {
	db *sql.DB
}

// Open opens or creates the run log at path and brings its schema up to
// date. Opening an existing log is safe.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db, path == MemoryPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("open run log %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func prepare(db *sql.DB, memory bool) error {
	if err := db.Ping(); err != nil {
		return err
	}
	for _, p := range pragmas {
		// In-memory databases keep their own journal.
		if memory && p.name == "journal_mode" {
			continue
		}
		if _, err := db.Exec("PRAGMA " + p.name + " = " + p.value); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return migrate(db)
}

// migrate runs every migration above the stored user_version.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if err := migrations[v](db); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
		return fmt.Errorf("write user_version: %w", err)
	}
	return nil
}

// SchemaVersion is the user_version of a fully migrated run log.
func SchemaVersion() int {
	return len(migrations)
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the connection for ad hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// checkPragmas compares every connection setting with its expected value.
func (s *Store) checkPragmas() error {
	var bad []string
	for _, p := range pragmas {
		var got string
		if err := s.db.QueryRow("PRAGMA " + p.name).Scan(&got); err != nil {
			return fmt.Errorf("read pragma %s: %w", p.name, err)
		}
		if !strings.EqualFold(got, p.reported) {
			bad = append(bad, fmt.Sprintf("%s=%s (want %s)", p.name, got, p.reported))
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("pragmas not applied: %s", strings.Join(bad, ", "))
	}
	return nil
}
