package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStore opens a fresh run log in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.FileExists(t, path)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "open #%d", i+1)
		require.NoError(t, s.Close())
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.ElementsMatch(t,
		[]string{"runs", "log_lines", "durations", "trace_events"},
		names(t, s.db, "SELECT name FROM sqlite_master WHERE type='table'"))
}

func TestOpen_BadDirectory(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "runs.db"))
	assert.Error(t, err)
}

func TestOpen_Memory(t *testing.T) {
	a, err := Open(MemoryPath)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(MemoryPath)
	require.NoError(t, err)
	defer b.Close()

	_, err = a.DB().Exec(`INSERT INTO runs VALUES ('r1','pool',1,'h','v','completed',0,0,0,0,0,0,0,'{}',1)`)
	require.NoError(t, err)

	var n int
	require.NoError(t, b.DB().QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n))
	assert.Zero(t, n, "in-memory stores must not share state")
}

func TestClose_Twice(t *testing.T) {
	assert.NoError(t, (&Store{}).Close())
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.checkPragmas())

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, SchemaVersion(), version)
}

func TestMigrate_FromOlderVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("DROP INDEX idx_runs_seq")
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 1")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Contains(t, indexes(t, s.db, "runs"), "idx_runs_seq")
}

func TestSchema_RunsColumns(t *testing.T) {
	s := createTestStore(t)
	assert.Equal(t, []string{
		"id", "mode", "workers", "workload_hash", "engine_version", "status",
		"transactions", "batches", "groups_total", "applied", "failed",
		"unscheduled", "duration_ns", "final_ledger", "seq",
	}, names(t, s.db, "SELECT name FROM pragma_table_info('runs')"))
}

func TestSchema_Indexes(t *testing.T) {
	s := createTestStore(t)
	assert.Contains(t, indexes(t, s.db, "trace_events"), "idx_trace_events_type")
	assert.Contains(t, indexes(t, s.db, "runs"), "idx_runs_seq")
}

func TestSchema_ChildRowsNeedRun(t *testing.T) {
	s := createTestStore(t)
	for _, stmt := range []string{
		`INSERT INTO log_lines (run_id, seq, message) VALUES ('ghost', 1, 'x')`,
		`INSERT INTO durations (run_id, seq, scope, nanos) VALUES ('ghost', 1, 'run', 5)`,
		`INSERT INTO trace_events (run_id, seq, type, payload) VALUES ('ghost', 1, 'execution_end', '{}')`,
	} {
		_, err := s.db.Exec(stmt)
		assert.Error(t, err, stmt)
	}
}

func indexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	return names(t, db, "SELECT name FROM sqlite_master WHERE type='index' AND tbl_name = ?", table)
}

// names returns the first column of every row of query.
func names(t *testing.T, db *sql.DB, query string, args ...any) []string {
	t.Helper()
	rows, err := db.Query(query, args...)
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		out = append(out, name)
	}
	require.NoError(t, rows.Err())
	return out
}
