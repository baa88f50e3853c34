package state

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rastow/panerun/internal/track"
)

const schema = `
CREATE TABLE IF NOT EXISTS executions (
    id          TEXT PRIMARY KEY,
    pane_target TEXT NOT NULL DEFAULT '',
    command     TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT '',
    started_at  TEXT NOT NULL DEFAULT '',
    ended_at    TEXT,
    exit_code   INTEGER,
    output      TEXT NOT NULL DEFAULT '',
    shell_type  TEXT NOT NULL DEFAULT '',
    work_dir    TEXT NOT NULL DEFAULT '',
    retry_count INTEGER NOT NULL DEFAULT 0,
    aborted     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pane_options (
    target     TEXT PRIMARY KEY,
    use_hooks  INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// Fixed-width so lexical order on the column matches time order.
const timeLayout = "2006-01-02 15:04:05.000000000"

// Store wraps a SQLite database holding the durable execution history
// and per-pane options. The live registry never reads it back; history
// is a write-behind mirror of terminal records.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at
// $XDG_STATE_HOME/panerun/history.db.
func Open() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		stateHome = filepath.Join(home, ".local", "state")
	}
	return OpenAt(filepath.Join(stateHome, "panerun", "history.db"))
}

// OpenAt creates or opens the history database at an explicit path.
func OpenAt(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL mode for safe concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (ignore errors for already-existing columns)
	for _, m := range []string{
		"ALTER TABLE executions ADD COLUMN work_dir TEXT NOT NULL DEFAULT ''",
		"ALTER TABLE executions ADD COLUMN retry_count INTEGER NOT NULL DEFAULT 0",
		"ALTER TABLE executions ADD COLUMN aborted INTEGER NOT NULL DEFAULT 0",
	} {
		db.Exec(m) //nolint:errcheck
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record upserts a terminal execution. Satisfies the engine's history
// sink interface.
func (s *Store) Record(e track.Execution) error {
	var endedAt sql.NullString
	if e.EndedAt != nil {
		endedAt = sql.NullString{String: e.EndedAt.UTC().Format(timeLayout), Valid: true}
	}
	var exitCode sql.NullInt64
	if e.ExitCode != nil {
		exitCode = sql.NullInt64{Int64: int64(*e.ExitCode), Valid: true}
	}
	aborted := 0
	if e.Aborted {
		aborted = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO executions (id, pane_target, command, status, started_at,
			ended_at, exit_code, output, shell_type, work_dir, retry_count, aborted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			ended_at = excluded.ended_at,
			exit_code = excluded.exit_code,
			output = excluded.output,
			retry_count = excluded.retry_count,
			aborted = excluded.aborted
	`, e.ID, e.PaneTarget, e.Command, string(e.Status),
		e.StartedAt.UTC().Format(timeLayout), endedAt, exitCode,
		e.Output, e.ShellType, e.WorkingDir, e.RetryCount, aborted)
	return err
}

// List returns the most recent executions, newest first.
func (s *Store) List(limit int) ([]track.Execution, error) {
	rows, err := s.db.Query(`
		SELECT id, pane_target, command, status, started_at, ended_at,
			exit_code, output, shell_type, work_dir, retry_count, aborted
		FROM executions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []track.Execution
	for rows.Next() {
		var e track.Execution
		var startedAt string
		var endedAt sql.NullString
		var exitCode sql.NullInt64
		var aborted int
		if err := rows.Scan(&e.ID, &e.PaneTarget, &e.Command, &e.Status,
			&startedAt, &endedAt, &exitCode, &e.Output, &e.ShellType,
			&e.WorkingDir, &e.RetryCount, &aborted); err != nil {
			return nil, err
		}
		e.StartedAt, _ = time.Parse(timeLayout, startedAt)
		if endedAt.Valid {
			if t, err := time.Parse(timeLayout, endedAt.String); err == nil {
				e.EndedAt = &t
			}
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			e.ExitCode = &code
		}
		e.Aborted = aborted == 1
		result = append(result, e)
	}
	return result, rows.Err()
}

// Prune deletes history entries that ended at least age ago and returns
// how many were removed.
func (s *Store) Prune(age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age).UTC().Format(timeLayout)
	res, err := s.db.Exec(`
		DELETE FROM executions
		WHERE ended_at IS NOT NULL AND ended_at <= ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// SetPaneHooks marks a pane for the hook protocol on later submissions.
func (s *Store) SetPaneHooks(target string, enabled bool) error {
	val := 0
	if enabled {
		val = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO pane_options (target, use_hooks, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(target) DO UPDATE SET
			use_hooks = excluded.use_hooks,
			updated_at = CURRENT_TIMESTAMP
	`, target, val)
	return err
}

// LoadHookPanes returns every saved pane preference. A false entry is a
// real choice (forced wrapper protocol), distinct from an absent pane.
func (s *Store) LoadHookPanes() (map[string]bool, error) {
	rows, err := s.db.Query("SELECT target, use_hooks FROM pane_options")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var target string
		var useHooks int
		if err := rows.Scan(&target, &useHooks); err != nil {
			return nil, err
		}
		result[target] = useHooks == 1
	}
	return result, rows.Err()
}
