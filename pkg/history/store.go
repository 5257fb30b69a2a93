package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Status values recorded for an invocation.
const (
	StatusOK        = "ok"
	StatusNoResults = "no_results"
	StatusError     = "error"
)

// Store records engine invocations
type Store interface {
	Initialize() error
	Record(inv *Invocation) (int64, error)
	List(limit int) ([]Invocation, error)
	Files(invocationID int64) ([]FileStat, error)
	Close() error
}

// Invocation is one recorded run of the engine.
type Invocation struct {
	ID        int64
	StartedAt time.Time
	Command   string // "search" or "find"
	Args      []string
	Dir       string
	Duration  time.Duration
	Status    string
	ErrorMsg  string
	Files     int
	Matches   uint64
	Stats     []FileStat
}

// FileStat holds the per-file counters reported on End messages.
type FileStat struct {
	Path          string
	Matches       uint64
	MatchedLines  uint64
	BytesSearched uint64
}

// SQLiteStore implements Store for SQLite
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at dbPath and
// ensures its schema.
func Open(dbPath string) (*SQLiteStore, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.Initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Initialize sets up database tables
func (s *SQLiteStore) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invocations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		command TEXT NOT NULL,
		args TEXT NOT NULL,
		dir TEXT NOT NULL,
		duration_ns INTEGER NOT NULL,
		status TEXT NOT NULL,
		error_msg TEXT,
		files INTEGER NOT NULL,
		matches INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS file_stats (
		invocation_id INTEGER NOT NULL REFERENCES invocations(id),
		path TEXT NOT NULL,
		matches INTEGER NOT NULL,
		matched_lines INTEGER NOT NULL,
		bytes_searched INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_started ON invocations(started_at);
	CREATE INDEX IF NOT EXISTS idx_file_stats ON file_stats(invocation_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return nil
}

// Record stores inv and its file stats, returning the new invocation ID.
func (s *SQLiteStore) Record(inv *Invocation) (int64, error) {
	args, err := json.Marshal(inv.Args)
	if err != nil {
		return 0, fmt.Errorf("failed to encode arguments: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO invocations (started_at, command, args, dir, duration_ns, status, error_msg, files, matches)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, inv.StartedAt.UTC(), inv.Command, string(args), inv.Dir, int64(inv.Duration), inv.Status, inv.ErrorMsg, inv.Files, int64(inv.Matches))
	if err != nil {
		return 0, fmt.Errorf("failed to record invocation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, st := range inv.Stats {
		_, err := tx.Exec(`
			INSERT INTO file_stats (invocation_id, path, matches, matched_lines, bytes_searched)
			VALUES (?, ?, ?, ?, ?)
		`, id, st.Path, int64(st.Matches), int64(st.MatchedLines), int64(st.BytesSearched))
		if err != nil {
			return 0, fmt.Errorf("failed to record stats for %s: %w", st.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	inv.ID = id
	return id, nil
}

// List returns the most recent invocations, newest first. File stats are
// not loaded; use Files.
func (s *SQLiteStore) List(limit int) ([]Invocation, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, command, args, dir, duration_ns, status, error_msg, files, matches
		FROM invocations
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invs []Invocation
	for rows.Next() {
		var (
			inv      Invocation
			args     string
			duration int64
			errMsg   sql.NullString
			matches  int64
		)
		if err := rows.Scan(&inv.ID, &inv.StartedAt, &inv.Command, &args, &inv.Dir, &duration, &inv.Status, &errMsg, &inv.Files, &matches); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(args), &inv.Args); err != nil {
			return nil, fmt.Errorf("invocation %d: bad arguments: %w", inv.ID, err)
		}
		inv.Duration = time.Duration(duration)
		inv.ErrorMsg = errMsg.String
		inv.Matches = uint64(matches)
		invs = append(invs, inv)
	}

	return invs, rows.Err()
}

// Files returns the per-file stats recorded for an invocation.
func (s *SQLiteStore) Files(invocationID int64) ([]FileStat, error) {
	rows, err := s.db.Query(`
		SELECT path, matches, matched_lines, bytes_searched
		FROM file_stats
		WHERE invocation_id = ?
		ORDER BY rowid
	`, invocationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []FileStat
	for rows.Next() {
		var st FileStat
		var matches, lines, searched int64
		if err := rows.Scan(&st.Path, &matches, &lines, &searched); err != nil {
			return nil, err
		}
		st.Matches, st.MatchedLines, st.BytesSearched = uint64(matches), uint64(lines), uint64(searched)
		stats = append(stats, st)
	}

	return stats, rows.Err()
}
