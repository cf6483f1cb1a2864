package resolver

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Checkpoint is the recorded outcome of a query.
type Checkpoint struct {
	Query
	Match    Match `json:"match"`
	NotFound bool  `json:"notFound,omitempty"`
}

// CheckpointStore persists checkpoints by Query.Key.
type CheckpointStore interface {
	// Load returns all the checkpoints, by key.
	Load(ctx context.Context) (map[string]Checkpoint, error)
	// Save records a checkpoint, replacing any previous one with the same key.
	Save(ctx context.Context, c Checkpoint) error
	Close() error
}

// OpenStore opens the checkpoint store at path.
//
// Files ending in .db or .sqlite are SQLite databases, anything else is a JSONL file.
func OpenStore(path string) (CheckpointStore, error) {
	switch filepath.Ext(path) {
	case ".db", ".sqlite":
		return OpenSQLiteStore(path)
	default:
		return OpenFileStore(path)
	}
}

// FileStore appends checkpoints to a JSONL file. The last line of a key wins.
type FileStore struct {
	path string
	f    *os.File
}

// OpenFileStore opens or creates a JSONL checkpoint file.
func OpenFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open checkpoints %q: %w", path, err)
	}
	return &FileStore{path: path, f: f}, nil
}

func (s *FileStore) Load(ctx context.Context) (map[string]Checkpoint, error) {
	checkpoints := make(map[string]Checkpoint)
	r, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return checkpoints, nil
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()

	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var c Checkpoint
		if err := json.Unmarshal(line, &c); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", s.path, n, err)
		}
		checkpoints[c.Key()] = c
	}
	return checkpoints, scanner.Err()
}

func (s *FileStore) Save(ctx context.Context, c Checkpoint) error {
	line, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = s.f.Write(append(line, '\n'))
	return err
}

func (s *FileStore) Close() error { return s.f.Close() }

// SQLiteStore keeps checkpoints in a SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates a SQLite checkpoint database.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open checkpoints %q: %w", path, err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS checkpoints (
		key TEXT PRIMARY KEY,
		isin TEXT NOT NULL,
		currency TEXT NOT NULL,
		venue TEXT NOT NULL,
		ticker TEXT NOT NULL,
		match_venue TEXT NOT NULL,
		confidence REAL NOT NULL,
		not_found INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create checkpoints table in %q: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (map[string]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT isin, currency, venue, ticker, match_venue, confidence, not_found FROM checkpoints`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checkpoints := make(map[string]Checkpoint)
	for rows.Next() {
		var c Checkpoint
		if err := rows.Scan(&c.ISIN, &c.Currency, &c.Venue, &c.Match.Ticker, &c.Match.Venue, &c.Match.Confidence, &c.NotFound); err != nil {
			return nil, err
		}
		checkpoints[c.Key()] = c
	}
	return checkpoints, rows.Err()
}

func (s *SQLiteStore) Save(ctx context.Context, c Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO checkpoints (key, isin, currency, venue, ticker, match_venue, confidence, not_found)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET ticker = excluded.ticker, match_venue = excluded.match_venue,
			confidence = excluded.confidence, not_found = excluded.not_found`,
		c.Key(), c.ISIN, c.Currency, c.Venue, c.Match.Ticker, c.Match.Venue, c.Match.Confidence, c.NotFound)
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
