// Package index provides a SQLite read index over the reconciled item and
// attempt collections. The CSV files stay the source of truth: the index is
// rebuilt whenever their content fingerprint changes and may be deleted at any
// time.
package index

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/leeovery/quizstore/internal/quiz"
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
  id TEXT PRIMARY KEY,
  prompt_text TEXT NOT NULL,
  answer_token TEXT NOT NULL,
  reading TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  miss_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  item_id TEXT NOT NULL,
  attempted_at INTEGER NOT NULL,
  is_correct INTEGER NOT NULL,
  mistake_kind TEXT NOT NULL DEFAULT 'none'
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT
);

CREATE INDEX IF NOT EXISTS idx_attempts_item ON attempts(item_id);
`

const sourceHashKey = "source_hash"

// Index wraps the SQLite database holding the read index.
type Index struct {
	db   *sql.DB
	path string
}

// New opens or creates the index database at path and initializes the
// schema.
func New(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing index schema: %w", err)
	}
	return &Index{db: db, path: path}, nil
}

// Close closes the database connection.
func (ix *Index) Close() error {
	if ix.db != nil {
		return ix.db.Close()
	}
	return nil
}

// Rebuild replaces the index contents with items and attempts in a single
// transaction and records hash as the source fingerprint.
func (ix *Index) Rebuild(items []quiz.Item, attempts []quiz.Attempt, hash string) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning rebuild transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"attempts", "items", "metadata"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	itemStmt, err := tx.Prepare(`INSERT INTO items (id, prompt_text, answer_token, reading, created_at, miss_count) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing item insert: %w", err)
	}
	defer itemStmt.Close()

	for _, it := range items {
		if _, err := itemStmt.Exec(it.ID, it.PromptText, it.AnswerToken, it.Reading, it.CreatedAt.UnixNano(), it.MissCount); err != nil {
			return fmt.Errorf("inserting item %s: %w", it.ID, err)
		}
	}

	attemptStmt, err := tx.Prepare(`INSERT INTO attempts (id, item_id, attempted_at, is_correct, mistake_kind) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing attempt insert: %w", err)
	}
	defer attemptStmt.Close()

	for _, a := range attempts {
		if _, err := attemptStmt.Exec(a.ID, a.ItemID, a.AttemptedAt.UnixNano(), a.IsCorrect, string(a.MistakeKind)); err != nil {
			return fmt.Errorf("inserting attempt %s: %w", a.ID, err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO metadata (key, value) VALUES (?, ?)`, sourceHashKey, hash); err != nil {
		return fmt.Errorf("storing source hash: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rebuild transaction: %w", err)
	}
	return nil
}

// StoredHash returns the fingerprint recorded by the last rebuild, or "" if
// the index has never been built.
func (ix *Index) StoredHash() (string, error) {
	var stored string
	err := ix.db.QueryRow("SELECT value FROM metadata WHERE key = ?", sourceHashKey).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying source hash: %w", err)
	}
	return stored, nil
}

// IsFresh reports whether the index was built from content with the given
// fingerprint.
func (ix *Index) IsFresh(hash string) (bool, error) {
	stored, err := ix.StoredHash()
	if err != nil {
		return false, err
	}
	return stored != "" && stored == hash, nil
}

// Loader returns the reconciled collections to index. It is only called when
// the index is stale.
type Loader func() ([]quiz.Item, []quiz.Attempt, error)

// EnsureFresh opens the index at path, rebuilding it from load when its
// stored fingerprint differs from hash. A corrupt index file is deleted and
// recreated.
func EnsureFresh(path, hash string, load Loader, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ix, err := New(path)
	if err != nil {
		logger.Warn("index corrupt or unreadable, recreating", zap.Error(err))
		ix, err = recreate(path)
		if err != nil {
			return nil, err
		}
	}

	fresh, err := ix.IsFresh(hash)
	if err != nil {
		logger.Warn("index query failed, recreating", zap.Error(err))
		ix.Close()
		ix, err = recreate(path)
		if err != nil {
			return nil, err
		}
		fresh = false
	}
	if fresh {
		logger.Debug("index is fresh", zap.String("hash", hash))
		return ix, nil
	}

	logger.Debug("index stale, rebuilding", zap.String("hash", hash))
	items, attempts, err := load()
	if err != nil {
		ix.Close()
		return nil, err
	}
	if err := ix.Rebuild(items, attempts, hash); err != nil {
		ix.Close()
		return nil, fmt.Errorf("rebuilding index: %w", err)
	}
	return ix, nil
}

func recreate(path string) (*Index, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing corrupt index: %w", err)
	}
	ix, err := New(path)
	if err != nil {
		return nil, fmt.Errorf("recreating index: %w", err)
	}
	return ix, nil
}
