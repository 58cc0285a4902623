package doctor

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/leeovery/quizstore/internal/storage"
)

// IndexStalenessCheck warns when the SQLite read index was built from
// different file content than what is on disk. A missing index passes
// because it is built on first use. The check is read-only.
type IndexStalenessCheck struct{}

func (c *IndexStalenessCheck) Run(_ context.Context, src *Source) []CheckResult {
	const name = "Index"
	if src.IndexPath == "" {
		return passed(name)
	}
	if _, err := os.Stat(src.IndexPath); os.IsNotExist(err) {
		return passed(name)
	}

	items, err := os.ReadFile(src.ItemsPath)
	if err != nil {
		return staleResult(name, fmt.Sprintf("items file unreadable: %v", err))
	}
	attempts, err := os.ReadFile(src.AttemptsPath)
	if err != nil && !os.IsNotExist(err) {
		return staleResult(name, fmt.Sprintf("attempts file unreadable: %v", err))
	}

	stored, err := queryStoredHash(src.IndexPath)
	if err != nil {
		return staleResult(name, "index is unreadable")
	}
	if stored != storage.ContentHash(items, attempts) {
		return staleResult(name, "index is stale: hash mismatch between data files and index")
	}
	return passed(name)
}

func staleResult(name, details string) []CheckResult {
	return []CheckResult{{
		Name:       name,
		Passed:     false,
		Severity:   SeverityWarning,
		Details:    details,
		Suggestion: "Run `quizstore rebuild` to refresh the index",
	}}
}

// queryStoredHash opens the index read-only and returns the recorded source
// fingerprint.
func queryStoredHash(path string) (string, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return "", fmt.Errorf("opening index: %w", err)
	}
	defer db.Close()

	var stored string
	if err := db.QueryRow("SELECT value FROM metadata WHERE key = 'source_hash'").Scan(&stored); err != nil {
		return "", fmt.Errorf("querying source_hash: %w", err)
	}
	return stored, nil
}
