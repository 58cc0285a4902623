package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Canonical headers, newline-terminated, for building fixture files.
const (
	ItemHeader    = "id,prompt_text,answer_token,reading,created_at,miss_count\n"
	AttemptHeader = "id,item_id,attempted_at,is_correct,mistake_kind,memo,logged_at\n"
)

// SeedDataDir creates a data directory under a fresh temp dir holding
// problems.csv and attempts.csv with the given content, and returns it.
func SeedDataDir(t *testing.T, items, attempts string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "data")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating data dir: %v", err)
	}
	WriteFile(t, filepath.Join(dir, "problems.csv"), items)
	WriteFile(t, filepath.Join(dir, "attempts.csv"), attempts)
	return dir
}

// WriteFile writes content to path or fails the test.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}
