package testutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leeovery/quizstore/internal/testutil"
)

func TestFindRepoRoot(t *testing.T) {
	t.Run("it returns a path containing go.mod", func(t *testing.T) {
		root := testutil.FindRepoRoot(t)
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
			t.Fatalf("expected go.mod under %s: %v", root, err)
		}
	})
}

func TestSeedDataDir(t *testing.T) {
	t.Run("it writes both data files", func(t *testing.T) {
		dir := testutil.SeedDataDir(t, testutil.ItemHeader, "")
		if got := testutil.ReadFile(t, filepath.Join(dir, "problems.csv")); got != testutil.ItemHeader {
			t.Errorf("problems.csv = %q", got)
		}
		if got := testutil.ReadFile(t, filepath.Join(dir, "attempts.csv")); got != "" {
			t.Errorf("attempts.csv = %q", got)
		}
	})
}
