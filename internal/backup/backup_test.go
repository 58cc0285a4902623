package backup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeovery/quizstore/internal/storeerr"
)

var fixedNow = time.Date(2024, 7, 15, 14, 30, 5, 0, time.Local)

func newManager(t *testing.T) *Manager {
	t.Helper()
	root := t.TempDir()
	m := &Manager{
		DataDir:   filepath.Join(root, "data"),
		BackupDir: filepath.Join(root, "backups"),
		KeepDays:  30,
		Now:       func() time.Time { return fixedNow },
	}
	require.NoError(t, os.MkdirAll(m.DataDir, 0755))
	return m
}

func writeData(t *testing.T, m *Manager, name, content string) string {
	t.Helper()
	path := filepath.Join(m.DataDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSnapshot(t *testing.T) {
	t.Run("it copies each file under a timestamped name", func(t *testing.T) {
		m := newManager(t)
		items := writeData(t, m, "problems.csv", "id\nA\n")
		attempts := writeData(t, m, "attempts.csv", "id\n1\n")

		paths, err := m.Snapshot(items, attempts)
		require.NoError(t, err)
		require.Len(t, paths, 2)

		assert.Equal(t, filepath.Join(m.BackupDir, "problems_20240715_143005.csv"), paths[0])
		assert.Equal(t, filepath.Join(m.BackupDir, "attempts_20240715_143005.csv"), paths[1])

		data, err := os.ReadFile(paths[0])
		require.NoError(t, err)
		assert.Equal(t, "id\nA\n", string(data))
	})

	t.Run("it suffixes names taken in the same second", func(t *testing.T) {
		m := newManager(t)
		items := writeData(t, m, "problems.csv", "id\nA\n")

		first, err := m.Snapshot(items)
		require.NoError(t, err)
		second, err := m.Snapshot(items)
		require.NoError(t, err)

		assert.NotEqual(t, first[0], second[0])
		assert.Equal(t, "problems_20240715_143005_1.csv", filepath.Base(second[0]))
	})

	t.Run("it skips missing and empty files", func(t *testing.T) {
		m := newManager(t)
		empty := writeData(t, m, "attempts.csv", "")

		paths, err := m.Snapshot(empty, filepath.Join(m.DataDir, "nope.csv"))
		require.NoError(t, err)
		assert.Empty(t, paths)
	})
}

func TestListAndPrune(t *testing.T) {
	seed := func(t *testing.T, m *Manager, names ...string) {
		t.Helper()
		require.NoError(t, os.MkdirAll(m.BackupDir, 0755))
		for _, n := range names {
			require.NoError(t, os.WriteFile(filepath.Join(m.BackupDir, n), []byte("id\n"), 0644))
		}
	}

	t.Run("it lists backups newest first and ignores other files", func(t *testing.T) {
		m := newManager(t)
		seed(t, m,
			"problems_20240101_000000.csv",
			"problems_20240710_120000.csv",
			"attempts_20240601_080000.csv",
			"notes.txt",
		)

		entries, err := m.List()
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "problems_20240710_120000.csv", entries[0].Name)
		assert.Equal(t, "attempts.csv", entries[1].Source)
		assert.Equal(t, "problems_20240101_000000.csv", entries[2].Name)
	})

	t.Run("it returns nothing when the directory does not exist", func(t *testing.T) {
		m := newManager(t)
		entries, err := m.List()
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("it prunes backups older than the retention window", func(t *testing.T) {
		m := newManager(t)
		seed(t, m,
			"problems_20240101_000000.csv",
			"problems_20240710_120000.csv",
			"attempts_20240601_080000.csv",
		)

		removed, err := m.Prune(fixedNow)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		entries, err := m.List()
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "problems_20240710_120000.csv", entries[0].Name)
	})

	t.Run("it reports count and size", func(t *testing.T) {
		m := newManager(t)
		seed(t, m, "problems_20240710_120000.csv", "attempts_20240710_120000.csv")

		info, err := m.Info()
		require.NoError(t, err)
		assert.Equal(t, 2, info.Count)
		assert.Equal(t, int64(6), info.TotalBytes)
		assert.Equal(t, 30, info.KeepDays)
	})
}

func TestRestore(t *testing.T) {
	t.Run("it copies the backup over its source file", func(t *testing.T) {
		m := newManager(t)
		items := writeData(t, m, "problems.csv", "id\nA\n")
		paths, err := m.Snapshot(items)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(items, []byte("id\nB\n"), 0644))

		target, err := m.Restore(filepath.Base(paths[0]))
		require.NoError(t, err)
		assert.Equal(t, items, target)

		data, err := os.ReadFile(items)
		require.NoError(t, err)
		assert.Equal(t, "id\nA\n", string(data))
	})

	t.Run("it maps suffixed names back to the source file", func(t *testing.T) {
		m := newManager(t)
		require.NoError(t, os.MkdirAll(m.BackupDir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(m.BackupDir, "attempts_20240710_120000_2.csv"), []byte("id\n9\n"), 0644))

		target, err := m.Restore("attempts_20240710_120000_2.csv")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(m.DataDir, "attempts.csv"), target)
	})

	t.Run("it fails with ErrNotFound for an unknown backup", func(t *testing.T) {
		m := newManager(t)
		_, err := m.Restore("problems_20990101_000000.csv")
		assert.True(t, errors.Is(err, storeerr.ErrNotFound), "got %v", err)

		_, err = m.Restore("random.csv")
		assert.True(t, errors.Is(err, storeerr.ErrNotFound), "got %v", err)
	})
}
