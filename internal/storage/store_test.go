package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/leeovery/quizstore/internal/csvrow"
	"github.com/leeovery/quizstore/internal/storeerr"
)

// setupDataDir creates a data directory holding the given raw file contents.
func setupDataDir(t *testing.T, items, attempts string) string {
	t.Helper()
	dir := t.TempDir()
	if items != "" {
		if err := os.WriteFile(filepath.Join(dir, "problems.csv"), []byte(items), 0644); err != nil {
			t.Fatalf("failed to write problems.csv: %v", err)
		}
	}
	if attempts != "" {
		if err := os.WriteFile(filepath.Join(dir, "attempts.csv"), []byte(attempts), 0644); err != nil {
			t.Fatalf("failed to write attempts.csv: %v", err)
		}
	}
	return dir
}

func TestOpen(t *testing.T) {
	t.Run("it creates missing files with the canonical header", func(t *testing.T) {
		dir := setupDataDir(t, "", "")

		if _, err := Open(dir); err != nil {
			t.Fatalf("Open returned error: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(dir, "problems.csv"))
		if err != nil {
			t.Fatalf("reading problems.csv: %v", err)
		}
		want := "id,prompt_text,answer_token,reading,created_at,miss_count\n"
		if string(data) != want {
			t.Errorf("problems.csv = %q, want %q", data, want)
		}

		data, err = os.ReadFile(filepath.Join(dir, "attempts.csv"))
		if err != nil {
			t.Fatalf("reading attempts.csv: %v", err)
		}
		if !strings.HasPrefix(string(data), "id,item_id,attempted_at,is_correct") {
			t.Errorf("attempts.csv header = %q", data)
		}
	})

	t.Run("it leaves existing files untouched", func(t *testing.T) {
		content := "id,prompt_text\nA,x\n"
		dir := setupDataDir(t, content, "")

		if _, err := Open(dir); err != nil {
			t.Fatalf("Open returned error: %v", err)
		}
		data, _ := os.ReadFile(filepath.Join(dir, "problems.csv"))
		if string(data) != content {
			t.Errorf("problems.csv = %q, want %q", data, content)
		}
	})

	t.Run("it fails with ErrIO when the directory is missing", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, storeerr.ErrIO) {
			t.Fatalf("expected ErrIO, got %v", err)
		}
	})

	t.Run("it creates the directory on Init", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "data")
		s, err := Init(dir)
		if err != nil {
			t.Fatalf("Init returned error: %v", err)
		}
		if _, err := os.Stat(s.Path(Items)); err != nil {
			t.Errorf("expected items file, got %v", err)
		}
	})
}

func TestFileStoreMutate(t *testing.T) {
	ctx := context.Background()

	t.Run("it holds the lock file during mutation", func(t *testing.T) {
		dir := setupDataDir(t, "", "")
		s, err := Open(dir)
		if err != nil {
			t.Fatalf("Open returned error: %v", err)
		}

		err = s.Mutate(ctx, Items, func(tb *csvrow.Table) (*csvrow.Table, error) {
			other := flock.New(filepath.Join(dir, "lock"))
			locked, err := other.TryRLock()
			if err != nil {
				t.Fatalf("second lock: %v", err)
			}
			if locked {
				_ = other.Unlock()
				t.Error("expected exclusive lock to block a shared reader")
			}
			return nil, nil
		})
		if err != nil {
			t.Fatalf("Mutate returned error: %v", err)
		}
	})

	t.Run("it writes the returned table", func(t *testing.T) {
		dir := setupDataDir(t, "", "")
		s, _ := Open(dir)

		err := s.Mutate(ctx, Items, func(tb *csvrow.Table) (*csvrow.Table, error) {
			tb.Append([]string{"A", "p", "a", "ア", "2024-01-01T00:00:00", "0"})
			return tb, nil
		})
		if err != nil {
			t.Fatalf("Mutate returned error: %v", err)
		}

		tb, err := s.Read(ctx, Items)
		if err != nil {
			t.Fatalf("Read returned error: %v", err)
		}
		if len(tb.Rows) != 1 || tb.Rows[0].Fields[0] != "A" {
			t.Errorf("rows = %v, want one row for A", tb.Rows)
		}
	})

	t.Run("it does not write when the function returns nil", func(t *testing.T) {
		content := "id,prompt_text\r\nA,x\r\n"
		dir := setupDataDir(t, content, "")
		s, _ := Open(dir)

		err := s.Mutate(ctx, Items, func(tb *csvrow.Table) (*csvrow.Table, error) {
			return nil, nil
		})
		if err != nil {
			t.Fatalf("Mutate returned error: %v", err)
		}
		data, _ := os.ReadFile(s.Path(Items))
		if string(data) != content {
			t.Errorf("file rewritten: %q", data)
		}
	})

	t.Run("it propagates the function error without writing", func(t *testing.T) {
		content := "id,prompt_text\nA,x\n"
		dir := setupDataDir(t, content, "")
		s, _ := Open(dir)

		err := s.Mutate(ctx, Items, func(tb *csvrow.Table) (*csvrow.Table, error) {
			tb.Append([]string{"B", "y"})
			return tb, storeerr.ErrDuplicateID
		})
		if !errors.Is(err, storeerr.ErrDuplicateID) {
			t.Fatalf("expected ErrDuplicateID, got %v", err)
		}
		data, _ := os.ReadFile(s.Path(Items))
		if string(data) != content {
			t.Errorf("file rewritten: %q", data)
		}
	})

	t.Run("it releases the lock after an error", func(t *testing.T) {
		dir := setupDataDir(t, "", "")
		s, _ := Open(dir)

		_ = s.Mutate(ctx, Items, func(tb *csvrow.Table) (*csvrow.Table, error) {
			return nil, errors.New("boom")
		})

		other := flock.New(filepath.Join(dir, "lock"))
		locked, err := other.TryLock()
		if err != nil {
			t.Fatalf("second lock: %v", err)
		}
		if !locked {
			t.Fatal("lock leaked after failed mutation")
		}
		_ = other.Unlock()
	})
}

func TestFileStoreLockTimeout(t *testing.T) {
	ctx := context.Background()

	t.Run("it returns ErrLocked when another holder keeps the lock", func(t *testing.T) {
		dir := setupDataDir(t, "", "")
		s, err := Open(dir, WithLockTimeout(100*time.Millisecond))
		if err != nil {
			t.Fatalf("Open returned error: %v", err)
		}

		external := flock.New(filepath.Join(dir, "lock"))
		if err := external.Lock(); err != nil {
			t.Fatalf("failed to acquire external lock: %v", err)
		}
		defer func() { _ = external.Unlock() }()

		err = s.Mutate(ctx, Items, func(tb *csvrow.Table) (*csvrow.Table, error) {
			t.Error("mutation function should not have been called")
			return nil, nil
		})
		if !errors.Is(err, storeerr.ErrLocked) {
			t.Fatalf("Mutate: expected ErrLocked, got %v", err)
		}

		if _, err := s.Read(ctx, Items); !errors.Is(err, storeerr.ErrLocked) {
			t.Fatalf("Read: expected ErrLocked, got %v", err)
		}
	})

	t.Run("it returns ErrIO when the lock file cannot be opened", func(t *testing.T) {
		dir := setupDataDir(t, "", "")
		s, err := Open(dir, WithLockTimeout(100*time.Millisecond))
		if err != nil {
			t.Fatalf("Open returned error: %v", err)
		}
		if err := os.RemoveAll(dir); err != nil {
			t.Fatalf("removing data dir: %v", err)
		}

		_, err = s.Read(ctx, Items)
		if !errors.Is(err, storeerr.ErrIO) {
			t.Fatalf("Read: expected ErrIO, got %v", err)
		}
		if errors.Is(err, storeerr.ErrLocked) {
			t.Errorf("Read: an I/O failure should not read as a held lock: %v", err)
		}
	})

	t.Run("it allows reads while another reader holds a shared lock", func(t *testing.T) {
		dir := setupDataDir(t, "", "")
		s, _ := Open(dir, WithLockTimeout(100*time.Millisecond))

		reader := flock.New(filepath.Join(dir, "lock"))
		if err := reader.RLock(); err != nil {
			t.Fatalf("failed to acquire shared lock: %v", err)
		}
		defer func() { _ = reader.Unlock() }()

		if _, err := s.Read(ctx, Attempts); err != nil {
			t.Fatalf("Read returned error: %v", err)
		}
	})
}

func TestFingerprint(t *testing.T) {
	ctx := context.Background()

	t.Run("it changes when either file changes", func(t *testing.T) {
		dir := setupDataDir(t, "", "")
		s, _ := Open(dir)

		before, err := s.Fingerprint(ctx)
		if err != nil {
			t.Fatalf("Fingerprint returned error: %v", err)
		}
		if err := os.WriteFile(s.Path(Attempts), []byte("id,item_id\nX,A\n"), 0644); err != nil {
			t.Fatal(err)
		}
		after, _ := s.Fingerprint(ctx)
		if before == after {
			t.Error("fingerprint did not change after attempts edit")
		}
	})

	t.Run("it matches between file and memory stores for equal content", func(t *testing.T) {
		dir := setupDataDir(t, "", "")
		fs, _ := Open(dir)
		ms := NewMemStore()

		a, _ := fs.Fingerprint(ctx)
		b, _ := ms.Fingerprint(ctx)
		if a != b {
			t.Errorf("fingerprints differ: %s vs %s", a, b)
		}
	})
}

func TestMemStore(t *testing.T) {
	ctx := context.Background()

	t.Run("it round-trips through Mutate and Read", func(t *testing.T) {
		m := NewMemStore()
		err := m.Mutate(ctx, Attempts, func(tb *csvrow.Table) (*csvrow.Table, error) {
			tb.Append([]string{"X", "A", "2024-01-01T00:00:00", "True"})
			return tb, nil
		})
		if err != nil {
			t.Fatalf("Mutate returned error: %v", err)
		}
		tb, _ := m.Read(ctx, Attempts)
		if got, _ := tb.Rows[0].Get("is_correct"); got != "True" {
			t.Errorf("is_correct = %q, want True", got)
		}
	})

	t.Run("it reports malformed raw data on read", func(t *testing.T) {
		m := NewMemStore()
		m.SetRaw(Items, []byte("id,prompt_text\n\"A,x\n"))
		if _, err := m.Read(ctx, Items); !errors.Is(err, storeerr.ErrMalformedRecord) {
			t.Fatalf("expected ErrMalformedRecord, got %v", err)
		}
	})

	t.Run("it substitutes the canonical header for empty content", func(t *testing.T) {
		m := NewMemStore()
		m.SetRaw(Items, nil)
		tb, err := m.Read(ctx, Items)
		if err != nil {
			t.Fatalf("Read returned error: %v", err)
		}
		if tb.Column("miss_count") < 0 {
			t.Errorf("header = %v, want canonical", tb.Header)
		}
	})
}
