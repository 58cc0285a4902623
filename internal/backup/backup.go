// Package backup manages timestamped copies of the data files: taking
// snapshots before destructive maintenance, pruning by age, and restoring a
// chosen snapshot.
package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leeovery/quizstore/internal/atomicfile"
	"github.com/leeovery/quizstore/internal/storeerr"
)

// TimestampLayout is embedded in every backup name.
const TimestampLayout = "20060102_150405"

// DefaultKeepDays is the retention used when KeepDays is zero.
const DefaultKeepDays = 30

var namePattern = regexp.MustCompile(`^(.+)_(\d{8}_\d{6})(?:_\d+)?\.csv$`)

// Entry describes one backup file.
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Source  string    `json:"source"`
	Created time.Time `json:"created"`
	Size    int64     `json:"size"`
}

// Info summarizes the backup directory.
type Info struct {
	Dir        string `json:"dir"`
	Count      int    `json:"count"`
	TotalBytes int64  `json:"total_bytes"`
	KeepDays   int    `json:"keep_days"`
}

// Manager takes, lists, prunes and restores backups.
type Manager struct {
	DataDir   string
	BackupDir string
	KeepDays  int
	// Now is the clock used for names and pruning. Defaults to time.Now.
	Now    func() time.Time
	Logger *zap.Logger
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Manager) logger() *zap.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return zap.NewNop()
}

func (m *Manager) keepDays() int {
	if m.KeepDays > 0 {
		return m.KeepDays
	}
	return DefaultKeepDays
}

// Snapshot copies each file into the backup directory under
// <stem>_<YYYYMMDD_HHMMSS>.csv and returns the written paths. Missing or
// empty files are skipped. A name already taken in the same second gets a
// numeric suffix.
func (m *Manager) Snapshot(files ...string) ([]string, error) {
	if err := os.MkdirAll(m.BackupDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating backup directory: %w", storeerr.ErrIO, err)
	}

	stamp := m.now().Format(TimestampLayout)
	var written []string
	for _, src := range files {
		info, err := os.Stat(src)
		if errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0) {
			m.logger().Debug("skipping empty backup source", zap.String("path", src))
			continue
		}
		if err != nil {
			return written, fmt.Errorf("%w: %w", storeerr.ErrIO, err)
		}

		dst := m.freeName(stem(src), stamp)
		if err := copyFile(src, dst); err != nil {
			return written, err
		}
		m.logger().Info("backup created", zap.String("source", src), zap.String("backup", dst))
		written = append(written, dst)
	}
	return written, nil
}

func (m *Manager) freeName(stem, stamp string) string {
	base := filepath.Join(m.BackupDir, fmt.Sprintf("%s_%s", stem, stamp))
	path := base + ".csv"
	for n := 1; ; n++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path
		}
		path = fmt.Sprintf("%s_%d.csv", base, n)
	}
}

// List returns the backups newest first.
func (m *Manager) List() ([]Entry, error) {
	dirents, err := os.ReadDir(m.BackupDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading backup directory: %w", storeerr.ErrIO, err)
	}

	var entries []Entry
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		match := namePattern.FindStringSubmatch(d.Name())
		if match == nil {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		created, err := time.ParseInLocation(TimestampLayout, match[2], time.Local)
		if err != nil {
			created = info.ModTime()
		}
		entries = append(entries, Entry{
			Name:    d.Name(),
			Path:    filepath.Join(m.BackupDir, d.Name()),
			Source:  match[1] + ".csv",
			Created: created,
			Size:    info.Size(),
		})
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		if c := b.Created.Compare(a.Created); c != 0 {
			return c
		}
		return strings.Compare(b.Name, a.Name)
	})
	return entries, nil
}

// Prune deletes backups older than KeepDays relative to now and returns how
// many were removed.
func (m *Manager) Prune(now time.Time) (int, error) {
	entries, err := m.List()
	if err != nil {
		return 0, err
	}
	cutoff := now.AddDate(0, 0, -m.keepDays())
	removed := 0
	for _, e := range entries {
		if !e.Created.Before(cutoff) {
			continue
		}
		if err := os.Remove(e.Path); err != nil {
			return removed, fmt.Errorf("%w: removing %s: %w", storeerr.ErrIO, e.Name, err)
		}
		m.logger().Info("backup pruned", zap.String("backup", e.Name))
		removed++
	}
	return removed, nil
}

// Info reports the number and total size of backups.
func (m *Manager) Info() (Info, error) {
	entries, err := m.List()
	if err != nil {
		return Info{}, err
	}
	info := Info{Dir: m.BackupDir, Count: len(entries), KeepDays: m.keepDays()}
	for _, e := range entries {
		info.TotalBytes += e.Size
	}
	return info, nil
}

// Restore copies the named backup over its source file in DataDir and
// returns the restored path.
func (m *Manager) Restore(name string) (string, error) {
	name = filepath.Base(name)
	match := namePattern.FindStringSubmatch(name)
	if match == nil {
		return "", fmt.Errorf("%w: %q is not a backup name", storeerr.ErrNotFound, name)
	}
	data, err := os.ReadFile(filepath.Join(m.BackupDir, name))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: backup %s", storeerr.ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("%w: reading backup: %w", storeerr.ErrIO, err)
	}

	target := filepath.Join(m.DataDir, match[1]+".csv")
	if err := atomicfile.WriteBytes(target, data); err != nil {
		return "", err
	}
	m.logger().Info("backup restored", zap.String("backup", name), zap.String("target", target))
	return target, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", storeerr.ErrIO, src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %w", storeerr.ErrIO, dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("%w: copying %s: %w", storeerr.ErrIO, src, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("%w: syncing %s: %w", storeerr.ErrIO, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", storeerr.ErrIO, dst, err)
	}
	return nil
}
