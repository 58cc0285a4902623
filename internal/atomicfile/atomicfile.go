// Package atomicfile replaces data files using the temp file + fsync + rename
// pattern, so a reader sees either the complete old content or the complete
// new content and never a mixture.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leeovery/quizstore/internal/csvrow"
	"github.com/leeovery/quizstore/internal/storeerr"
)

// rename commits the temp file. Tests swap it to simulate an interrupted commit.
var rename = os.Rename

const defaultPerm os.FileMode = 0644

// Replace writes header and rows as a complete CSV file at path.
func Replace(path string, header []string, rows [][]string) error {
	data, err := csvrow.Encode(header, rows)
	if err != nil {
		return fmt.Errorf("%w: %w", storeerr.ErrIO, err)
	}
	return WriteBytes(path, data)
}

// WriteBytes atomically replaces path with data. The temp file lives in the
// same directory so the final rename never crosses a filesystem boundary. On
// any failure the temp file is removed and path is left untouched.
func WriteBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	perm := defaultPerm
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tmpFile, err := os.CreateTemp(dir, "."+base+".tmp*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file for %s: %w", storeerr.ErrIO, base, err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("%w: writing temp file for %s: %w", storeerr.ErrIO, base, err)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		return fmt.Errorf("%w: setting mode on temp file for %s: %w", storeerr.ErrIO, base, err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("%w: syncing temp file for %s: %w", storeerr.ErrIO, base, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file for %s: %w", storeerr.ErrIO, base, err)
	}

	if err := rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: renaming temp file onto %s: %w", storeerr.ErrIO, base, err)
	}

	success = true
	return nil
}
