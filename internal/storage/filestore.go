package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/leeovery/quizstore/internal/atomicfile"
	"github.com/leeovery/quizstore/internal/csvrow"
	"github.com/leeovery/quizstore/internal/storeerr"
)

const (
	defaultLockTimeout = 5 * time.Second
	lockRetryDelay     = 50 * time.Millisecond

	lockFileName  = "lock"
	indexFileName = "index.db"
)

// FileStore keeps each collection as a CSV file inside one data directory.
type FileStore struct {
	dir         string
	lockPath    string
	lockTimeout time.Duration
	logger      *zap.Logger
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithLockTimeout sets how long lock acquisition may block. The default is 5
// seconds.
func WithLockTimeout(d time.Duration) Option {
	return func(s *FileStore) {
		s.lockTimeout = d
	}
}

// WithLogger sets the logger used for lock and write tracing.
func WithLogger(l *zap.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// Init creates the data directory if needed and opens a store in it.
func Init(dir string, opts ...Option) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating data directory: %w", storeerr.ErrIO, err)
	}
	return Open(dir, opts...)
}

// Open opens the store in an existing data directory. Missing collection
// files are created with their canonical header.
func Open(dir string, opts ...Option) (*FileStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: data directory does not exist: %w", storeerr.ErrIO, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: data path is not a directory: %s", storeerr.ErrIO, dir)
	}

	s := &FileStore{
		dir:         dir,
		lockPath:    filepath.Join(dir, lockFileName),
		lockTimeout: defaultLockTimeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, c := range []Collection{Items, Attempts} {
		if err := s.ensureFile(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *FileStore) ensureFile(c Collection) error {
	path := s.Path(c)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: checking %s: %w", storeerr.ErrIO, c.FileName(), err)
	}
	s.logger.Debug("creating collection file", zap.String("path", path))
	return atomicfile.Replace(path, c.Header(), nil)
}

// Dir returns the data directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file path of a collection.
func (s *FileStore) Path(c Collection) string {
	return filepath.Join(s.dir, c.FileName())
}

// IndexPath returns where the SQLite read index lives.
func (s *FileStore) IndexPath() string {
	return filepath.Join(s.dir, indexFileName)
}

// Read returns the raw rows of c under a shared lock.
func (s *FileStore) Read(ctx context.Context, c Collection) (*csvrow.Table, error) {
	unlock, err := s.acquire(ctx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, err := csvrow.ReadFile(s.Path(c))
	if err != nil {
		return nil, err
	}
	return withHeader(t, c), nil
}

// Mutate runs fn under the exclusive lock and atomically replaces the file
// with the returned table.
func (s *FileStore) Mutate(ctx context.Context, c Collection, fn MutateFunc) error {
	unlock, err := s.acquire(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	path := s.Path(c)
	t, err := csvrow.ReadFile(path)
	if err != nil {
		return err
	}
	s.logger.Debug("read collection", zap.String("collection", string(c)), zap.Int("rows", len(t.Rows)))

	next, err := fn(withHeader(t, c))
	if err != nil {
		return err
	}
	if next == nil {
		s.logger.Debug("mutation made no change", zap.String("collection", string(c)))
		return nil
	}

	if err := atomicfile.Replace(path, next.Header, next.Records()); err != nil {
		return err
	}
	s.logger.Debug("atomic write complete", zap.String("collection", string(c)), zap.Int("rows", len(next.Rows)))
	return nil
}

// Fingerprint hashes both collection files.
func (s *FileStore) Fingerprint(ctx context.Context) (string, error) {
	unlock, err := s.acquire(ctx, false)
	if err != nil {
		return "", err
	}
	defer unlock()

	items, err := os.ReadFile(s.Path(Items))
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %w", storeerr.ErrIO, Items.FileName(), err)
	}
	attempts, err := os.ReadFile(s.Path(Attempts))
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %w", storeerr.ErrIO, Attempts.FileName(), err)
	}
	return ContentHash(items, attempts), nil
}

// LockExclusive takes the exclusive lock for callers that rewrite the files
// directly. The returned function releases it.
func (s *FileStore) LockExclusive(ctx context.Context) (func(), error) {
	return s.acquire(ctx, true)
}

// acquire takes the shared or exclusive lock with the configured timeout and
// returns the matching unlock function.
func (s *FileStore) acquire(ctx context.Context, exclusive bool) (func(), error) {
	mode := "shared"
	if exclusive {
		mode = "exclusive"
	}
	s.logger.Debug("acquiring lock", zap.String("mode", mode), zap.String("path", s.lockPath))

	fl := flock.New(s.lockPath)
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)

	var locked bool
	var err error
	if exclusive {
		locked, err = fl.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = fl.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil || !locked {
		cancel()
		s.logger.Warn("lock acquisition failed", zap.String("mode", mode), zap.Error(err))
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: opening lock file %s: %w", storeerr.ErrIO, s.lockPath, err)
		}
		return nil, fmt.Errorf("%w (%s)", storeerr.ErrLocked, s.lockPath)
	}
	s.logger.Debug("lock acquired", zap.String("mode", mode))

	return func() {
		_ = fl.Unlock()
		cancel()
		s.logger.Debug("lock released", zap.String("mode", mode))
	}, nil
}
