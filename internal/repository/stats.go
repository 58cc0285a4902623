package repository

import (
	"context"

	"github.com/leeovery/quizstore/internal/index"
	"github.com/leeovery/quizstore/internal/quiz"
	"github.com/leeovery/quizstore/internal/storage"
)

// Stats answers aggregate queries from the SQLite read index, rebuilding it
// from the repositories whenever the data files have changed.
type Stats struct {
	store     storage.Store
	problems  *Problems
	attempts  *Attempts
	indexPath string
	opts      options
}

// NewStats returns a Stats service keeping its index at indexPath.
func NewStats(store storage.Store, indexPath string, opts ...Option) *Stats {
	return &Stats{
		store:     store,
		problems:  NewProblems(store, opts...),
		attempts:  NewAttempts(store, opts...),
		indexPath: indexPath,
		opts:      newOptions(opts),
	}
}

// Report holds collection totals and per-item statistics.
type Report struct {
	Totals index.Totals     `json:"totals"`
	Items  []index.ItemStat `json:"items"`
}

// Report returns statistics for every item.
func (s *Stats) Report(ctx context.Context) (Report, error) {
	var r Report
	err := s.query(ctx, func(ix *index.Index) error {
		var err error
		if r.Totals, err = ix.Totals(); err != nil {
			return err
		}
		r.Items, err = ix.ItemStats()
		return err
	})
	return r, err
}

// Rebuild forces a full index rebuild and returns the number of items
// indexed.
func (s *Stats) Rebuild(ctx context.Context) (int, error) {
	hash, err := s.store.Fingerprint(ctx)
	if err != nil {
		return 0, err
	}
	items, attempts, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	ix, err := index.New(s.indexPath)
	if err != nil {
		return 0, err
	}
	defer ix.Close()
	if err := ix.Rebuild(items, attempts, hash); err != nil {
		return 0, err
	}
	return len(items), nil
}

func (s *Stats) query(ctx context.Context, fn func(*index.Index) error) error {
	hash, err := s.store.Fingerprint(ctx)
	if err != nil {
		return err
	}
	ix, err := index.EnsureFresh(s.indexPath, hash, func() ([]quiz.Item, []quiz.Attempt, error) {
		return s.load(ctx)
	}, s.opts.logger)
	if err != nil {
		return err
	}
	defer ix.Close()
	return fn(ix)
}

func (s *Stats) load(ctx context.Context) ([]quiz.Item, []quiz.Attempt, error) {
	items, err := s.problems.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	attempts, err := s.attempts.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	return items, attempts, nil
}
