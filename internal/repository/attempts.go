package repository

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/leeovery/quizstore/internal/csvrow"
	"github.com/leeovery/quizstore/internal/quiz"
	"github.com/leeovery/quizstore/internal/storage"
	"github.com/leeovery/quizstore/internal/storeerr"
)

// Attempts owns the append-only attempt log. It does not check that an
// attempt's item exists; use Scorer for that.
type Attempts struct {
	store storage.Store
	opts  options
}

// NewAttempts returns an Attempts repository backed by store.
func NewAttempts(store storage.Store, opts ...Option) *Attempts {
	return &Attempts{store: store, opts: newOptions(opts)}
}

// Load returns the reconciled attempts in file order. When an id repeats, the
// last row wins and keeps its own position.
func (a *Attempts) Load(ctx context.Context) ([]quiz.Attempt, error) {
	t, err := a.store.Read(ctx, storage.Attempts)
	if err != nil {
		return nil, err
	}
	return reconcileAttempts(t)
}

// ByItem returns the attempts referencing itemID in file order.
func (a *Attempts) ByItem(ctx context.Context, itemID string) ([]quiz.Attempt, error) {
	all, err := a.Load(ctx)
	if err != nil {
		return nil, err
	}
	var out []quiz.Attempt
	for _, at := range all {
		if at.ItemID == itemID {
			out = append(out, at)
		}
	}
	return out, nil
}

// Get returns the live attempt with the given id, or ErrNotFound.
func (a *Attempts) Get(ctx context.Context, id string) (quiz.Attempt, error) {
	all, err := a.Load(ctx)
	if err != nil {
		return quiz.Attempt{}, err
	}
	for _, at := range all {
		if at.ID == id {
			return at, nil
		}
	}
	return quiz.Attempt{}, fmt.Errorf("%w: attempt %s", storeerr.ErrNotFound, id)
}

// Update replaces the live attempt with the same id at its position. The
// write also collapses any repeated rows for other ids.
func (a *Attempts) Update(ctx context.Context, attempt quiz.Attempt) (quiz.Attempt, error) {
	if attempt.ID == "" {
		return quiz.Attempt{}, fmt.Errorf("%w: attempt without id", storeerr.ErrNotFound)
	}
	attempt = a.prepare(attempt)

	err := a.store.Mutate(ctx, storage.Attempts, func(t *csvrow.Table) (*csvrow.Table, error) {
		existing, err := reconcileAttempts(t)
		if err != nil {
			return nil, err
		}
		i := slices.IndexFunc(existing, func(at quiz.Attempt) bool { return at.ID == attempt.ID })
		if i < 0 {
			return nil, fmt.Errorf("%w: attempt %s", storeerr.ErrNotFound, attempt.ID)
		}
		existing[i] = attempt
		return attemptTable(existing), nil
	})
	if err != nil {
		return quiz.Attempt{}, err
	}
	a.opts.logger.Debug("attempt updated", zap.String("id", attempt.ID))
	return attempt, nil
}

// Insert appends attempt. An existing id fails with ErrDuplicateID and leaves
// the file untouched.
func (a *Attempts) Insert(ctx context.Context, attempt quiz.Attempt) (quiz.Attempt, error) {
	out, err := a.InsertBatch(ctx, []quiz.Attempt{attempt})
	if err != nil {
		return quiz.Attempt{}, err
	}
	return out[0], nil
}

// InsertBatch appends all attempts in one atomic write. A duplicate id,
// whether against the file or within the batch, rejects the whole batch.
func (a *Attempts) InsertBatch(ctx context.Context, batch []quiz.Attempt) ([]quiz.Attempt, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	prepared := make([]quiz.Attempt, len(batch))
	for i, at := range batch {
		prepared[i] = a.prepare(at)
	}

	err := a.store.Mutate(ctx, storage.Attempts, func(t *csvrow.Table) (*csvrow.Table, error) {
		existing, err := reconcileAttempts(t)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(existing)+len(prepared))
		for _, at := range existing {
			seen[at.ID] = true
		}
		for _, at := range prepared {
			if seen[at.ID] {
				return nil, fmt.Errorf("%w: attempt %s", storeerr.ErrDuplicateID, at.ID)
			}
			seen[at.ID] = true
		}
		return attemptTable(append(existing, prepared...)), nil
	})
	if err != nil {
		return nil, err
	}
	a.opts.logger.Debug("attempts inserted", zap.Int("count", len(prepared)))
	return prepared, nil
}

func (a *Attempts) prepare(at quiz.Attempt) quiz.Attempt {
	if at.ID == "" {
		at.ID = quiz.NewID()
	}
	if at.AttemptedAt.IsZero() {
		at.AttemptedAt = a.opts.now()
	}
	at.AttemptedAt = at.AttemptedAt.Truncate(timePrecision)
	if at.LoggedAt.IsZero() {
		at.LoggedAt = at.AttemptedAt
	}
	at.LoggedAt = at.LoggedAt.Truncate(timePrecision)
	if at.MistakeKind == "" || at.IsCorrect {
		at.MistakeKind = quiz.MistakeNone
	}
	return at
}

func reconcileAttempts(t *csvrow.Table) ([]quiz.Attempt, error) {
	decoded := make([]quiz.Attempt, 0, len(t.Rows))
	last := make(map[string]int)
	for _, row := range t.Rows {
		if row.IsBlank() {
			continue
		}
		at, err := quiz.DecodeAttempt(row)
		if err != nil {
			return nil, err
		}
		last[at.ID] = len(decoded)
		decoded = append(decoded, at)
	}

	out := make([]quiz.Attempt, 0, len(last))
	for i, at := range decoded {
		if last[at.ID] == i {
			out = append(out, at)
		}
	}
	return out, nil
}

func attemptTable(attempts []quiz.Attempt) *csvrow.Table {
	t := csvrow.NewTable(quiz.AttemptHeader)
	for _, at := range attempts {
		t.Append(quiz.EncodeAttempt(at))
	}
	return t
}
