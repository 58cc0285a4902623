// Package reconcile is the offline repair pass for the two data files. It
// merges duplicate item rows, drops attempts that point at no surviving item,
// collapses duplicate attempt ids, and trims a trailing blank row, taking a
// backup of both files before anything is rewritten.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/leeovery/quizstore/internal/csvrow"
	"github.com/leeovery/quizstore/internal/quiz"
	"github.com/leeovery/quizstore/internal/storage"
)

// Snapshotter copies files aside before they are rewritten.
// *backup.Manager satisfies it.
type Snapshotter interface {
	Snapshot(files ...string) ([]string, error)
}

// Writer persists a repaired table.
type Writer interface {
	WriteTable(path string, t *csvrow.Table) error
}

// Merge records one item id whose rows were folded into a single row.
type Merge struct {
	ID        string `json:"id"`
	Rows      int    `json:"rows"`
	MissCount int    `json:"miss_count"`
}

// DroppedAttempt is an attempt removed because its item does not survive.
type DroppedAttempt struct {
	AttemptID string `json:"attempt_id"`
	ItemID    string `json:"item_id"`
	Line      int    `json:"line"`
}

// Summary describes what a repair pass did, or would do in a dry run.
type Summary struct {
	DryRun bool `json:"dry_run"`

	ItemsBefore    int `json:"items_before"`
	ItemsAfter     int `json:"items_after"`
	AttemptsBefore int `json:"attempts_before"`
	AttemptsAfter  int `json:"attempts_after"`

	Merged               []Merge          `json:"merged,omitempty"`
	DroppedItemRows      []int            `json:"dropped_item_rows,omitempty"`
	DroppedAttempts      []DroppedAttempt `json:"dropped_attempts,omitempty"`
	DroppedBlankAttempts []int            `json:"dropped_blank_attempt_rows,omitempty"`
	CollapsedAttempts    []string         `json:"collapsed_attempts,omitempty"`
	SkippedRows          int              `json:"skipped_rows"`

	ItemsTrimmed    bool `json:"items_trimmed"`
	AttemptsTrimmed bool `json:"attempts_trimmed"`

	Backups []string `json:"backups,omitempty"`
}

// Changed reports whether the pass altered either file.
func (s Summary) Changed() bool {
	return s.ItemsBefore != s.ItemsAfter ||
		s.AttemptsBefore != s.AttemptsAfter ||
		len(s.Merged) > 0
}

// String renders the before/after row counts.
func (s Summary) String() string {
	return fmt.Sprintf("problems: %d -> %d\nattempts: %d -> %d",
		s.ItemsBefore, s.ItemsAfter, s.AttemptsBefore, s.AttemptsAfter)
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger for skipped rows and repair progress.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithLocker makes Run hold the store's exclusive lock for its whole duration.
func WithLocker(l storage.Locker) Option {
	return func(r *Reconciler) { r.locker = l }
}

// WithWriter replaces the file writer. DryRun uses a no-op writer.
func WithWriter(w Writer) Option {
	return func(r *Reconciler) { r.writer = w }
}

// Reconciler repairs a pair of data files in place.
type Reconciler struct {
	itemsPath    string
	attemptsPath string
	backups      Snapshotter
	locker       storage.Locker
	writer       Writer
	logger       *zap.Logger
}

// New creates a Reconciler for the given files. backups must not be nil.
func New(itemsPath, attemptsPath string, backups Snapshotter, opts ...Option) *Reconciler {
	r := &Reconciler{
		itemsPath:    itemsPath,
		attemptsPath: attemptsPath,
		backups:      backups,
		writer:       FileWriter{},
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ForStore creates a Reconciler over a FileStore's files that holds the
// store's lock while it runs.
func ForStore(s *storage.FileStore, backups Snapshotter, opts ...Option) *Reconciler {
	opts = append([]Option{WithLocker(s)}, opts...)
	return New(s.Path(storage.Items), s.Path(storage.Attempts), backups, opts...)
}

// Run repairs both files. Nothing is backed up or written when the files are
// already clean. A failed backup aborts before either file is touched.
func (r *Reconciler) Run(ctx context.Context) (Summary, error) {
	return r.run(ctx, r.writer, false)
}

// DryRun computes the Summary Run would produce without backing up or
// writing anything.
func (r *Reconciler) DryRun(ctx context.Context) (Summary, error) {
	return r.run(ctx, discardWriter{}, true)
}

func (r *Reconciler) run(ctx context.Context, w Writer, dry bool) (Summary, error) {
	if r.locker != nil {
		unlock, err := r.locker.LockExclusive(ctx)
		if err != nil {
			return Summary{}, err
		}
		defer unlock()
	}

	items, err := csvrow.ReadFileLenient(r.itemsPath)
	if err != nil {
		return Summary{}, err
	}
	attempts, err := csvrow.ReadFileLenient(r.attemptsPath)
	if errors.Is(err, os.ErrNotExist) {
		attempts, err = csvrow.NewTable(quiz.AttemptHeader), nil
	}
	if err != nil {
		return Summary{}, err
	}

	sum := Plan(items, attempts, r.logger)
	sum.DryRun = dry
	if !sum.Changed() {
		r.logger.Info("data files already consistent")
		return sum, nil
	}

	if !dry {
		if r.backups == nil {
			return sum, errors.New("reconcile: no backup destination configured")
		}
		paths, err := r.backups.Snapshot(r.itemsPath, r.attemptsPath)
		if err != nil {
			return sum, fmt.Errorf("backing up before repair: %w", err)
		}
		sum.Backups = paths
	}

	if err := w.WriteTable(r.itemsPath, items); err != nil {
		return sum, err
	}
	if err := w.WriteTable(r.attemptsPath, attempts); err != nil {
		return sum, fmt.Errorf("attempts not rewritten, backups in %s: %w", strings.Join(sum.Backups, ", "), err)
	}
	r.logger.Info("data files repaired",
		zap.Int("items", sum.ItemsAfter), zap.Int("attempts", sum.AttemptsAfter))
	return sum, nil
}

// Plan repairs items and attempts in memory and returns what changed. Both
// tables are modified in place.
func Plan(items, attempts *csvrow.Table, logger *zap.Logger) Summary {
	if logger == nil {
		logger = zap.NewNop()
	}
	sum := Summary{
		ItemsBefore:    len(items.Rows),
		AttemptsBefore: len(attempts.Rows),
	}

	sum.ItemsTrimmed = items.DropTrailingBlank()
	survivors := mergeItems(items, &sum, logger)
	sum.ItemsAfter = len(items.Rows)

	sum.AttemptsTrimmed = attempts.DropTrailingBlank()
	dropOrphans(attempts, survivors, &sum)
	collapseAttempts(attempts, &sum)
	sum.AttemptsAfter = len(attempts.Rows)

	return sum
}

// mergeItems folds rows sharing an id into the first such row, whose
// miss_count becomes the sum over the group. Ids are compared exactly, as
// they are everywhere else; only a blank id drops the row. It returns the
// surviving ids.
func mergeItems(t *csvrow.Table, sum *Summary, logger *zap.Logger) map[string]struct{} {
	missIdx := t.EnsureColumn(quiz.MissCountColumns...)
	missCol := t.Header[missIdx]

	type group struct {
		pos   int
		rows  int
		total int
	}
	groups := make(map[string]*group)
	var order []string
	var kept []csvrow.Row

	for _, row := range t.Rows {
		id, _ := row.Get(quiz.ColID)
		if strings.TrimSpace(id) == "" {
			sum.DroppedItemRows = append(sum.DroppedItemRows, row.Line)
			continue
		}

		raw, _ := row.Get(missCol)
		n, err := quiz.ParseMissCount(raw)
		if err != nil {
			logger.Warn("skipping unparseable miss count",
				zap.String("id", id), zap.Int("line", row.Line), zap.Error(err))
			sum.SkippedRows++
			n = 0
		}

		g, ok := groups[id]
		if !ok {
			groups[id] = &group{pos: len(kept), rows: 1, total: n}
			order = append(order, id)
			kept = append(kept, row)
			continue
		}
		g.rows++
		g.total += n
	}
	t.Rows = kept

	survivors := make(map[string]struct{}, len(order))
	for _, id := range order {
		survivors[id] = struct{}{}
		g := groups[id]
		if g.rows < 2 {
			continue
		}
		t.Set(g.pos, missIdx, strconv.Itoa(g.total))
		sum.Merged = append(sum.Merged, Merge{ID: id, Rows: g.rows, MissCount: g.total})
		logger.Info("merged duplicate item rows", zap.String("id", id), zap.Int("rows", g.rows))
	}
	return survivors
}

// dropOrphans removes attempts whose item id is not among survivors. An empty
// item id references nothing and is dropped too. Blank rows are counted
// separately from orphans.
func dropOrphans(t *csvrow.Table, survivors map[string]struct{}, sum *Summary) {
	kept := t.Rows[:0]
	for _, row := range t.Rows {
		itemID, _, _ := row.Lookup(quiz.ItemIDColumns...)
		if _, ok := survivors[itemID]; ok {
			kept = append(kept, row)
			continue
		}
		if row.IsBlank() {
			sum.DroppedBlankAttempts = append(sum.DroppedBlankAttempts, row.Line)
			continue
		}
		id, _ := row.Get(quiz.ColID)
		sum.DroppedAttempts = append(sum.DroppedAttempts, DroppedAttempt{AttemptID: id, ItemID: itemID, Line: row.Line})
	}
	t.Rows = kept
}

// collapseAttempts keeps only the last row for each attempt id, at that
// row's position, matching how attempts are read.
func collapseAttempts(t *csvrow.Table, sum *Summary) {
	last := make(map[string]int, len(t.Rows))
	for i, row := range t.Rows {
		if id, _ := row.Get(quiz.ColID); id != "" {
			last[id] = i
		}
	}

	seen := make(map[string]bool)
	kept := make([]csvrow.Row, 0, len(t.Rows))
	for i, row := range t.Rows {
		id, _ := row.Get(quiz.ColID)
		if id == "" || last[id] == i {
			kept = append(kept, row)
			continue
		}
		if !seen[id] {
			seen[id] = true
			sum.CollapsedAttempts = append(sum.CollapsedAttempts, id)
		}
	}
	t.Rows = kept
}
