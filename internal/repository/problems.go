package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/leeovery/quizstore/internal/csvrow"
	"github.com/leeovery/quizstore/internal/quiz"
	"github.com/leeovery/quizstore/internal/storage"
	"github.com/leeovery/quizstore/internal/storeerr"
)

// Problems owns the item collection.
type Problems struct {
	store storage.Store
	opts  options
}

// NewProblems returns a Problems repository backed by store.
func NewProblems(store storage.Store, opts ...Option) *Problems {
	return &Problems{store: store, opts: newOptions(opts)}
}

// Load returns the reconciled items sorted by created_at ascending. When an
// id appears on several rows the row with the latest created_at wins, and on
// equal timestamps the later row in the file wins. The file is not modified.
func (p *Problems) Load(ctx context.Context) ([]quiz.Item, error) {
	t, err := p.store.Read(ctx, storage.Items)
	if err != nil {
		return nil, err
	}
	return reconcileItems(t)
}

// Get returns the live item with the given id.
func (p *Problems) Get(ctx context.Context, id string) (quiz.Item, error) {
	items, err := p.Load(ctx)
	if err != nil {
		return quiz.Item{}, err
	}
	for _, it := range items {
		if it.ID == id {
			return it, nil
		}
	}
	return quiz.Item{}, fmt.Errorf("%w: item %s", storeerr.ErrNotFound, id)
}

// Insert validates item and adds it to the collection. An empty id or
// created_at is filled in, and created_at is truncated to the precision the
// file stores. An existing id fails with ErrDuplicateID and leaves the file
// untouched.
func (p *Problems) Insert(ctx context.Context, item quiz.Item) (quiz.Item, error) {
	if item.ID == "" {
		item.ID = quiz.NewID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = p.opts.now()
	}
	item.CreatedAt = item.CreatedAt.Truncate(timePrecision)
	item, err := quiz.Validate(item)
	if err != nil {
		return quiz.Item{}, err
	}

	err = p.store.Mutate(ctx, storage.Items, func(t *csvrow.Table) (*csvrow.Table, error) {
		items, err := reconcileItems(t)
		if err != nil {
			return nil, err
		}
		if slices.ContainsFunc(items, func(it quiz.Item) bool { return it.ID == item.ID }) {
			return nil, fmt.Errorf("%w: item %s", storeerr.ErrDuplicateID, item.ID)
		}
		return itemTable(append(items, item)), nil
	})
	if err != nil {
		return quiz.Item{}, err
	}
	p.opts.logger.Debug("item inserted", zap.String("id", item.ID))
	return item, nil
}

// Update validates item and replaces the live record with the same id.
func (p *Problems) Update(ctx context.Context, item quiz.Item) (quiz.Item, error) {
	item.CreatedAt = item.CreatedAt.Truncate(timePrecision)
	item, err := quiz.Validate(item)
	if err != nil {
		return quiz.Item{}, err
	}
	return p.modify(ctx, item.ID, func(it *quiz.Item) {
		*it = item
	})
}

// AdjustMissCount adds delta to the item's miss_count, clamping at zero, and
// returns the updated item. The read and write happen under one lock.
func (p *Problems) AdjustMissCount(ctx context.Context, id string, delta int) (quiz.Item, error) {
	return p.modify(ctx, id, func(it *quiz.Item) {
		it.MissCount = max(it.MissCount+delta, 0)
	})
}

func (p *Problems) modify(ctx context.Context, id string, fn func(*quiz.Item)) (quiz.Item, error) {
	var updated quiz.Item
	err := p.store.Mutate(ctx, storage.Items, func(t *csvrow.Table) (*csvrow.Table, error) {
		items, err := reconcileItems(t)
		if err != nil {
			return nil, err
		}
		i := slices.IndexFunc(items, func(it quiz.Item) bool { return it.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("%w: item %s", storeerr.ErrNotFound, id)
		}
		fn(&items[i])
		updated = items[i]
		return itemTable(items), nil
	})
	if err != nil {
		return quiz.Item{}, err
	}
	p.opts.logger.Debug("item updated", zap.String("id", id), zap.Int("miss_count", updated.MissCount))
	return updated, nil
}

// DeleteOne removes the first raw row whose id matches. Later rows with the
// same id are kept, so a duplicated item can be thinned one copy at a time.
// No match is a successful no-op and the file is not rewritten. It reports
// whether a row was removed.
func (p *Problems) DeleteOne(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := p.store.Mutate(ctx, storage.Items, func(t *csvrow.Table) (*csvrow.Table, error) {
		i := slices.IndexFunc(t.Rows, func(r csvrow.Row) bool {
			v, _ := r.Get(quiz.ColID)
			return v == id
		})
		if i < 0 {
			return nil, nil
		}
		t.Rows = slices.Delete(t.Rows, i, i+1)
		removed = true
		return t, nil
	})
	if err != nil {
		return false, err
	}
	if removed {
		p.opts.logger.Debug("item row deleted", zap.String("id", id))
	}
	return removed, nil
}

// Search returns items whose prompt, answer or reading contains query,
// ignoring case. Kana in the query match either script.
func (p *Problems) Search(ctx context.Context, query string) ([]quiz.Item, error) {
	items, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return items, nil
	}
	q := strings.ToLower(query)
	reading := quiz.NormalizeReading(query)

	var out []quiz.Item
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.PromptText), q) ||
			strings.Contains(strings.ToLower(it.AnswerToken), q) ||
			strings.Contains(it.Reading, reading) {
			out = append(out, it)
		}
	}
	return out, nil
}

// SortByMissCount returns a copy of items ordered by miss_count descending,
// keeping load order among equal counts. A positive limit truncates the
// result.
func SortByMissCount(items []quiz.Item, limit int) []quiz.Item {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b quiz.Item) int {
		return cmp.Compare(b.MissCount, a.MissCount)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type rankedItem struct {
	item quiz.Item
	pos  int
}

// reconcileItems decodes every non-blank row and keeps one item per id. Any
// row that fails to decode fails the whole load.
func reconcileItems(t *csvrow.Table) ([]quiz.Item, error) {
	byID := make(map[string]rankedItem)
	for pos, row := range t.Rows {
		if row.IsBlank() {
			continue
		}
		it, err := quiz.DecodeItem(row)
		if err != nil {
			return nil, err
		}
		cur, ok := byID[it.ID]
		if ok && it.CreatedAt.Before(cur.item.CreatedAt) {
			continue
		}
		byID[it.ID] = rankedItem{item: it, pos: pos}
	}

	ranked := make([]rankedItem, 0, len(byID))
	for _, r := range byID {
		ranked = append(ranked, r)
	}
	slices.SortFunc(ranked, func(a, b rankedItem) int {
		if c := a.item.CreatedAt.Compare(b.item.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})

	items := make([]quiz.Item, len(ranked))
	for i, r := range ranked {
		items[i] = r.item
	}
	return items, nil
}

func itemTable(items []quiz.Item) *csvrow.Table {
	t := csvrow.NewTable(quiz.ItemHeader)
	for _, it := range items {
		t.Append(quiz.EncodeItem(it))
	}
	return t
}
