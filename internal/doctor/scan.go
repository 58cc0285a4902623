package doctor

import (
	"context"
	"path/filepath"
	"slices"

	"github.com/leeovery/quizstore/internal/quiz"
)

// Category names used by Report.Categories.
const (
	CategoryDuplicateItemIDs    = "duplicate_item_ids"
	CategoryDuplicateAttemptIDs = "duplicate_attempt_ids"
	CategoryOrphanedReferences  = "orphaned_references"
	CategoryInvalidBooleans     = "invalid_booleans"
	CategoryMalformedFiles      = "malformed_files"
)

// Report is the structured result of a scan.
type Report struct {
	DuplicateItemIDs    []string `json:"duplicate_item_ids"`
	DuplicateAttemptIDs []string `json:"duplicate_attempt_ids"`
	OrphanedAttempts    []Orphan `json:"orphaned_attempts"`
	// InvalidBooleans lists the ids of attempts with a bad is_correct value.
	InvalidBooleans []string `json:"invalid_booleans"`
	// MalformedFiles names the files that are not well-formed CSV.
	MalformedFiles []string `json:"malformed_files"`
	// TotalItems and TotalAttempts count distinct non-empty ids.
	TotalItems    int `json:"total_items"`
	TotalAttempts int `json:"total_attempts"`

	// Diagnostics holds the per-check results, warnings included.
	Diagnostics DiagnosticReport `json:"diagnostics"`
}

// HasIssues reports whether any category is non-empty. Warnings are not
// issues.
func (r Report) HasIssues() bool {
	return len(r.DuplicateItemIDs) > 0 ||
		len(r.DuplicateAttemptIDs) > 0 ||
		len(r.OrphanedAttempts) > 0 ||
		len(r.InvalidBooleans) > 0 ||
		len(r.MalformedFiles) > 0
}

// Categories maps each non-empty category to its offending ids. Orphaned
// references are listed by the missing item id, once each.
func (r Report) Categories() map[string][]string {
	out := make(map[string][]string)
	if len(r.DuplicateItemIDs) > 0 {
		out[CategoryDuplicateItemIDs] = r.DuplicateItemIDs
	}
	if len(r.DuplicateAttemptIDs) > 0 {
		out[CategoryDuplicateAttemptIDs] = r.DuplicateAttemptIDs
	}
	if len(r.OrphanedAttempts) > 0 {
		var refs []string
		for _, o := range r.OrphanedAttempts {
			if !slices.Contains(refs, o.ItemID) {
				refs = append(refs, o.ItemID)
			}
		}
		out[CategoryOrphanedReferences] = refs
	}
	if len(r.InvalidBooleans) > 0 {
		out[CategoryInvalidBooleans] = r.InvalidBooleans
	}
	if len(r.MalformedFiles) > 0 {
		out[CategoryMalformedFiles] = r.MalformedFiles
	}
	return out
}

// Option configures a scan.
type Option func(*Source)

// WithIndex enables the index staleness check against the index at path.
func WithIndex(path string) Option {
	return func(s *Source) {
		s.IndexPath = path
	}
}

// DefaultRunner returns a runner with every built-in check registered.
func DefaultRunner() *DiagnosticRunner {
	return NewDiagnosticRunner(
		&CSVSyntaxCheck{},
		&DuplicateItemIDCheck{},
		&DuplicateAttemptIDCheck{},
		&OrphanedAttemptCheck{},
		&BooleanLiteralCheck{},
		&TrailingBlankRowCheck{},
		&IndexStalenessCheck{},
	)
}

// Scan reads both files without reconciling them and reports every anomaly.
// It never modifies anything.
func Scan(ctx context.Context, itemsPath, attemptsPath string, opts ...Option) (Report, error) {
	src, err := LoadSource(itemsPath, attemptsPath)
	if err != nil {
		return Report{}, err
	}
	for _, opt := range opts {
		opt(src)
	}
	return ScanSource(ctx, src), nil
}

// ScanSource runs the default checks over already loaded content.
func ScanSource(ctx context.Context, src *Source) Report {
	r := Report{
		TotalItems:    len(src.itemIDs()),
		TotalAttempts: countIDs(src),
		Diagnostics:   DefaultRunner().RunAll(ctx, src),
	}
	for _, g := range findDuplicates(src.Items) {
		r.DuplicateItemIDs = append(r.DuplicateItemIDs, g.id)
	}
	for _, g := range findDuplicates(src.Attempts) {
		r.DuplicateAttemptIDs = append(r.DuplicateAttemptIDs, g.id)
	}
	r.OrphanedAttempts = findOrphans(src)
	for _, b := range findInvalidBooleans(src) {
		r.InvalidBooleans = append(r.InvalidBooleans, b.attemptID)
	}
	for _, se := range src.SyntaxErrors {
		r.MalformedFiles = append(r.MalformedFiles, filepath.Base(se.Path))
	}
	return r
}

func countIDs(src *Source) int {
	ids := make(map[string]struct{})
	for _, row := range src.Attempts.Rows {
		if id, _ := row.Get(quiz.ColID); id != "" {
			ids[id] = struct{}{}
		}
	}
	return len(ids)
}
