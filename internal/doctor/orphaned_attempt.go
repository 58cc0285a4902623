package doctor

import (
	"context"
	"fmt"

	"github.com/leeovery/quizstore/internal/csvrow"
	"github.com/leeovery/quizstore/internal/quiz"
)

// Orphan is an attempt whose item_id matches no item row.
type Orphan struct {
	AttemptID string `json:"attempt_id"`
	ItemID    string `json:"item_id"`
	Line      int    `json:"line"`
}

// findOrphans returns attempts referencing an item id absent from every raw
// item row. Attempts with an empty item_id reference nothing and are not
// reported.
func findOrphans(src *Source) []Orphan {
	known := src.itemIDs()
	var orphans []Orphan
	nonBlank(src.Attempts, func(row csvrow.Row) {
		itemID, _, _ := row.Lookup(quiz.ItemIDColumns...)
		if itemID == "" {
			return
		}
		if _, ok := known[itemID]; ok {
			return
		}
		id, _ := row.Get(quiz.ColID)
		orphans = append(orphans, Orphan{AttemptID: id, ItemID: itemID, Line: row.Line})
	})
	return orphans
}

// OrphanedAttemptCheck reports attempts whose item does not exist. Each
// orphan is reported individually.
type OrphanedAttemptCheck struct{}

func (c *OrphanedAttemptCheck) Run(_ context.Context, src *Source) []CheckResult {
	const name = "Orphaned attempts"
	orphans := findOrphans(src)
	if len(orphans) == 0 {
		return passed(name)
	}
	results := make([]CheckResult, len(orphans))
	for i, o := range orphans {
		results[i] = CheckResult{
			Name:       name,
			Passed:     false,
			Severity:   SeverityError,
			Details:    fmt.Sprintf("attempt %s (line %d) references non-existent item %s", o.AttemptID, o.Line, o.ItemID),
			Suggestion: "Run `quizstore repair` to drop orphaned attempts",
		}
	}
	return results
}
