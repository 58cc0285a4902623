package doctor

import (
	"context"
	"fmt"
	"strings"

	"github.com/leeovery/quizstore/internal/csvrow"
	"github.com/leeovery/quizstore/internal/quiz"
)

// duplicateGroup is one id that appears on more than one row.
type duplicateGroup struct {
	id    string
	lines []int
}

// findDuplicates groups non-blank rows by exact id in first-seen order and
// returns the groups with more than one row. Rows with an empty id are
// skipped.
func findDuplicates(t *csvrow.Table) []duplicateGroup {
	lines := make(map[string][]int)
	var order []string
	nonBlank(t, func(row csvrow.Row) {
		id, _ := row.Get(quiz.ColID)
		if id == "" {
			return
		}
		if _, seen := lines[id]; !seen {
			order = append(order, id)
		}
		lines[id] = append(lines[id], row.Line)
	})

	var groups []duplicateGroup
	for _, id := range order {
		if len(lines[id]) > 1 {
			groups = append(groups, duplicateGroup{id: id, lines: lines[id]})
		}
	}
	return groups
}

// DuplicateItemIDCheck reports item ids that appear on more than one row.
type DuplicateItemIDCheck struct{}

func (c *DuplicateItemIDCheck) Run(_ context.Context, src *Source) []CheckResult {
	return duplicateResults("Item ID uniqueness", findDuplicates(src.Items),
		"Run `quizstore repair` to merge duplicate items")
}

// DuplicateAttemptIDCheck reports attempt ids that appear on more than one
// row.
type DuplicateAttemptIDCheck struct{}

func (c *DuplicateAttemptIDCheck) Run(_ context.Context, src *Source) []CheckResult {
	return duplicateResults("Attempt ID uniqueness", findDuplicates(src.Attempts),
		"Run `quizstore repair` to keep the latest copy of each attempt")
}

func duplicateResults(name string, groups []duplicateGroup, suggestion string) []CheckResult {
	if len(groups) == 0 {
		return passed(name)
	}
	results := make([]CheckResult, len(groups))
	for i, g := range groups {
		parts := make([]string, len(g.lines))
		for j, line := range g.lines {
			parts[j] = fmt.Sprintf("line %d", line)
		}
		results[i] = CheckResult{
			Name:       name,
			Passed:     false,
			Severity:   SeverityError,
			Details:    fmt.Sprintf("Duplicate ID %s: %s", g.id, strings.Join(parts, ", ")),
			Suggestion: suggestion,
		}
	}
	return results
}
