package doctor

import (
	"context"
	"fmt"
	"path/filepath"
)

// TrailingBlankRowCheck warns when either file ends with an all-blank row,
// the artifact naive appenders leave behind. Loads skip such rows, so it is
// not an error.
type TrailingBlankRowCheck struct{}

func (c *TrailingBlankRowCheck) Run(_ context.Context, src *Source) []CheckResult {
	const name = "Trailing blank rows"
	var results []CheckResult
	if src.Items.TrailingBlank() {
		results = append(results, blankRowResult(name, src.ItemsPath))
	}
	if src.Attempts.TrailingBlank() {
		results = append(results, blankRowResult(name, src.AttemptsPath))
	}
	if len(results) == 0 {
		return passed(name)
	}
	return results
}

func blankRowResult(name, path string) CheckResult {
	return CheckResult{
		Name:       name,
		Passed:     false,
		Severity:   SeverityWarning,
		Details:    fmt.Sprintf("%s ends with a blank row", filepath.Base(path)),
		Suggestion: "Run `quizstore repair` to trim it",
	}
}
