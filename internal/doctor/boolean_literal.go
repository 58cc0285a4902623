package doctor

import (
	"context"
	"fmt"

	"github.com/leeovery/quizstore/internal/csvrow"
	"github.com/leeovery/quizstore/internal/quiz"
)

type invalidBoolean struct {
	attemptID string
	line      int
	value     string
}

func findInvalidBooleans(src *Source) []invalidBoolean {
	var bad []invalidBoolean
	nonBlank(src.Attempts, func(row csvrow.Row) {
		v, _ := row.Get(quiz.ColIsCorrect)
		if quiz.IsBoolLiteral(v) {
			return
		}
		id, _ := row.Get(quiz.ColID)
		bad = append(bad, invalidBoolean{attemptID: id, line: row.Line, value: v})
	})
	return bad
}

// BooleanLiteralCheck reports attempts whose is_correct value is not one of
// True, False, true, false, 1 or 0. Such rows make every repository load
// fail.
type BooleanLiteralCheck struct{}

func (c *BooleanLiteralCheck) Run(_ context.Context, src *Source) []CheckResult {
	const name = "Boolean literals"
	bad := findInvalidBooleans(src)
	if len(bad) == 0 {
		return passed(name)
	}
	results := make([]CheckResult, len(bad))
	for i, b := range bad {
		results[i] = CheckResult{
			Name:       name,
			Passed:     false,
			Severity:   SeverityError,
			Details:    fmt.Sprintf("attempt %s (line %d) has is_correct %q", b.attemptID, b.line, b.value),
			Suggestion: "Manual fix required: set is_correct to True or False",
		}
	}
	return results
}
