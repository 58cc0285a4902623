package doctor

import (
	"context"
	"fmt"
	"path/filepath"
)

// CSVSyntaxCheck reports each data file that only parses with stray quotes
// taken as literal text. The remaining checks see the lenient reading.
type CSVSyntaxCheck struct{}

func (c *CSVSyntaxCheck) Run(_ context.Context, src *Source) []CheckResult {
	const name = "CSV syntax"
	if len(src.SyntaxErrors) == 0 {
		return passed(name)
	}
	results := make([]CheckResult, 0, len(src.SyntaxErrors))
	for _, se := range src.SyntaxErrors {
		results = append(results, CheckResult{
			Name:       name,
			Passed:     false,
			Severity:   SeverityError,
			Details:    fmt.Sprintf("%s: %v", filepath.Base(se.Path), se.Err),
			Suggestion: "Manual fix required",
		})
	}
	return results
}
