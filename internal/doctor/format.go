package doctor

import (
	"fmt"
	"io"
)

// marker is the leading symbol of a result line.
func marker(r CheckResult) string {
	switch {
	case r.Passed:
		return "✓"
	case r.Severity == SeverityWarning:
		return "!"
	default:
		return "✗"
	}
}

// FormatReport writes one line per result, the suggestion for each failure
// on the line below it, and a closing count of error-severity failures.
func FormatReport(w io.Writer, report DiagnosticReport) {
	for _, r := range report.Results {
		if r.Passed {
			fmt.Fprintf(w, "%s %s: OK\n", marker(r), r.Name)
			continue
		}
		fmt.Fprintf(w, "%s %s: %s\n", marker(r), r.Name, r.Details)
		if r.Suggestion != "" {
			fmt.Fprintf(w, "  → %s\n", r.Suggestion)
		}
	}
	if len(report.Results) > 0 {
		fmt.Fprintln(w)
	}

	switch n := report.ErrorCount(); n {
	case 0:
		fmt.Fprintln(w, "No issues found.")
	case 1:
		fmt.Fprintln(w, "1 issue found.")
	default:
		fmt.Fprintf(w, "%d issues found.\n", n)
	}
}

// ExitCode is 1 when the report holds an error-severity failure, else 0.
func ExitCode(report DiagnosticReport) int {
	if report.HasErrors() {
		return 1
	}
	return 0
}
