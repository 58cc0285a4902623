// Package doctor inspects the raw items and attempts files for integrity
// problems without reconciling or modifying them. Each problem class is a
// Check; a DiagnosticRunner runs every registered check and collects the
// results.
package doctor

import "context"

// Severity says whether a failed result counts against the exit code.
type Severity string

const (
	// SeverityError marks data that makes loads fail or disagree with the
	// other file.
	SeverityError Severity = "error"
	// SeverityWarning marks harmless leftovers such as a trailing blank row.
	SeverityWarning Severity = "warning"
)

// CheckResult is one line of doctor output.
type CheckResult struct {
	Name       string   `json:"name"`
	Passed     bool     `json:"passed"`
	Severity   Severity `json:"severity,omitempty"`
	Details    string   `json:"details,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Check inspects a Source. It returns a single passing result when it finds
// nothing, otherwise one failing result per offending id or file.
type Check interface {
	Run(ctx context.Context, src *Source) []CheckResult
}

// DiagnosticReport is every result of a run, in check order.
type DiagnosticReport struct {
	Results []CheckResult `json:"results"`
}

// tally counts failed results by severity.
func (r *DiagnosticReport) tally() (errs, warns int) {
	for _, res := range r.Results {
		if res.Passed {
			continue
		}
		switch res.Severity {
		case SeverityError:
			errs++
		case SeverityWarning:
			warns++
		}
	}
	return errs, warns
}

// HasErrors reports whether any error-severity result failed.
func (r *DiagnosticReport) HasErrors() bool {
	errs, _ := r.tally()
	return errs > 0
}

// ErrorCount is the number of failed error-severity results.
func (r *DiagnosticReport) ErrorCount() int {
	errs, _ := r.tally()
	return errs
}

// WarningCount is the number of failed warning-severity results.
func (r *DiagnosticReport) WarningCount() int {
	_, warns := r.tally()
	return warns
}

// DiagnosticRunner runs checks in registration order. A failing check never
// stops the ones after it.
type DiagnosticRunner struct {
	checks []Check
}

// NewDiagnosticRunner returns a runner preloaded with checks.
func NewDiagnosticRunner(checks ...Check) *DiagnosticRunner {
	return &DiagnosticRunner{checks: checks}
}

// Register adds a check after those already registered.
func (d *DiagnosticRunner) Register(check Check) {
	d.checks = append(d.checks, check)
}

// RunAll runs every check against src.
func (d *DiagnosticRunner) RunAll(ctx context.Context, src *Source) DiagnosticReport {
	report := DiagnosticReport{}
	for _, check := range d.checks {
		report.Results = append(report.Results, check.Run(ctx, src)...)
	}
	return report
}

func passed(name string) []CheckResult {
	return []CheckResult{{Name: name, Passed: true}}
}
