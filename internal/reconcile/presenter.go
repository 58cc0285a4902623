package reconcile

import (
	"fmt"
	"io"
)

// WriteHeader prints the repair header line, marking dry runs.
func WriteHeader(w io.Writer, dryRun bool) {
	if dryRun {
		fmt.Fprintln(w, "Repairing data files... [dry-run]")
		return
	}
	fmt.Fprintln(w, "Repairing data files...")
}

// WriteChanges prints one indented line per change.
func WriteChanges(w io.Writer, s Summary) {
	if s.ItemsTrimmed {
		fmt.Fprintln(w, "  ✓ Trimmed trailing blank row from problems")
	}
	for _, line := range s.DroppedItemRows {
		fmt.Fprintf(w, "  ✓ Dropped problem row without id (line %d)\n", line)
	}
	for _, m := range s.Merged {
		fmt.Fprintf(w, "  ✓ Merged %d rows of %s (miss_count %d)\n", m.Rows, m.ID, m.MissCount)
	}
	if s.AttemptsTrimmed {
		fmt.Fprintln(w, "  ✓ Trimmed trailing blank row from attempts")
	}
	for _, d := range s.DroppedAttempts {
		fmt.Fprintf(w, "  ✓ Dropped attempt %s referencing missing problem %q (line %d)\n", d.AttemptID, d.ItemID, d.Line)
	}
	for _, line := range s.DroppedBlankAttempts {
		fmt.Fprintf(w, "  ✓ Dropped blank attempt row (line %d)\n", line)
	}
	for _, id := range s.CollapsedAttempts {
		fmt.Fprintf(w, "  ✓ Collapsed duplicate attempt %s\n", id)
	}
	if s.SkippedRows > 0 {
		fmt.Fprintf(w, "  ! %d miss_count value(s) could not be parsed and counted as 0\n", s.SkippedRows)
	}
}

// WriteSummary prints the backups taken and the before/after counts,
// preceded by a blank line.
func WriteSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w)
	for _, b := range s.Backups {
		fmt.Fprintf(w, "Backup: %s\n", b)
	}
	if !s.Changed() {
		fmt.Fprintln(w, "Nothing to repair.")
	}
	fmt.Fprintln(w, s.String())
}

// Present renders the complete repair output.
func Present(w io.Writer, s Summary) {
	WriteHeader(w, s.DryRun)
	WriteChanges(w, s)
	WriteSummary(w, s)
}
