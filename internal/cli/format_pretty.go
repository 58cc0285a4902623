package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/width"

	"github.com/leeovery/quizstore/internal/backup"
	"github.com/leeovery/quizstore/internal/quiz"
	"github.com/leeovery/quizstore/internal/repository"
)

// PrettyFormatter renders aligned columns for a terminal. Widths count
// East Asian wide characters as two cells.
type PrettyFormatter struct{}

// maxPromptWidth is the display width at which prompts are truncated in
// list output.
const maxPromptWidth = 40

const timeDisplay = "2006-01-02 15:04"

func (f *PrettyFormatter) FormatItemList(w io.Writer, items []quiz.Item) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No problems found.")
		return err
	}
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{it.ID, it.AnswerToken, it.Reading, strconv.Itoa(it.MissCount), truncate(it.PromptText, maxPromptWidth)}
	}
	return writeColumns(w, []string{"ID", "ANSWER", "READING", "MISS", "PROMPT"}, rows, map[int]bool{3: true})
}

// FormatItemDetail renders labelled fields, then the attempt history when
// there is one.
func (f *PrettyFormatter) FormatItemDetail(w io.Writer, d ItemDetail) error {
	it := d.Item
	fmt.Fprintf(w, "%-10s%s\n", "ID:", it.ID)
	fmt.Fprintf(w, "%-10s%s\n", "Prompt:", it.PromptText)
	fmt.Fprintf(w, "%-10s%s\n", "Answer:", it.AnswerToken)
	fmt.Fprintf(w, "%-10s%s\n", "Reading:", it.Reading)
	fmt.Fprintf(w, "%-10s%s\n", "Created:", it.CreatedAt.Local().Format(timeDisplay))
	fmt.Fprintf(w, "%-10s%d\n", "Misses:", it.MissCount)

	if len(d.Attempts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Attempts:")
		for _, a := range d.Attempts {
			fmt.Fprintf(w, "  %s  %s  %s\n", a.AttemptedAt.Local().Format(timeDisplay), mark(a.IsCorrect), describeMistake(a))
		}
	}
	return nil
}

func (f *PrettyFormatter) FormatAttemptList(w io.Writer, attempts []quiz.Attempt) error {
	if len(attempts) == 0 {
		_, err := fmt.Fprintln(w, "No attempts found.")
		return err
	}
	rows := make([][]string, len(attempts))
	for i, a := range attempts {
		rows[i] = []string{a.ID, a.ItemID, a.AttemptedAt.Local().Format(timeDisplay), mark(a.IsCorrect), describeMistake(a)}
	}
	return writeColumns(w, []string{"ID", "PROBLEM", "WHEN", "OK", "MISTAKE"}, rows, nil)
}

func (f *PrettyFormatter) FormatAttemptResult(w io.Writer, r AttemptResult) error {
	a := r.Attempt
	verdict := "correct"
	if !a.IsCorrect {
		verdict = "incorrect (" + string(a.MistakeKind) + ")"
	}
	if r.MissCount < 0 {
		_, err := fmt.Fprintf(w, "Recorded %s attempt %s for %s\n", verdict, a.ID, a.ItemID)
		return err
	}
	_, err := fmt.Fprintf(w, "Recorded %s attempt %s for %s (misses: %d)\n", verdict, a.ID, a.ItemID, r.MissCount)
	return err
}

// FormatStats renders totals, then a per-item table. Items whose counter
// disagrees with the attempt log show the replayed value in DRIFT.
func (f *PrettyFormatter) FormatStats(w io.Writer, r repository.Report) error {
	t := r.Totals
	nums := []int{t.Items, t.Attempts, t.Correct, t.Incorrect, t.OrphanedAttempt}
	numW := numWidth(nums)
	line := fmt.Sprintf("%%-12s%%%dd\n", numW)

	fmt.Fprintf(w, line, "Problems:", t.Items)
	fmt.Fprintf(w, line, "Attempts:", t.Attempts)
	fmt.Fprintf(w, line, "  Correct:", t.Correct)
	fmt.Fprintf(w, line, "  Incorrect:", t.Incorrect)
	fmt.Fprintf(w, "%-12s%*s\n", "Accuracy:", numW, percent(t.Accuracy))
	if t.OrphanedAttempt > 0 {
		fmt.Fprintf(w, line, "Orphaned:", t.OrphanedAttempt)
	}

	if len(r.Items) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	rows := make([][]string, len(r.Items))
	for i, s := range r.Items {
		drift := ""
		if s.Drift != 0 {
			drift = fmt.Sprintf("%+d (log says %d)", s.Drift, s.Expected)
		}
		rows[i] = []string{s.ItemID, s.AnswerToken, strconv.Itoa(s.MissCount), strconv.Itoa(s.Attempts), percent(s.Accuracy), drift}
	}
	return writeColumns(w, []string{"ID", "ANSWER", "MISS", "TRIES", "ACC", "DRIFT"}, rows, map[int]bool{2: true, 3: true, 4: true})
}

func (f *PrettyFormatter) FormatBackups(w io.Writer, entries []backup.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No backups found.")
		return err
	}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{e.Name, e.Created.Format("2006-01-02 15:04:05"), formatBytes(e.Size)}
	}
	return writeColumns(w, []string{"NAME", "CREATED", "SIZE"}, rows, map[int]bool{2: true})
}

func (f *PrettyFormatter) FormatBackupInfo(w io.Writer, info backup.Info) error {
	fmt.Fprintf(w, "%-12s%s\n", "Directory:", info.Dir)
	fmt.Fprintf(w, "%-12s%d\n", "Backups:", info.Count)
	fmt.Fprintf(w, "%-12s%s\n", "Total size:", formatBytes(info.TotalBytes))
	fmt.Fprintf(w, "%-12s%d days\n", "Retention:", info.KeepDays)
	return nil
}

func (f *PrettyFormatter) FormatMessage(w io.Writer, msg string) error {
	_, err := fmt.Fprintln(w, msg)
	return err
}

// writeColumns writes a header and rows separated by two spaces. Columns in
// right are right-aligned; the last column is never padded.
func writeColumns(w io.Writer, header []string, rows [][]string, right map[int]bool) error {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = displayWidth(h)
	}
	for _, r := range rows {
		for i, c := range r {
			widths[i] = max(widths[i], displayWidth(c))
		}
	}

	write := func(cells []string) error {
		var sb strings.Builder
		for i, c := range cells {
			if i > 0 {
				sb.WriteString("  ")
			}
			if i == len(cells)-1 && !right[i] {
				sb.WriteString(c)
				continue
			}
			sb.WriteString(pad(c, widths[i], right[i]))
		}
		_, err := fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
		return err
	}

	if err := write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := write(r); err != nil {
			return err
		}
	}
	return nil
}

// displayWidth returns the terminal cell width of s.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func pad(s string, w int, right bool) string {
	gap := w - displayWidth(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

// truncate shortens s to at most w cells, ending in an ellipsis when cut.
func truncate(s string, w int) string {
	if displayWidth(s) <= w {
		return s
	}
	var sb strings.Builder
	used := 0
	for _, r := range s {
		rw := displayWidth(string(r))
		if used+rw > w-1 {
			break
		}
		sb.WriteRune(r)
		used += rw
	}
	return sb.String() + "…"
}

// numWidth returns the width of the widest number, at least 3.
func numWidth(nums []int) int {
	w := 3
	for _, n := range nums {
		w = max(w, len(strconv.Itoa(n)))
	}
	return w
}

func percent(r float64) string {
	return strconv.FormatFloat(r*100, 'f', 0, 64) + "%"
}

func mark(correct bool) string {
	if correct {
		return "✓"
	}
	return "✗"
}

func describeMistake(a quiz.Attempt) string {
	if a.IsCorrect || a.MistakeKind == quiz.MistakeNone {
		return a.Memo
	}
	if a.Memo == "" {
		return string(a.MistakeKind)
	}
	return string(a.MistakeKind) + ": " + a.Memo
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
