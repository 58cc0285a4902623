package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	toon "github.com/toon-format/toon-go"

	"github.com/leeovery/quizstore/internal/backup"
	"github.com/leeovery/quizstore/internal/quiz"
	"github.com/leeovery/quizstore/internal/repository"
)

// ToonFormatter renders TOON (Token-Oriented Object Notation), the compact
// tabular format intended for scripts and agents.
type ToonFormatter struct{}

var (
	itemFields    = []string{"id", "prompt_text", "answer_token", "reading", "created_at", "miss_count"}
	attemptFields = []string{"id", "item_id", "attempted_at", "is_correct", "mistake_kind", "memo"}
	backupFields  = []string{"name", "source", "created", "size"}
	statFields    = []string{"item_id", "answer_token", "miss_count", "attempts", "correct", "incorrect", "accuracy", "expected_miss_count", "drift"}
)

func itemValues(it quiz.Item) []any {
	return []any{it.ID, it.PromptText, it.AnswerToken, it.Reading, quiz.FormatTime(it.CreatedAt), it.MissCount}
}

func attemptValues(a quiz.Attempt) []any {
	return []any{a.ID, a.ItemID, quiz.FormatTime(a.AttemptedAt), quiz.FormatBool(a.IsCorrect), string(a.MistakeKind), a.Memo}
}

// FormatItemList renders items[N]{...}: followed by one row per item.
func (f *ToonFormatter) FormatItemList(w io.Writer, items []quiz.Item) error {
	rows := make([][]any, len(items))
	for i, it := range items {
		rows[i] = itemValues(it)
	}
	return writeToonTable(w, "items", itemFields, rows)
}

// FormatItemDetail renders an item section followed by its attempts, which
// is always present even when empty.
func (f *ToonFormatter) FormatItemDetail(w io.Writer, d ItemDetail) error {
	fmt.Fprint(w, toonSection("item", itemFields, itemValues(d.Item)))
	fmt.Fprintln(w)
	return f.FormatAttemptList(w, d.Attempts)
}

func (f *ToonFormatter) FormatAttemptList(w io.Writer, attempts []quiz.Attempt) error {
	rows := make([][]any, len(attempts))
	for i, a := range attempts {
		rows[i] = attemptValues(a)
	}
	return writeToonTable(w, "attempts", attemptFields, rows)
}

func (f *ToonFormatter) FormatAttemptResult(w io.Writer, r AttemptResult) error {
	fields := append(append([]string{}, attemptFields...), "miss_count")
	values := append(attemptValues(r.Attempt), r.MissCount)
	fmt.Fprint(w, toonSection("attempt", fields, values))
	return nil
}

// FormatStats renders a totals section and one stats row per item.
func (f *ToonFormatter) FormatStats(w io.Writer, r repository.Report) error {
	t := r.Totals
	fmt.Fprint(w, toonSection("totals",
		[]string{"items", "attempts", "correct", "incorrect", "accuracy", "orphaned_attempts"},
		[]any{t.Items, t.Attempts, t.Correct, t.Incorrect, formatRatio(t.Accuracy), t.OrphanedAttempt}))
	fmt.Fprintln(w)

	rows := make([][]any, len(r.Items))
	for i, s := range r.Items {
		rows[i] = []any{s.ItemID, s.AnswerToken, s.MissCount, s.Attempts, s.Correct, s.Incorrect,
			formatRatio(s.Accuracy), s.Expected, s.Drift}
	}
	return writeToonTable(w, "stats", statFields, rows)
}

func (f *ToonFormatter) FormatBackups(w io.Writer, entries []backup.Entry) error {
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{e.Name, e.Source, quiz.FormatTime(e.Created), int(e.Size)}
	}
	return writeToonTable(w, "backups", backupFields, rows)
}

func (f *ToonFormatter) FormatBackupInfo(w io.Writer, info backup.Info) error {
	fmt.Fprint(w, toonSection("backups",
		[]string{"dir", "count", "total_bytes", "keep_days"},
		[]any{info.Dir, info.Count, int(info.TotalBytes), info.KeepDays}))
	return nil
}

// FormatMessage renders a simple message as plain text.
func (f *ToonFormatter) FormatMessage(w io.Writer, msg string) error {
	fmt.Fprintln(w, msg)
	return nil
}

// writeToonTable writes a tabular array. An empty table still prints its
// header so consumers always see the schema.
func writeToonTable(w io.Writer, name string, fields []string, rows [][]any) error {
	if len(rows) == 0 {
		fmt.Fprintf(w, "%s[0]{%s}:\n", name, strings.Join(fields, ","))
		return nil
	}

	objects := make([]toon.Object, len(rows))
	for i, row := range rows {
		fs := make([]toon.Field, len(fields))
		for j, key := range fields {
			fs[j] = toon.Field{Key: key, Value: row[j]}
		}
		objects[i] = toon.NewObject(fs...)
	}

	result, err := toon.MarshalString(toon.NewObject(toon.Field{Key: name, Value: objects}))
	if err != nil {
		return fmt.Errorf("toon marshal error: %w", err)
	}
	fmt.Fprintln(w, result)
	return nil
}

// toonSection renders a single-row section as name{fields}: plus one
// indented value line.
func toonSection(name string, fields []string, values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case int:
			parts[i] = strconv.Itoa(x)
		case string:
			parts[i] = toonEscapeValue(x)
		default:
			parts[i] = toonEscapeValue(fmt.Sprint(x))
		}
	}
	return name + "{" + strings.Join(fields, ",") + "}:\n  " + strings.Join(parts, ",") + "\n"
}

// toonEscapeValue escapes s the way toon-go does inside a tabular row by
// marshalling a one-cell table and taking its value line.
func toonEscapeValue(s string) string {
	doc := toon.NewObject(
		toon.Field{Key: "a", Value: []toon.Object{
			toon.NewObject(toon.Field{Key: "v", Value: s}),
		}},
	)
	result, err := toon.MarshalString(doc)
	if err != nil {
		return s
	}
	lines := strings.SplitN(result, "\n", 2)
	if len(lines) == 2 {
		return strings.TrimSpace(lines[1])
	}
	return s
}

func formatRatio(r float64) string {
	return strconv.FormatFloat(r, 'f', 2, 64)
}
