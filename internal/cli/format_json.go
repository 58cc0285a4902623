package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/leeovery/quizstore/internal/backup"
	"github.com/leeovery/quizstore/internal/index"
	"github.com/leeovery/quizstore/internal/quiz"
	"github.com/leeovery/quizstore/internal/repository"
)

// JSONFormatter renders 2-space indented JSON with snake_case keys. Lists
// are always arrays, never null.
type JSONFormatter struct{}

type jsonMessage struct {
	Message string `json:"message"`
}

func (f *JSONFormatter) FormatItemList(w io.Writer, items []quiz.Item) error {
	if items == nil {
		items = []quiz.Item{}
	}
	return f.writeJSON(w, items)
}

func (f *JSONFormatter) FormatItemDetail(w io.Writer, d ItemDetail) error {
	if d.Attempts == nil {
		d.Attempts = []quiz.Attempt{}
	}
	return f.writeJSON(w, d)
}

func (f *JSONFormatter) FormatAttemptList(w io.Writer, attempts []quiz.Attempt) error {
	if attempts == nil {
		attempts = []quiz.Attempt{}
	}
	return f.writeJSON(w, attempts)
}

func (f *JSONFormatter) FormatAttemptResult(w io.Writer, r AttemptResult) error {
	return f.writeJSON(w, r)
}

func (f *JSONFormatter) FormatStats(w io.Writer, r repository.Report) error {
	if r.Items == nil {
		r.Items = []index.ItemStat{}
	}
	return f.writeJSON(w, r)
}

func (f *JSONFormatter) FormatBackups(w io.Writer, entries []backup.Entry) error {
	if entries == nil {
		entries = []backup.Entry{}
	}
	return f.writeJSON(w, entries)
}

func (f *JSONFormatter) FormatBackupInfo(w io.Writer, info backup.Info) error {
	return f.writeJSON(w, info)
}

// FormatMessage renders a message as {"message": ...}.
func (f *JSONFormatter) FormatMessage(w io.Writer, msg string) error {
	return f.writeJSON(w, jsonMessage{Message: msg})
}

func (f *JSONFormatter) writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal error: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
