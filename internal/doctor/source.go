package doctor

import (
	"errors"
	"os"

	"github.com/leeovery/quizstore/internal/csvrow"
	"github.com/leeovery/quizstore/internal/quiz"
	"github.com/leeovery/quizstore/internal/storeerr"
)

// Source is the raw, unreconciled content the checks inspect.
type Source struct {
	ItemsPath    string
	AttemptsPath string
	// IndexPath is the SQLite read index, or "" to skip index checks.
	IndexPath string

	Items    *csvrow.Table
	Attempts *csvrow.Table

	// SyntaxErrors holds the strict parse failure of each file that had to
	// be read leniently.
	SyntaxErrors []SyntaxError
}

// SyntaxError is a file that is not well-formed CSV.
type SyntaxError struct {
	Path string
	Err  error
}

// LoadSource reads both files. A missing or unreadable items file is an
// ErrIO failure; a missing attempts file is treated as empty. A file with
// broken quoting is read leniently and its parse error kept in SyntaxErrors,
// so the other checks still run.
func LoadSource(itemsPath, attemptsPath string) (*Source, error) {
	src := &Source{
		ItemsPath:    itemsPath,
		AttemptsPath: attemptsPath,
	}

	items, err := src.read(itemsPath)
	if err != nil {
		return nil, err
	}

	attempts, err := src.read(attemptsPath)
	if errors.Is(err, os.ErrNotExist) {
		attempts, err = csvrow.NewTable(quiz.AttemptHeader), nil
	}
	if err != nil {
		return nil, err
	}

	src.Items = items
	src.Attempts = attempts
	return src, nil
}

func (s *Source) read(path string) (*csvrow.Table, error) {
	t, err := csvrow.ReadFile(path)
	if !errors.Is(err, storeerr.ErrMalformedRecord) {
		return t, err
	}
	s.SyntaxErrors = append(s.SyntaxErrors, SyntaxError{Path: path, Err: err})
	return csvrow.ReadFileLenient(path)
}

// itemIDs returns the set of non-empty ids among raw item rows.
func (s *Source) itemIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Items.Rows))
	for _, row := range s.Items.Rows {
		if id, _ := row.Get(quiz.ColID); id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// nonBlank calls fn for each row with at least one non-empty field.
func nonBlank(t *csvrow.Table, fn func(csvrow.Row)) {
	for _, row := range t.Rows {
		if !row.IsBlank() {
			fn(row)
		}
	}
}
