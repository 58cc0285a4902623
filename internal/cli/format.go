package cli

import (
	"fmt"
	"io"

	"github.com/leeovery/quizstore/internal/backup"
	"github.com/leeovery/quizstore/internal/quiz"
	"github.com/leeovery/quizstore/internal/repository"
)

// OutputFormat represents the output format for CLI responses.
type OutputFormat string

const (
	// FormatTOON is the default when stdout is not a terminal.
	FormatTOON OutputFormat = "toon"
	// FormatPretty is the default on a terminal.
	FormatPretty OutputFormat = "pretty"
	FormatJSON   OutputFormat = "json"
)

// ItemDetail is one item with its attempt history.
type ItemDetail struct {
	Item     quiz.Item      `json:"item"`
	Attempts []quiz.Attempt `json:"attempts"`
}

// AttemptResult is the outcome of recording an attempt.
type AttemptResult struct {
	Attempt quiz.Attempt `json:"attempt"`
	// MissCount is the item's counter after scoring, or -1 when the item was
	// not touched.
	MissCount int `json:"miss_count"`
}

// Formatter renders command output in one format.
type Formatter interface {
	FormatItemList(w io.Writer, items []quiz.Item) error
	FormatItemDetail(w io.Writer, d ItemDetail) error
	FormatAttemptList(w io.Writer, attempts []quiz.Attempt) error
	FormatAttemptResult(w io.Writer, r AttemptResult) error
	FormatStats(w io.Writer, r repository.Report) error
	FormatBackups(w io.Writer, entries []backup.Entry) error
	FormatBackupInfo(w io.Writer, info backup.Info) error
	FormatMessage(w io.Writer, msg string) error
}

// NewFormatter returns the Formatter for format.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatPretty:
		return &PrettyFormatter{}
	default:
		return &ToonFormatter{}
	}
}

// ResolveFormat determines the output format. At most one flag may be set;
// a set flag wins, then a configured format other than "auto", then the TTY
// default: pretty on a terminal, TOON otherwise.
func ResolveFormat(toonFlag, prettyFlag, jsonFlag bool, configured string, isTTY bool) (OutputFormat, error) {
	n := 0
	for _, set := range []bool{toonFlag, prettyFlag, jsonFlag} {
		if set {
			n++
		}
	}
	if n > 1 {
		return "", fmt.Errorf("only one format flag allowed: --toon, --pretty, or --json")
	}

	switch {
	case toonFlag:
		return FormatTOON, nil
	case prettyFlag:
		return FormatPretty, nil
	case jsonFlag:
		return FormatJSON, nil
	}

	switch OutputFormat(configured) {
	case FormatTOON, FormatPretty, FormatJSON:
		return OutputFormat(configured), nil
	}
	if isTTY {
		return FormatPretty, nil
	}
	return FormatTOON, nil
}
