package reconcile

import (
	"github.com/leeovery/quizstore/internal/atomicfile"
	"github.com/leeovery/quizstore/internal/csvrow"
)

// FileWriter replaces files atomically.
type FileWriter struct{}

var _ Writer = FileWriter{}

// WriteTable replaces path with the table's header and rows.
func (FileWriter) WriteTable(path string, t *csvrow.Table) error {
	return atomicfile.Replace(path, t.Header, t.Records())
}

// discardWriter is used for dry runs.
type discardWriter struct{}

func (discardWriter) WriteTable(string, *csvrow.Table) error { return nil }
