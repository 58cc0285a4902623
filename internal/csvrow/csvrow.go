// Package csvrow reads comma-delimited data files into raw, header-keyed rows
// without interpreting any column. It is the layer that integrity checks and
// offline repair work on, so nothing here reconciles or drops data: blank rows
// and ragged rows are returned exactly as they appear.
package csvrow

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leeovery/quizstore/internal/storeerr"
)

const bom = "\ufeff"

// Row is one data record: an ordered mapping from header column to value.
type Row struct {
	// Line is the 1-based line in the file where the record starts.
	Line int
	// Fields holds values in header order. It may be shorter or longer than
	// the header for ragged legacy rows.
	Fields []string

	header []string
}

// Get returns the value of the named column and whether the column exists in
// the header and has a value on this row.
func (r Row) Get(column string) (string, bool) {
	for i, h := range r.header {
		if h != column {
			continue
		}
		if i >= len(r.Fields) {
			return "", false
		}
		return r.Fields[i], true
	}
	return "", false
}

// Lookup returns the first column among names that is present on the row.
// It lets callers accept legacy column names alongside canonical ones.
func (r Row) Lookup(names ...string) (value string, column string, ok bool) {
	for _, n := range names {
		if v, ok := r.Get(n); ok {
			return v, n, true
		}
	}
	return "", "", false
}

// IsBlank reports whether every field on the row is empty or whitespace.
func (r Row) IsBlank() bool {
	for _, f := range r.Fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Values returns a copy of the row's fields padded to width. Fields past
// width are kept.
func (r Row) Values(width int) []string {
	out := make([]string, max(width, len(r.Fields)))
	copy(out, r.Fields)
	return out
}

// Table is a parsed data file: the header plus every data row in file order.
type Table struct {
	Header []string
	Rows   []Row
}

// NewTable creates an empty table with the given header.
func NewTable(header []string) *Table {
	h := make([]string, len(header))
	copy(h, header)
	return &Table{Header: h}
}

// Column returns the index of the named column in the header, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// EnsureColumn returns the index of the first present column among names,
// appending names[0] to the header when none is present.
func (t *Table) EnsureColumn(names ...string) int {
	for _, n := range names {
		if i := t.Column(n); i >= 0 {
			return i
		}
	}
	t.Header = append(t.Header, names[0])
	for i := range t.Rows {
		t.Rows[i].header = t.Header
	}
	return len(t.Header) - 1
}

// Append adds a data row. Line is left at zero because the row has not been
// written yet.
func (t *Table) Append(fields []string) {
	f := make([]string, len(fields))
	copy(f, fields)
	t.Rows = append(t.Rows, Row{Fields: f, header: t.Header})
}

// Set assigns value to column idx on row i, growing the row as needed.
func (t *Table) Set(i, idx int, value string) {
	r := &t.Rows[i]
	for len(r.Fields) <= idx {
		r.Fields = append(r.Fields, "")
	}
	r.Fields[idx] = value
}

// Records returns the data rows padded to the header width, ready for
// writing. Extra fields on ragged rows survive the rewrite.
func (t *Table) Records() [][]string {
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values(len(t.Header))
	}
	return out
}

// TrailingBlank reports whether the final data row is all blank.
func (t *Table) TrailingBlank() bool {
	return len(t.Rows) > 0 && t.Rows[len(t.Rows)-1].IsBlank()
}

// DropTrailingBlank removes a single trailing all-blank row if present and
// reports whether it did.
func (t *Table) DropTrailingBlank() bool {
	if !t.TrailingBlank() {
		return false
	}
	t.Rows = t.Rows[:len(t.Rows)-1]
	return true
}

// ReadFile reads and parses the file at path. A missing or unreadable file is
// an ErrIO failure; a syntactically broken file is ErrMalformedRecord.
func ReadFile(path string) (*Table, error) {
	return readFile(path, false)
}

// ReadFileLenient is ReadFile with stray quotes accepted as literal text, for
// repair tools that must get through files hand-edited into bad CSV.
func ReadFileLenient(path string) (*Table, error) {
	return readFile(path, true)
}

func readFile(path string, lazy bool) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", storeerr.ErrIO, path, err)
	}
	t, err := parse(data, lazy)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return t, nil
}

// Parse parses raw CSV bytes. The first record is the header. An empty input
// yields a table with no header and no rows.
func Parse(data []byte) (*Table, error) {
	return parse(data, false)
}

func parse(data []byte, lazy bool) (*Table, error) {
	data = bytes.TrimPrefix(data, []byte(bom))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = lazy

	t := &Table{}
	first := true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, storeerr.Malformed(pe.StartLine, "", "%v", pe.Err)
			}
			return nil, fmt.Errorf("%w: %w", storeerr.ErrIO, err)
		}
		line, _ := r.FieldPos(0)
		if first {
			t.Header = rec
			first = false
			continue
		}
		t.Rows = append(t.Rows, Row{Line: line, Fields: rec, header: t.Header})
	}
	return t, nil
}

// Encode serializes a header and rows as CSV bytes.
func Encode(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("encoding header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("encoding rows: %w", err)
	}
	return buf.Bytes(), nil
}
