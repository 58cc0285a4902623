// Package storage provides the Store abstraction the repositories are built
// on, and a file-backed implementation that keeps each collection as a CSV
// file guarded by an advisory lock.
//
// Every mutation is a full read, an in-memory change, and a full atomic
// replace. The lock makes the single-writer assumption explicit: cooperating
// processes serialize on it, but a process that ignores it can still race and
// lose an update.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/leeovery/quizstore/internal/csvrow"
	"github.com/leeovery/quizstore/internal/quiz"
)

// Collection names one of the two data files.
type Collection string

const (
	// Items is the quiz problem collection.
	Items Collection = "problems"
	// Attempts is the scoring event collection.
	Attempts Collection = "attempts"
)

// FileName returns the on-disk name of the collection.
func (c Collection) FileName() string {
	return string(c) + ".csv"
}

// Header returns the canonical header for the collection.
func (c Collection) Header() []string {
	if c == Attempts {
		return quiz.AttemptHeader
	}
	return quiz.ItemHeader
}

// MutateFunc receives the current raw table and returns the table to write.
// Returning a nil table with a nil error leaves the file untouched.
type MutateFunc func(t *csvrow.Table) (*csvrow.Table, error)

// Store is the persistence boundary. The repositories depend only on this
// interface so the flat-file backend can be swapped without touching them.
type Store interface {
	// Read returns the raw rows of a collection. Rows are not reconciled.
	Read(ctx context.Context, c Collection) (*csvrow.Table, error)
	// Mutate runs fn against the current rows under exclusive access and
	// commits its result atomically.
	Mutate(ctx context.Context, c Collection, fn MutateFunc) error
	// Fingerprint returns a content hash over both collections. It changes
	// whenever either collection's bytes change.
	Fingerprint(ctx context.Context) (string, error)
}

// Locker is implemented by stores that can hand out exclusive access to the
// whole data directory, for offline tools that rewrite both files at once.
type Locker interface {
	LockExclusive(ctx context.Context) (unlock func(), err error)
}

// ContentHash returns the fingerprint of raw items and attempts file bytes.
// Tools that read the files directly use it to compare against a stored
// fingerprint.
func ContentHash(items, attempts []byte) string {
	h := sha256.New()
	h.Write(items)
	h.Write([]byte{0})
	h.Write(attempts)
	return hex.EncodeToString(h.Sum(nil))
}

// withHeader guarantees a table has a header, using the collection's
// canonical one for empty files.
func withHeader(t *csvrow.Table, c Collection) *csvrow.Table {
	if len(t.Header) == 0 {
		return csvrow.NewTable(c.Header())
	}
	return t
}
