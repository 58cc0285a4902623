package storage

import (
	"context"
	"sync"

	"github.com/leeovery/quizstore/internal/csvrow"
)

// MemStore is an in-memory Store holding each collection as encoded CSV
// bytes. It behaves like FileStore without touching disk.
type MemStore struct {
	mu   sync.Mutex
	data map[Collection][]byte
}

// NewMemStore returns a MemStore with both collections holding only their
// canonical header.
func NewMemStore() *MemStore {
	m := &MemStore{data: make(map[Collection][]byte)}
	for _, c := range []Collection{Items, Attempts} {
		b, _ := csvrow.Encode(c.Header(), nil)
		m.data[c] = b
	}
	return m
}

// SetRaw replaces a collection's bytes verbatim, for seeding corrupt fixtures.
func (m *MemStore) SetRaw(c Collection, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[c] = append([]byte(nil), data...)
}

// Raw returns a copy of a collection's bytes.
func (m *MemStore) Raw(c Collection) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data[c]...)
}

func (m *MemStore) Read(_ context.Context, c Collection) (*csvrow.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := csvrow.Parse(m.data[c])
	if err != nil {
		return nil, err
	}
	return withHeader(t, c), nil
}

func (m *MemStore) Mutate(_ context.Context, c Collection, fn MutateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := csvrow.Parse(m.data[c])
	if err != nil {
		return err
	}
	next, err := fn(withHeader(t, c))
	if err != nil || next == nil {
		return err
	}
	b, err := csvrow.Encode(next.Header, next.Records())
	if err != nil {
		return err
	}
	m.data[c] = b
	return nil
}

func (m *MemStore) Fingerprint(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ContentHash(m.data[Items], m.data[Attempts]), nil
}
