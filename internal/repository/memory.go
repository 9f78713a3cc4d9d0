package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryBackend keeps records in process memory.
// It is the mock fallback when no database is configured, and the test double.
type MemoryBackend struct {
	mu      sync.RWMutex
	seq     uint64
	records map[Kind]map[string]memoryEntry
}

type memoryEntry struct {
	seq uint64
	doc Document
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[Kind]map[string]memoryEntry)}
}

// FetchAll returns every record of kind in insertion order
func (m *MemoryBackend) FetchAll(ctx context.Context, kind Kind) ([]Document, error) {
	return m.Query(ctx, kind)
}

// FetchByID retrieves a record by ID
func (m *MemoryBackend) FetchByID(ctx context.Context, kind Kind, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.records[kind][id]
	if !ok {
		return nil, notFound(kind, id)
	}
	return cloneDocument(e.doc)
}

// Insert stores a copy of doc
func (m *MemoryBackend) Insert(ctx context.Context, kind Kind, doc Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored, err := cloneDocument(doc)
	if err != nil {
		return nil, err
	}
	if stored.ID() == "" {
		stored["id"] = uuid.New().String()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	table, ok := m.records[kind]
	if !ok {
		table = make(map[string]memoryEntry)
		m.records[kind] = table
	}
	id := stored.ID()
	if _, exists := table[id]; exists {
		return nil, fmt.Errorf("%s %s: %w", kind, id, ErrDuplicate)
	}
	m.seq++
	table[id] = memoryEntry{seq: m.seq, doc: stored}
	return cloneDocument(stored)
}

// Update merges patch into the stored record
func (m *MemoryBackend) Update(ctx context.Context, kind Kind, id string, patch Patch) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := cloneDocument(Document(patch))
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.records[kind][id]
	if !ok {
		return nil, notFound(kind, id)
	}
	for k, v := range p {
		e.doc[k] = v
	}
	m.records[kind][id] = e
	return cloneDocument(e.doc)
}

// Delete removes a record by ID
func (m *MemoryBackend) Delete(ctx context.Context, kind Kind, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[kind][id]; !ok {
		return notFound(kind, id)
	}
	delete(m.records[kind], id)
	return nil
}

// Query returns the records of kind matching every filter, in insertion order
func (m *MemoryBackend) Query(ctx context.Context, kind Kind, filters ...Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]memoryEntry, 0, len(m.records[kind]))
	for _, e := range m.records[kind] {
		if matches(e.doc, filters) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]Document, 0, len(entries))
	for _, e := range entries {
		d, err := cloneDocument(e.doc)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Ping always succeeds
func (m *MemoryBackend) Ping(ctx context.Context) error { return ctx.Err() }

// Close is a no-op
func (m *MemoryBackend) Close() error { return nil }

func cloneDocument(d Document) (Document, error) {
	return toDocument(map[string]any(d))
}
