package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process RecordStore with deterministic record ids
// and insertion order. It backs unit tests and credential-less local runs.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string][]Record
	nextId int

	// FailHook, when set, runs before every operation and can force an
	// error. Tests use it to simulate mid-batch store failures.
	FailHook func(op string, table string) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: map[string][]Record{}}
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (m *MemoryStore) fail(op, table string) error {
	if m.FailHook != nil {
		return m.FailHook(op, table)
	}
	return nil
}

func (m *MemoryStore) List(ctx context.Context, table string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list", table); err != nil {
		return nil, err
	}
	records := m.tables[table]
	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, Record{Id: r.Id, Fields: copyFields(r.Fields)})
	}
	return out, nil
}

func (m *MemoryStore) Create(ctx context.Context, table string, fields []map[string]any) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("create", table); err != nil {
		return nil, err
	}
	created := make([]Record, 0, len(fields))
	for _, f := range fields {
		m.nextId++
		rec := Record{Id: fmt.Sprintf("rec%d", m.nextId), Fields: copyFields(f)}
		m.tables[table] = append(m.tables[table], rec)
		created = append(created, Record{Id: rec.Id, Fields: copyFields(rec.Fields)})
	}
	return created, nil
}

func (m *MemoryStore) Update(ctx context.Context, table string, recordId string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("update", table); err != nil {
		return err
	}
	for i, r := range m.tables[table] {
		if r.Id == recordId {
			for k, v := range fields {
				m.tables[table][i].Fields[k] = v
			}
			return nil
		}
	}
	return fmt.Errorf("%w: record %s not found in %s", ErrStoreRejected, recordId, table)
}

func (m *MemoryStore) Delete(ctx context.Context, table string, recordIds []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete", table); err != nil {
		return err
	}
	drop := make(map[string]bool, len(recordIds))
	for _, id := range recordIds {
		drop[id] = true
	}
	kept := m.tables[table][:0]
	for _, r := range m.tables[table] {
		if !drop[r.Id] {
			kept = append(kept, r)
		}
	}
	m.tables[table] = kept
	return nil
}
