package store

import (
	"context"
	"fmt"
	"sync"

	"protrack/model"
)

// Memory is an in-process TableStore with the same conditional-write
// contract as the Postgres backend. It backs the test suites and any
// single-process deployment that does not need a remote store.
type Memory struct {
	mu     sync.Mutex
	tables map[string]memEntry
}

type memEntry struct {
	payload string
	version string
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string]memEntry)}
}

func (m *Memory) ReadTable(ctx context.Context, name string) (*Table, error) {
	m.mu.Lock()
	entry, ok := m.tables[name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("table %s: %w", name, model.ErrNotFound)
	}
	header, rows, err := Decode(entry.payload)
	if err != nil {
		return nil, err
	}
	return &Table{Name: name, Header: header, Rows: rows, Version: entry.version}, nil
}

func (m *Memory) WriteTable(ctx context.Context, tbl *Table, expectedVersion string) error {
	payload, err := Encode(tbl.Header, tbl.Rows)
	if err != nil {
		return err
	}
	newVersion := Version(payload)

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.tables[tbl.Name]
	if expectedVersion == "" {
		if exists {
			return fmt.Errorf("table %s already exists: %w", tbl.Name, model.ErrConflict)
		}
	} else if !exists || entry.version != expectedVersion {
		return fmt.Errorf("table %s: %w", tbl.Name, model.ErrConflict)
	}

	m.tables[tbl.Name] = memEntry{payload: payload, version: newVersion}
	tbl.Version = newVersion
	return nil
}
