// Package store is the data store adapter: whole-table reads and
// optimistically-conditioned whole-table writes against a remote backend.
// Each table is one `;`-delimited payload with a header row; the version
// token is a content hash of the payload, so a conditional write fails with
// a conflict whenever the stored table moved since the read.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"protrack/model"
)

// Names of the three logical tables.
const (
	TableTasks   = "tasks"
	TableWorkers = "workers"
	TableRules   = "rules"
)

// Table is a snapshot of one logical table. Version is the token returned
// by the read it came from; an empty version means the table did not exist.
type Table struct {
	Name    string
	Header  []string
	Rows    [][]string
	Version string
}

// Clone returns a deep copy so a caller can mutate rows without touching
// the snapshot it read.
func (t *Table) Clone() *Table {
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = append([]string(nil), r...)
	}
	return &Table{
		Name:    t.Name,
		Header:  append([]string(nil), t.Header...),
		Rows:    rows,
		Version: t.Version,
	}
}

// TableStore reads and conditionally replaces whole tables.
//
// WriteTable replaces the stored table only if its version still equals
// expectedVersion; otherwise it fails with model.ErrConflict and leaves the
// stored table unchanged. An empty expectedVersion is a create: it fails
// with model.ErrConflict if the table already exists. On success the
// snapshot's Version is updated to the new token.
type TableStore interface {
	ReadTable(ctx context.Context, name string) (*Table, error)
	WriteTable(ctx context.Context, tbl *Table, expectedVersion string) error
}

// Encode renders the table payload: header then rows, `;`-separated.
func Encode(header []string, rows [][]string) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Comma = ';'
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("encode header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("encode row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("encode table: %w", err)
	}
	return sb.String(), nil
}

// Decode parses a table payload. Short rows are kept as-is; the row codecs
// in model tolerate missing columns.
func Decode(payload string) (header []string, rows [][]string, err error) {
	r := csv.NewReader(strings.NewReader(payload))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("decode table: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

// Version computes the content-hash token for a payload.
func Version(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Ensure creates the named table with the given header and seed rows if it
// does not exist yet. A concurrent creator winning the race is fine.
func Ensure(ctx context.Context, s TableStore, name string, header []string, rows [][]string) error {
	_, err := s.ReadTable(ctx, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return err
	}
	tbl := &Table{Name: name, Header: header, Rows: rows}
	if err := s.WriteTable(ctx, tbl, ""); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil
		}
		return err
	}
	return nil
}
