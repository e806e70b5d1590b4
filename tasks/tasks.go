// Package tasks is the task record store. Task rows are append-only as
// records: status transitions mutate fields in place, nothing is ever
// deleted, so the table doubles as the per-worker audit trail.
package tasks

import (
	"context"
	"errors"
	"fmt"

	"protrack/model"
	"protrack/store"
)

type Store struct {
	store store.TableStore
}

func New(s store.TableStore) *Store {
	return &Store{store: s}
}

func (s *Store) readAll(ctx context.Context) (*store.Table, []model.Task, error) {
	tbl, err := s.store.ReadTable(ctx, store.TableTasks)
	if err != nil {
		return nil, nil, err
	}
	list := make([]model.Task, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		list = append(list, model.TaskFromRow(tbl.Header, row))
	}
	return tbl, list, nil
}

func (s *Store) writeAll(ctx context.Context, tbl *store.Table, list []model.Task) error {
	rows := make([][]string, 0, len(list))
	for _, t := range list {
		rows = append(rows, t.Row())
	}
	tbl.Header = model.TaskColumns
	tbl.Rows = rows
	return s.store.WriteTable(ctx, tbl, tbl.Version)
}

// Get looks a task up by id.
func (s *Store) Get(ctx context.Context, taskID string) (model.Task, error) {
	_, list, err := s.readAll(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Task{}, fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
		}
		return model.Task{}, err
	}
	for _, t := range list {
		if t.ID == taskID {
			return t, nil
		}
	}
	return model.Task{}, fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
}

// Append adds a new task row, creating the table on first use.
func (s *Store) Append(ctx context.Context, task model.Task) error {
	return store.Retry(ctx, func() error {
		tbl, list, err := s.readAll(ctx)
		if errors.Is(err, model.ErrNotFound) {
			fresh := &store.Table{Name: store.TableTasks, Header: model.TaskColumns, Rows: [][]string{task.Row()}}
			return s.store.WriteTable(ctx, fresh, "")
		}
		if err != nil {
			return err
		}
		list = append(list, task)
		return s.writeAll(ctx, tbl, list)
	})
}

// Update re-reads the task and applies mutate to the latest copy before the
// conditional write, re-running the whole cycle on conflict. mutate sees
// the current row each attempt, so status guards inside it stay valid under
// concurrent writers; a terminal error from mutate aborts the cycle.
func (s *Store) Update(ctx context.Context, taskID string, mutate func(*model.Task) error) error {
	return store.Retry(ctx, func() error {
		tbl, list, err := s.readAll(ctx)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
			}
			return err
		}
		for i := range list {
			if list[i].ID != taskID {
				continue
			}
			if err := mutate(&list[i]); err != nil {
				return err
			}
			return s.writeAll(ctx, tbl, list)
		}
		return fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
	})
}

// Filter selects tasks in List. Zero fields match everything.
type Filter struct {
	OwnerID    string
	Statuses   []model.Status
	Activities []string
}

func (f Filter) matches(t model.Task) bool {
	if f.OwnerID != "" && t.OwnerID != f.OwnerID {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, st := range f.Statuses {
			if t.Status == st {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.Activities) > 0 {
		ok := false
		for _, a := range f.Activities {
			if t.Activity == a {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// List returns the tasks matching the filter. A missing tasks table is an
// empty result, not an error.
func (s *Store) List(ctx context.Context, f Filter) ([]model.Task, error) {
	_, list, err := s.readAll(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]model.Task, 0)
	for _, t := range list {
		if f.matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}
