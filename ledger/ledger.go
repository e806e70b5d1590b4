// Package ledger maintains the per-worker incentive balance. A balance is
// an independent running total: it equals the sum of every delta ever
// applied and is never recomputed from task history.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"protrack/model"
	"protrack/store"
)

// OperatorDisplayCeiling caps the balance shown for the operator role. The
// real balance keeps accumulating past it; only presentation is capped.
var OperatorDisplayCeiling = decimal.RequireFromString("380.00")

// Ledger reads and mutates the workers table through the store adapter.
type Ledger struct {
	store store.TableStore
}

func New(s store.TableStore) *Ledger {
	return &Ledger{store: s}
}

func (l *Ledger) readWorkers(ctx context.Context) (*store.Table, []model.Worker, error) {
	tbl, err := l.store.ReadTable(ctx, store.TableWorkers)
	if err != nil {
		return nil, nil, err
	}
	workers := make([]model.Worker, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		workers = append(workers, model.WorkerFromRow(tbl.Header, row))
	}
	return tbl, workers, nil
}

func writeWorkers(ctx context.Context, s store.TableStore, tbl *store.Table, workers []model.Worker) error {
	rows := make([][]string, 0, len(workers))
	for _, w := range workers {
		rows = append(rows, w.Row())
	}
	tbl.Header = model.WorkerColumns
	tbl.Rows = rows
	return s.WriteTable(ctx, tbl, tbl.Version)
}

// GetWorker looks a worker up by login id.
func (l *Ledger) GetWorker(ctx context.Context, workerID string) (model.Worker, error) {
	_, workers, err := l.readWorkers(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Worker{}, fmt.Errorf("worker %s: %w", workerID, model.ErrNotFound)
		}
		return model.Worker{}, err
	}
	for _, w := range workers {
		if w.LoginID == workerID {
			return w, nil
		}
	}
	return model.Worker{}, fmt.Errorf("worker %s: %w", workerID, model.ErrNotFound)
}

// GetBalance returns the real (uncapped) balance, zero for unknown workers.
func (l *Ledger) GetBalance(ctx context.Context, workerID string) (decimal.Decimal, error) {
	w, err := l.GetWorker(ctx, workerID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return w.Balance, nil
}

// DisplayBalance is the balance as shown to the worker: operators see at
// most the ceiling, everyone else sees the real total.
func DisplayBalance(w model.Worker) decimal.Decimal {
	if w.Role == model.RoleOperator && w.Balance.GreaterThan(OperatorDisplayCeiling) {
		return OperatorDisplayCeiling
	}
	return w.Balance
}

// ApplyDelta adds amount to the worker's balance. The whole cycle (read,
// add, conditional write) re-runs on conflict so two concurrent applies
// never work from the same stale balance. Unknown workers fail NotFound.
func (l *Ledger) ApplyDelta(ctx context.Context, workerID string, amount decimal.Decimal) error {
	return store.Retry(ctx, func() error {
		tbl, workers, err := l.readWorkers(ctx)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return fmt.Errorf("worker %s: %w", workerID, model.ErrNotFound)
			}
			return err
		}
		for i := range workers {
			if workers[i].LoginID == workerID {
				workers[i].Balance = workers[i].Balance.Add(amount)
				return writeWorkers(ctx, l.store, tbl, workers)
			}
		}
		return fmt.Errorf("worker %s: %w", workerID, model.ErrNotFound)
	})
}

// RankEntry is one row of the incentive ranking.
type RankEntry struct {
	WorkerID string
	Name     string
	Balance  decimal.Decimal
}

// Ranking lists all workers by displayed balance, highest first. The
// operator ceiling applies here too: the ranking is a display surface.
func (l *Ledger) Ranking(ctx context.Context) ([]RankEntry, error) {
	_, workers, err := l.readWorkers(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	entries := make([]RankEntry, 0, len(workers))
	for _, w := range workers {
		entries = append(entries, RankEntry{
			WorkerID: w.LoginID,
			Name:     w.Name,
			Balance:  DisplayBalance(w),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Balance.GreaterThan(entries[j].Balance)
	})
	return entries, nil
}
