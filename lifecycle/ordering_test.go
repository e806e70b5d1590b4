package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"protrack/model"
	"protrack/pricing"
	"protrack/store"
)

// flakyStore injects write failures per table so the ledger-before-status
// ordering and its compensation paths can be exercised deterministically.
type flakyStore struct {
	inner store.TableStore

	mu        sync.Mutex
	failWrite func(table string) error
}

func (f *flakyStore) ReadTable(ctx context.Context, name string) (*store.Table, error) {
	return f.inner.ReadTable(ctx, name)
}

func (f *flakyStore) WriteTable(ctx context.Context, tbl *store.Table, expectedVersion string) error {
	f.mu.Lock()
	hook := f.failWrite
	f.mu.Unlock()
	if hook != nil {
		if err := hook(tbl.Name); err != nil {
			return err
		}
	}
	return f.inner.WriteTable(ctx, tbl, expectedVersion)
}

func (f *flakyStore) setFailWrite(hook func(table string) error) {
	f.mu.Lock()
	f.failWrite = hook
	f.mu.Unlock()
}

func newFlakyEngine(t *testing.T, workers ...model.Worker) (*Engine, *flakyStore) {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()

	rows := make([][]string, 0, len(workers))
	for _, w := range workers {
		rows = append(rows, w.Row())
	}
	if err := store.Ensure(ctx, m, store.TableWorkers, model.WorkerColumns, rows); err != nil {
		t.Fatalf("seed workers: %v", err)
	}
	if err := store.Ensure(ctx, m, store.TableRules, model.RuleColumns, pricing.DefaultRuleRows()); err != nil {
		t.Fatalf("seed rules: %v", err)
	}
	flaky := &flakyStore{inner: m}
	return New(flaky), flaky
}

func TestApproveLedgerWriteFailureBlocksStatus(t *testing.T) {
	ctx := context.Background()
	e, flaky := newFlakyEngine(t, checker, worker)
	task := finishedTask(t, e, worker, "REFUGO", model.Quantities{Produced: 1}) // 0.90

	flaky.setFailWrite(func(table string) error {
		if table == store.TableWorkers {
			return model.ErrStoreUnavailable
		}
		return nil
	})

	err := e.ApproveTask(ctx, actorFor(checker), task.ID)
	if !errors.Is(err, model.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}

	flaky.setFailWrite(nil)
	got, _ := e.Tasks().Get(ctx, task.ID)
	if got.Status != model.StatusAwaitingApproval {
		t.Errorf("status advanced without a ledger write: %s", got.Status)
	}
	if b := balanceOf(t, e, worker.LoginID); !b.IsZero() {
		t.Errorf("balance = %s, want 0", b)
	}
}

func TestApproveStatusWriteFailureCompensatesTheCredit(t *testing.T) {
	ctx := context.Background()
	e, flaky := newFlakyEngine(t, checker, worker)
	task := finishedTask(t, e, worker, "REFUGO", model.Quantities{Produced: 1}) // 0.90

	flaky.setFailWrite(func(table string) error {
		if table == store.TableTasks {
			return model.ErrStoreUnavailable
		}
		return nil
	})

	err := e.ApproveTask(ctx, actorFor(checker), task.ID)
	if !errors.Is(err, model.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}

	flaky.setFailWrite(nil)
	got, _ := e.Tasks().Get(ctx, task.ID)
	if got.Status != model.StatusAwaitingApproval {
		t.Errorf("status = %s, want awaiting_approval", got.Status)
	}
	// The credit must not stand when the status write failed.
	if b := balanceOf(t, e, worker.LoginID); !b.IsZero() {
		t.Errorf("balance = %s, want 0 after compensation", b)
	}

	// The task is still approvable once the store recovers.
	if err := e.ApproveTask(ctx, actorFor(checker), task.ID); err != nil {
		t.Fatalf("retry after recovery failed: %v", err)
	}
	if b := balanceOf(t, e, worker.LoginID); !b.Equal(dec("0.90")) {
		t.Errorf("balance = %s, want 0.90", b)
	}
}

func TestApproveRevaluedTaskReversesTheStaleCredit(t *testing.T) {
	ctx := context.Background()
	e, flaky := newFlakyEngine(t, checker, worker)
	task := finishedTask(t, e, worker, "REFUGO", model.Quantities{Produced: 1}) // 0.90

	// Between the credit and the status write, the task is rejected,
	// restarted and finished again at a higher quantity. The approval was
	// priced against the old value and must not mark the new one executed.
	interleaved := false
	flaky.setFailWrite(func(table string) error {
		if table != store.TableWorkers || interleaved {
			return nil
		}
		interleaved = true
		if err := e.RejectTask(ctx, actorFor(checker), task.ID, "wrong count"); err != nil {
			t.Fatalf("interleaved reject: %v", err)
		}
		if err := e.StartTask(ctx, actorFor(worker), task.ID); err != nil {
			t.Fatalf("interleaved restart: %v", err)
		}
		if _, err := e.FinishTask(ctx, actorFor(worker), task.ID, model.Quantities{Produced: 3}); err != nil {
			t.Fatalf("interleaved finish: %v", err)
		}
		return nil
	})

	err := e.ApproveTask(ctx, actorFor(checker), task.ID)
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	flaky.setFailWrite(nil)
	got, _ := e.Tasks().Get(ctx, task.ID)
	if got.Status != model.StatusAwaitingApproval {
		t.Errorf("status = %s, want awaiting_approval", got.Status)
	}
	if !got.Value.Equal(dec("2.70")) {
		t.Errorf("value = %s, want the refinished 2.70", got.Value)
	}
	if b := balanceOf(t, e, worker.LoginID); !b.IsZero() {
		t.Errorf("balance = %s, want 0 after the stale credit was reversed", b)
	}

	// A fresh approval credits the current value.
	if err := e.ApproveTask(ctx, actorFor(checker), task.ID); err != nil {
		t.Fatalf("re-approve failed: %v", err)
	}
	if b := balanceOf(t, e, worker.LoginID); !b.Equal(dec("2.70")) {
		t.Errorf("balance = %s, want 2.70", b)
	}
}

func repriceRule(t *testing.T, s store.TableStore, activity, price string) {
	t.Helper()
	ctx := context.Background()
	tbl, err := s.ReadTable(ctx, store.TableRules)
	if err != nil {
		t.Fatalf("read rules: %v", err)
	}
	next := tbl.Clone()
	for i, row := range next.Rows {
		if row[0] == activity {
			next.Rows[i][1] = price
		}
	}
	if err := s.WriteTable(ctx, next, tbl.Version); err != nil {
		t.Fatalf("write rules: %v", err)
	}
}

func TestFinishRepricesOnConflictRetry(t *testing.T) {
	ctx := context.Background()
	e, flaky := newFlakyEngine(t, checker, worker)

	task, err := e.CreateTask(ctx, actorFor(checker), CreateParams{
		OwnerID: worker.LoginID, Activity: "REFUGO",
	})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := e.StartTask(ctx, actorFor(worker), task.ID); err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}

	// The first finish attempt loses its conditional write; the price list
	// changes before the retry, and the retried cycle must price against
	// the new rules, not a snapshot from before the conflict.
	conflicted := false
	flaky.setFailWrite(func(table string) error {
		if table != store.TableTasks || conflicted {
			return nil
		}
		conflicted = true
		repriceRule(t, flaky, "REFUGO", "1.50")
		return model.ErrConflict
	})

	value, err := e.FinishTask(ctx, actorFor(worker), task.ID, model.Quantities{Produced: 2})
	if err != nil {
		t.Fatalf("FinishTask failed: %v", err)
	}
	if !value.Equal(dec("3.00")) {
		t.Errorf("value = %s, want 3.00 from the repriced rule", value)
	}
	got, _ := e.Tasks().Get(ctx, task.ID)
	if !got.Value.Equal(dec("3.00")) {
		t.Errorf("stored value = %s, want 3.00", got.Value)
	}
}

func TestApproveSurfacesInconsistencyWhenCompensationFails(t *testing.T) {
	ctx := context.Background()
	e, flaky := newFlakyEngine(t, checker, worker)
	task := finishedTask(t, e, worker, "REFUGO", model.Quantities{Produced: 1}) // 0.90

	// Allow exactly one more workers write (the credit), then fail
	// everything: the status write and the compensating reverse delta.
	var workersWrites int
	flaky.setFailWrite(func(table string) error {
		if table == store.TableTasks {
			return model.ErrStoreUnavailable
		}
		if table == store.TableWorkers {
			workersWrites++
			if workersWrites > 1 {
				return model.ErrStoreUnavailable
			}
		}
		return nil
	})

	err := e.ApproveTask(ctx, actorFor(checker), task.ID)
	var inconsistency *model.LedgerInconsistencyError
	if !errors.As(err, &inconsistency) {
		t.Fatalf("expected ledger inconsistency, got %v", err)
	}
	if inconsistency.WorkerID != worker.LoginID || !inconsistency.Amount.Equal(dec("0.90")) {
		t.Errorf("inconsistency details: %+v", inconsistency)
	}

	// The credited-but-not-marked state is visible, not silently dropped.
	flaky.setFailWrite(nil)
	if b := balanceOf(t, e, worker.LoginID); !b.Equal(dec("0.90")) {
		t.Errorf("balance = %s, want the uncompensated 0.90", b)
	}
	got, _ := e.Tasks().Get(ctx, task.ID)
	if got.Status != model.StatusAwaitingApproval {
		t.Errorf("status = %s, want awaiting_approval", got.Status)
	}
}
