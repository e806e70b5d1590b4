package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"protrack/model"
)

// errTaskMoved aborts a status update whose guard no longer holds: another
// session moved the task between our ledger write and our status write.
var errTaskMoved = errors.New("task state changed after ledger write")

// ApproveTask moves an awaiting-approval task to executed and credits its
// current value to the owner. The credit applies at most once: approving an
// already-executed task is a no-op, and a lost status race is compensated
// by reversing the delta.
func (e *Engine) ApproveTask(ctx context.Context, actor Actor, taskID string) error {
	if !actor.Role.CanApprove() {
		return fmt.Errorf("role %s cannot approve: %w", actor.Role, model.ErrUnauthorized)
	}
	t, err := e.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if t.Status == model.StatusExecuted {
		return nil
	}
	if t.Status != model.StatusAwaitingApproval {
		return fmt.Errorf("cannot approve task in %s: %w", t.Status, model.ErrInvalidTransition)
	}

	// Ledger before status. An unknown owner fails here and the status
	// never advances.
	amount := t.Value
	if err := e.ledger.ApplyDelta(ctx, t.OwnerID, amount); err != nil {
		return err
	}

	updateErr := e.tasks.Update(ctx, taskID, func(cur *model.Task) error {
		if cur.Status != model.StatusAwaitingApproval || !cur.Value.Equal(amount) {
			return errTaskMoved
		}
		cur.Status = model.StatusExecuted
		cur.ApproverID = actor.ID
		return nil
	})
	return e.settleAfterCredit(ctx, taskID, t.OwnerID, amount, updateErr)
}

// RejectTask sends an awaiting-approval task back to the owner with a
// reason. No ledger effect; the owner may restart it.
func (e *Engine) RejectTask(ctx context.Context, actor Actor, taskID, reason string) error {
	if !actor.Role.CanApprove() {
		return fmt.Errorf("role %s cannot reject: %w", actor.Role, model.ErrUnauthorized)
	}
	if reason == "" {
		return fmt.Errorf("rejection reason is required: %w", model.ErrValidation)
	}
	return e.tasks.Update(ctx, taskID, func(t *model.Task) error {
		if t.Status != model.StatusAwaitingApproval {
			return fmt.Errorf("cannot reject task in %s: %w", t.Status, model.ErrInvalidTransition)
		}
		t.Status = model.StatusRejected
		t.RejectionReason = reason
		t.ApproverID = actor.ID
		return nil
	})
}

// settleAfterCredit resolves the outcome of a status write that ran after a
// ledger credit. On success there is nothing to do. On failure the credit
// must not stand: a compensating reverse delta is applied, and only if that
// also fails is the credited-but-not-marked state surfaced as a ledger
// inconsistency the caller must retry.
func (e *Engine) settleAfterCredit(ctx context.Context, taskID, workerID string, amount decimal.Decimal, updateErr error) error {
	if updateErr == nil {
		return nil
	}
	if !amount.IsZero() {
		if compErr := e.ledger.ApplyDelta(ctx, workerID, amount.Neg()); compErr != nil {
			return &model.LedgerInconsistencyError{
				TaskID:   taskID,
				WorkerID: workerID,
				Amount:   amount,
				Cause:    errors.Join(updateErr, compErr),
			}
		}
	}
	if errors.Is(updateErr, errTaskMoved) {
		return fmt.Errorf("task %s was settled concurrently, credit reversed: %w", taskID, model.ErrConflict)
	}
	return updateErr
}
