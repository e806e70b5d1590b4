package lifecycle

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"protrack/model"
	"protrack/pricing"
)

// AdjustmentActivity names the synthetic task recorded for manual ledger
// corrections.
const AdjustmentActivity = "AJUSTE MANUAL"

// ValidateKPI confirms a self-declared daily goal: awaiting_validation to
// executed, crediting the self-declared value. A value of zero is a
// legitimate attestation ("not met but attested") and still validates.
// Supervisor only.
func (e *Engine) ValidateKPI(ctx context.Context, actor Actor, taskID string) error {
	if actor.Role != model.RoleSupervisor {
		return fmt.Errorf("role %s cannot validate KPIs: %w", actor.Role, model.ErrUnauthorized)
	}
	t, err := e.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if !pricing.IsKPI(t.Activity) {
		return fmt.Errorf("task %s is not a KPI declaration: %w", taskID, model.ErrValidation)
	}
	if t.Status != model.StatusAwaitingValidation {
		return fmt.Errorf("cannot validate task in %s: %w", t.Status, model.ErrInvalidTransition)
	}

	amount := t.Value
	if err := e.ledger.ApplyDelta(ctx, t.OwnerID, amount); err != nil {
		return err
	}
	updateErr := e.tasks.Update(ctx, taskID, func(cur *model.Task) error {
		if cur.Status != model.StatusAwaitingValidation {
			return errTaskMoved
		}
		cur.Status = model.StatusExecuted
		cur.ApproverID = actor.ID
		return nil
	})
	return e.settleAfterCredit(ctx, taskID, t.OwnerID, amount, updateErr)
}

// OverrideKPI flips a validated KPI declaration. An attained declaration
// (value > 0) becomes not_attained at value zero with the previous value
// debited; a not-attained one becomes executed at the full rule price with
// that price credited. The delta always derives from the current recorded
// value, so repeated toggles self-correct instead of accumulating.
// Supervisor only.
func (e *Engine) OverrideKPI(ctx context.Context, actor Actor, taskID string) error {
	if actor.Role != model.RoleSupervisor {
		return fmt.Errorf("role %s cannot override KPIs: %w", actor.Role, model.ErrUnauthorized)
	}
	t, err := e.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if !pricing.IsKPI(t.Activity) {
		return fmt.Errorf("task %s is not a KPI declaration: %w", taskID, model.ErrValidation)
	}
	if t.Status != model.StatusExecuted && t.Status != model.StatusNotAttained {
		return fmt.Errorf("cannot override task in %s: %w", t.Status, model.ErrInvalidTransition)
	}

	var delta, newValue decimal.Decimal
	var newStatus model.Status
	if t.Value.IsPositive() {
		delta = t.Value.Neg()
		newValue = decimal.Zero
		newStatus = model.StatusNotAttained
	} else {
		prices, err := pricing.Load(ctx, e.store)
		if err != nil {
			return err
		}
		newValue = prices.Lookup(t.Activity)
		delta = newValue
		newStatus = model.StatusExecuted
	}

	if err := e.ledger.ApplyDelta(ctx, t.OwnerID, delta); err != nil {
		return err
	}
	observedStatus, observedValue := t.Status, t.Value
	updateErr := e.tasks.Update(ctx, taskID, func(cur *model.Task) error {
		if cur.Status != observedStatus || !cur.Value.Equal(observedValue) {
			return errTaskMoved
		}
		cur.Status = newStatus
		cur.Value = newValue
		cur.ApproverID = actor.ID
		return nil
	})
	return e.settleAfterCredit(ctx, taskID, t.OwnerID, delta, updateErr)
}

// ManualAdjustment applies a signed correction to a worker's balance and
// records it as a synthetic, already-executed task so the audit trail shows
// where the money went. Supervisor only.
func (e *Engine) ManualAdjustment(ctx context.Context, actor Actor, workerID string, amount decimal.Decimal, reason string) (model.Task, error) {
	if actor.Role != model.RoleSupervisor {
		return model.Task{}, fmt.Errorf("role %s cannot adjust balances: %w", actor.Role, model.ErrUnauthorized)
	}
	if reason == "" {
		return model.Task{}, fmt.Errorf("adjustment reason is required: %w", model.ErrValidation)
	}
	if amount.IsZero() {
		return model.Task{}, fmt.Errorf("adjustment amount must be non-zero: %w", model.ErrValidation)
	}

	if err := e.ledger.ApplyDelta(ctx, workerID, amount); err != nil {
		return model.Task{}, err
	}

	task := model.Task{
		ID:          e.newID(),
		OwnerID:     workerID,
		ApproverID:  actor.ID,
		Activity:    AdjustmentActivity,
		Description: reason,
		Status:      model.StatusExecuted,
		Value:       amount,
		CreatedAt:   e.now(),
	}
	if appendErr := e.tasks.Append(ctx, task); appendErr != nil {
		return model.Task{}, e.settleAfterCredit(ctx, task.ID, workerID, amount, appendErr)
	}
	return task, nil
}
