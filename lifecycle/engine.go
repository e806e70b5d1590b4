// Package lifecycle enforces the task state machine and its ledger side
// effects. Transitions that pay out follow a fixed ordering: the ledger
// delta is written first and the task status second, with compensation if
// the status write cannot complete (see approve.go).
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"protrack/ledger"
	"protrack/model"
	"protrack/pricing"
	"protrack/store"
	"protrack/tasks"
)

// Actor is the authenticated worker a request acts as: resolved once per
// request, then passed explicitly instead of living in ambient session
// state.
type Actor struct {
	ID   string
	Role model.Role
}

type Engine struct {
	store  store.TableStore
	tasks  *tasks.Store
	ledger *ledger.Ledger

	now   func() time.Time
	newID func() string
}

func New(s store.TableStore) *Engine {
	return &Engine{
		store:  s,
		tasks:  tasks.New(s),
		ledger: ledger.New(s),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Ledger exposes the ledger for balance and ranking reads.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Tasks exposes the task record store for direct lookups.
func (e *Engine) Tasks() *tasks.Store { return e.tasks }

// ResolveActor authenticates by simple id lookup.
func (e *Engine) ResolveActor(ctx context.Context, workerID string) (Actor, error) {
	w, err := e.ledger.GetWorker(ctx, workerID)
	if err != nil {
		return Actor{}, err
	}
	return Actor{ID: w.LoginID, Role: w.Role}, nil
}

// CreateParams carries the fields a checker fills in when assigning a task,
// or a worker fills in when self-declaring a KPI. Attained only applies to
// KPI declarations.
type CreateParams struct {
	OwnerID          string
	Activity         string
	Area             string
	Description      string
	ProductReference string
	Priority         string
	EvidenceRef      string
	Attained         bool
}

// CreateTask creates a task in pending, or a KPI declaration in
// awaiting_validation. The value is looked up from the price table at
// creation time; a missing rule prices the task at zero, never an error.
// Regular tasks are created by checkers or supervisors for any registered
// owner; KPI declarations only by the operator who owns them.
func (e *Engine) CreateTask(ctx context.Context, actor Actor, p CreateParams) (model.Task, error) {
	if p.Activity == "" {
		return model.Task{}, fmt.Errorf("activity is required: %w", model.ErrValidation)
	}
	if p.OwnerID == "" {
		return model.Task{}, fmt.Errorf("owner is required: %w", model.ErrValidation)
	}

	isKPI := pricing.IsKPI(p.Activity)
	if isKPI {
		if actor.ID != p.OwnerID || actor.Role != model.RoleOperator {
			return model.Task{}, fmt.Errorf("KPI declarations are self-declared by operators only: %w", model.ErrUnauthorized)
		}
	} else if !actor.Role.CanApprove() {
		return model.Task{}, fmt.Errorf("role %s cannot assign tasks: %w", actor.Role, model.ErrUnauthorized)
	}

	if _, err := e.ledger.GetWorker(ctx, p.OwnerID); err != nil {
		return model.Task{}, err
	}

	prices, err := pricing.Load(ctx, e.store)
	if err != nil {
		return model.Task{}, err
	}
	value := prices.Lookup(p.Activity)

	task := model.Task{
		ID:               e.newID(),
		OwnerID:          p.OwnerID,
		Activity:         p.Activity,
		Area:             p.Area,
		Description:      p.Description,
		ProductReference: p.ProductReference,
		Priority:         p.Priority,
		Status:           model.StatusPending,
		Value:            value,
		CreatedAt:        e.now(),
		EvidenceRef:      p.EvidenceRef,
	}
	if isKPI {
		task.Status = model.StatusAwaitingValidation
		if !p.Attained {
			task.Value = decimal.Zero
		}
	}

	if err := e.tasks.Append(ctx, task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// StartTask moves a pending or rejected task into execution. Owner only.
func (e *Engine) StartTask(ctx context.Context, actor Actor, taskID string) error {
	start := e.now()
	return e.tasks.Update(ctx, taskID, func(t *model.Task) error {
		if t.OwnerID != actor.ID {
			return fmt.Errorf("task %s belongs to %s: %w", taskID, t.OwnerID, model.ErrUnauthorized)
		}
		if !t.Status.CanStart() {
			return fmt.Errorf("cannot start task in %s: %w", t.Status, model.ErrInvalidTransition)
		}
		t.Status = model.StatusInExecution
		t.StartedAt = start
		t.RejectionReason = ""
		return nil
	})
}

// FinishTask records completion data, recomputes the value through the
// pricing strategy for the activity and moves the task to awaiting
// approval. Returns the computed value. Elapsed minutes come from the
// recorded start; a missing or unparseable start yields zero, non-fatal.
func (e *Engine) FinishTask(ctx context.Context, actor Actor, taskID string, q model.Quantities) (decimal.Decimal, error) {
	finish := e.now()
	var value decimal.Decimal
	err := e.tasks.Update(ctx, taskID, func(t *model.Task) error {
		if t.OwnerID != actor.ID {
			return fmt.Errorf("task %s belongs to %s: %w", taskID, t.OwnerID, model.ErrUnauthorized)
		}
		if t.Status != model.StatusInExecution {
			return fmt.Errorf("cannot finish task in %s: %w", t.Status, model.ErrInvalidTransition)
		}
		// Reload the price list on every attempt so a conflicted retry
		// recomputes against the latest rules.
		prices, err := pricing.Load(ctx, e.store)
		if err != nil {
			return err
		}
		base := prices.Lookup(t.Activity)
		value, t.Quantities = pricing.Resolve(t.Activity, base, q)
		t.Value = value
		t.FinishedAt = finish
		t.ElapsedMinutes = elapsedMinutes(t.StartedAt, finish)
		t.Status = model.StatusAwaitingApproval
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return value, nil
}

func elapsedMinutes(start, finish time.Time) int {
	if start.IsZero() || finish.Before(start) {
		return 0
	}
	return int(finish.Sub(start).Minutes())
}

// ListPending returns the actor's work queue: supervisors see KPI
// declarations awaiting validation, checkers see tasks awaiting approval,
// everyone else sees their own open tasks.
func (e *Engine) ListPending(ctx context.Context, actor Actor) ([]model.Task, error) {
	switch actor.Role {
	case model.RoleSupervisor:
		return e.tasks.List(ctx, tasks.Filter{
			Statuses:   []model.Status{model.StatusAwaitingValidation},
			Activities: pricing.KPIActivities,
		})
	case model.RoleChecker:
		return e.tasks.List(ctx, tasks.Filter{
			Statuses: []model.Status{model.StatusAwaitingApproval},
		})
	default:
		return e.tasks.List(ctx, tasks.Filter{
			OwnerID: actor.ID,
			Statuses: []model.Status{
				model.StatusPending, model.StatusRejected,
				model.StatusInExecution, model.StatusAwaitingApproval,
			},
		})
	}
}
