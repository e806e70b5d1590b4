package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending            Status = "pending"
	StatusInExecution        Status = "in_execution"
	StatusAwaitingApproval   Status = "awaiting_approval"
	StatusExecuted           Status = "executed"
	StatusRejected           Status = "rejected"
	StatusAwaitingValidation Status = "awaiting_validation"
	StatusNotAttained        Status = "not_attained"
)

var startableStatuses = map[Status]bool{
	StatusPending:  true,
	StatusRejected: true,
}

// CanStart reports whether the owner may move the task into execution.
func (s Status) CanStart() bool { return startableStatuses[s] }

// Role classifies a worker. Anything that is not a supervisor, checker or
// operator counts as a general worker.
type Role string

const (
	RoleSupervisor Role = "supervisor"
	RoleChecker    Role = "checker"
	RoleOperator   Role = "operator"
	RoleGeneral    Role = "general"
)

// ParseRole maps a stored role tag to a Role. Tags are matched
// case-insensitively and legacy Portuguese tags are accepted; unknown tags
// fall back to the general worker role.
func ParseRole(tag string) Role {
	t := strings.ToUpper(strings.TrimSpace(tag))
	switch {
	case strings.Contains(t, "SUPERVISOR"):
		return RoleSupervisor
	case strings.Contains(t, "OPERADOR"), strings.Contains(t, "OPERATOR"):
		return RoleOperator
	case strings.Contains(t, "CONFERENTE"), strings.Contains(t, "CHECKER"):
		return RoleChecker
	default:
		return RoleGeneral
	}
}

// CanApprove reports whether the role may approve or reject finished tasks.
func (r Role) CanApprove() bool { return r == RoleChecker || r == RoleSupervisor }

// Worker is a registered user of the system. Balance is the accumulated
// incentive total; it is only ever changed through ledger deltas.
type Worker struct {
	Name    string
	LoginID string
	Role    Role
	Balance decimal.Decimal
}

// PricingRule maps an activity name to its unit price.
type PricingRule struct {
	Activity  string
	UnitPrice decimal.Decimal
}

// Quantities carries the completion counts reported when a task finishes.
// The four package counts apply to the repack activity; Produced is the
// generic unit count for everything else.
type Quantities struct {
	Can      int
	Pet      int
	OneWay   int
	LongNeck int
	Produced int
}

// Task is a single piece-work assignment. Tasks are never deleted; the task
// table is the per-worker audit trail.
type Task struct {
	ID               string
	OwnerID          string
	ApproverID       string
	Activity         string
	Area             string
	Description      string
	ProductReference string
	Priority         string
	Status           Status
	Value            decimal.Decimal
	CreatedAt        time.Time
	StartedAt        time.Time
	FinishedAt       time.Time
	ElapsedMinutes   int
	RejectionReason  string
	Quantities       Quantities
	EvidenceRef      string
}

// TimeLayout is the cell format for all task timestamps.
const TimeLayout = time.RFC3339
