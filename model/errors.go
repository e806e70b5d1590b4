package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error taxonomy shared by every package. Terminal errors (not found,
// unauthorized, invalid transition, validation) surface immediately;
// conflict and store-unavailable are transient and callers re-run the full
// read-compute-write cycle a bounded number of times before giving up.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict: table changed since read")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrValidation        = errors.New("validation failed")
)

// IsRetryable reports whether an operation that failed with err may be
// retried by re-reading and recomputing. Retrying the same computed write is
// never correct.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrStoreUnavailable)
}

// LedgerInconsistencyError reports that a ledger delta was applied but the
// matching task status write could not be completed and compensation also
// failed. The ledger and the task table disagree until the caller retries.
type LedgerInconsistencyError struct {
	TaskID   string
	WorkerID string
	Amount   decimal.Decimal
	Cause    error
}

func (e *LedgerInconsistencyError) Error() string {
	return fmt.Sprintf("ledger credited %s to worker %s for task %s but the status update failed: %v",
		e.Amount.StringFixed(2), e.WorkerID, e.TaskID, e.Cause)
}

func (e *LedgerInconsistencyError) Unwrap() error { return e.Cause }
