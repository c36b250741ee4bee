/*
errors.go - Centralized error types for the queue engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Store errors - persistence outages, fatal to the enclosing call
  2. Dispatch errors - unknown action types, recorded per action
  3. Execution errors - ledger-side failures, recorded per action
  4. Lookup errors - missing or already-terminal actions/accounts

PROPAGATION POLICY:
  Store-level failures abort the enclosing call entirely. Executor-level
  failures are caught per action inside the batch run and recorded on the
  action, never propagated out of RunBatch. Reconciliation isolates
  failures per account so one bad account does not halt a sweep.
*/
package queue

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStoreUnavailable is returned when the underlying persistence
	// cannot be reached. Callers must not assume partial writes
	// succeeded; the operation is retryable at the next driver tick.
	ErrStoreUnavailable = errors.New("action store unavailable")

	// ErrUnsupportedActionType is returned when no executor is
	// registered for an action's type. Permanent: the action is marked
	// failed immediately.
	ErrUnsupportedActionType = errors.New("unsupported action type")

	// ErrActionNotFound is returned when a referenced action does not
	// exist for the account.
	ErrActionNotFound = errors.New("action not found")

	// ErrAlreadyProcessed is returned when an operation targets an
	// action that is already in a terminal state.
	ErrAlreadyProcessed = errors.New("action already processed")

	// ErrAccountNotFound is returned when a referenced account is not
	// in the registry.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountInactive is returned by executors when the account is
	// no longer eligible. Non-retryable.
	ErrAccountInactive = errors.New("account not active")
)

// =============================================================================
// EXECUTION ERROR - Ledger-side failure with context
// =============================================================================

// ExecutionError records a failed executor invocation. The engine does not
// distinguish transient from permanent causes automatically; the action is
// marked failed either way and retry is an explicit new Enqueue.
type ExecutionError struct {
	AccountID AccountID
	Type      ActionType
	Reason    string
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("execute %s for %s: %s: %v", e.Type, e.AccountID, e.Reason, e.Err)
	}
	return fmt.Sprintf("execute %s for %s: %s", e.Type, e.AccountID, e.Reason)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed if the whole call is
// repeated (store outages). Executor failures are terminal by design.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrActionNotFound) || errors.Is(err, ErrAccountNotFound)
}

// IsClientError returns true if the error is due to invalid caller input
// rather than a system fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnsupportedActionType) ||
		errors.Is(err, ErrAlreadyProcessed) ||
		IsNotFound(err)
}
