/*
store.go - Persistence interfaces for actions and accounts

PURPOSE:
  Defines the boundary between the engine and the database. The action
  ledger is the only shared mutable state in the system and is mutated
  exclusively through the Store contract, never ad hoc.

KEY INTERFACES:
  Store:           Per-account action persistence (append, list, status, prune)
  AccountRegistry: Account lookup maintained by the external onboarding flow

CONCURRENCY CONTRACT:
  Implementations must not lose a concurrently appended action during a
  read-modify-write. The engine additionally serializes batch runs per
  account (see engine.go), but the store itself must be safe for
  concurrent appends across accounts.

FAILURE CONTRACT:
  When the backing persistence is unavailable every method returns an
  error wrapping ErrStoreUnavailable; callers must not assume partial
  writes succeeded.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite
  - queue/store:  in-memory for tests and dev

SEE ALSO:
  - engine.go: The only batch-path consumer of this interface
*/
package queue

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Per-account action ledger
// =============================================================================

type Store interface {
	// Append persists a new pending action. Concurrent appends for the
	// same account must both survive.
	Append(ctx context.Context, a Action) error

	// ListPending returns the account's pending actions in creation order.
	ListPending(ctx context.Context, accountID AccountID) ([]Action, error)

	// List returns all retained actions for the account, newest first.
	List(ctx context.Context, accountID AccountID) ([]Action, error)

	// UpdateStatus transitions an action to completed or failed, stamping
	// the matching timestamp. Returns ErrAlreadyProcessed if the action is
	// already terminal (timestamps are never overwritten) and
	// ErrActionNotFound if it does not exist.
	UpdateStatus(ctx context.Context, accountID AccountID, id ActionID, status ActionStatus, errMsg string) error

	// Prune retains only the keep most recently created actions for the
	// account, regardless of status. Audit history past that point is
	// discarded; bounding growth wins over retention here.
	Prune(ctx context.Context, accountID AccountID, keep int) error

	// LastUpdated reports when the ledger was last written, for the
	// admin status surface.
	LastUpdated(ctx context.Context) (time.Time, error)
}

// =============================================================================
// ACCOUNT REGISTRY - External collaborator, read-mostly
// =============================================================================

// Account is the engine's view of an enrolled wallet. Created and mutated
// by the onboarding flow; this engine only reads the flags and timestamps,
// and writes LastSwapAt after a successful daily swap.
type Account struct {
	Address    AccountID
	Active     bool
	EnrolledAt time.Time // program start anchor
	LastSwapAt time.Time // zero until the first successful swap
	CreatedAt  time.Time
}

type AccountRegistry interface {
	GetAccount(ctx context.Context, id AccountID) (Account, error)
	ListActive(ctx context.Context) ([]Account, error)
	PutAccount(ctx context.Context, a Account) error

	// RecordSwap sets the account's last successful swap time.
	RecordSwap(ctx context.Context, id AccountID, at time.Time) error
}
