/*
Package ledger defines the engine's view of the external ledger.

PURPOSE:
  The chain node and contract that actually move value are out of scope;
  this package pins down the two call shapes the engine depends on
  (eligibility query, operation execution) and ships a deterministic
  simulated client for development and tests.

  Transaction signing, submission mechanics, and wallet creation all
  live behind whatever implements Client.
*/
package ledger

import "context"

// Op names a ledger-side operation.
const (
	OpDailySwap    = "daily-swap"
	OpTransfer     = "transfer"
	OpSubscription = "subscription"
)

// Eligibility is the ledger-side program state for an account.
type Eligibility struct {
	Active    bool // enrolled and not revoked
	Completed bool // 30-day program finished
}

// Receipt is the outcome of a submitted operation.
type Receipt struct {
	TxID    string
	Success bool
}

// Client is the external ledger collaborator. Calls may block for the
// duration of network and consensus confirmation; callers apply timeouts
// via ctx.
type Client interface {
	// Eligibility queries the account's program state.
	Eligibility(ctx context.Context, account string) (Eligibility, error)

	// Execute submits the named operation for the account and awaits
	// confirmation.
	Execute(ctx context.Context, account string, op string) (Receipt, error)
}
