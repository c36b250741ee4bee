/*
Package ops provides the default executors behind the action registry.

PURPOSE:
  Each executor knows how to perform one action type against the external
  ledger: the recurring daily swap, peer transfers, and subscription
  activation. The queue engine dispatches to them by action type and
  records outcomes; the executors own validation and idempotence.

IDEMPOTENCE:
  Delivery is at-least-once. The swap executor re-checks eligibility on
  every invocation so replaying a delivered action against an account
  whose program has since completed fails cleanly instead of double
  swapping. Transfers and subscriptions validate before touching the
  ledger so a malformed payload never costs fees.

SEE ALSO:
  - factory.go: Registry wiring
  - ledger/client.go: The collaborator these executors talk to
*/
package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/drip-labs/drip-engine/ledger"
	"github.com/drip-labs/drip-engine/queue"
)

// SwapExecutor performs the recurring daily swap. After a confirmed swap
// it records the execution time on the account, which is what the
// missed-period reconciler measures against.
type SwapExecutor struct {
	Ledger   ledger.Client
	Accounts queue.AccountRegistry

	// Now is injectable for tests.
	Now func() time.Time
}

func (e *SwapExecutor) Execute(ctx context.Context, accountID queue.AccountID, payload queue.Payload) error {
	if _, ok := payload.(queue.SwapPayload); !ok {
		return &queue.ExecutionError{
			AccountID: accountID,
			Type:      queue.TypeDailySwap,
			Reason:    fmt.Sprintf("unexpected payload %T", payload),
		}
	}

	elig, err := e.Ledger.Eligibility(ctx, string(accountID))
	if err != nil {
		return &queue.ExecutionError{
			AccountID: accountID,
			Type:      queue.TypeDailySwap,
			Reason:    "eligibility query failed",
			Err:       err,
		}
	}
	if !elig.Active {
		return &queue.ExecutionError{
			AccountID: accountID,
			Type:      queue.TypeDailySwap,
			Reason:    "ineligible",
			Err:       queue.ErrAccountInactive,
		}
	}
	if elig.Completed {
		return &queue.ExecutionError{
			AccountID: accountID,
			Type:      queue.TypeDailySwap,
			Reason:    "program already completed",
		}
	}

	receipt, err := e.Ledger.Execute(ctx, string(accountID), ledger.OpDailySwap)
	if err != nil {
		return &queue.ExecutionError{
			AccountID: accountID,
			Type:      queue.TypeDailySwap,
			Reason:    "swap submission failed",
			Err:       err,
		}
	}
	if !receipt.Success {
		return &queue.ExecutionError{
			AccountID: accountID,
			Type:      queue.TypeDailySwap,
			Reason:    fmt.Sprintf("swap rejected (tx %s)", receipt.TxID),
		}
	}

	if err := e.Accounts.RecordSwap(ctx, accountID, e.now()); err != nil {
		// The swap itself confirmed; surface the bookkeeping failure so
		// the action is marked failed and an operator can investigate,
		// rather than silently desynchronizing the reconciler's anchor.
		return &queue.ExecutionError{
			AccountID: accountID,
			Type:      queue.TypeDailySwap,
			Reason:    fmt.Sprintf("swap confirmed (tx %s) but recording last-swap failed", receipt.TxID),
			Err:       err,
		}
	}
	return nil
}

func (e *SwapExecutor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}
