package ops

import (
	"context"
	"fmt"

	"github.com/drip-labs/drip-engine/ledger"
	"github.com/drip-labs/drip-engine/queue"
)

// TransferExecutor performs peer transfers. Validation failures are
// immediate, non-retryable failures: the ledger is never called with a
// malformed transfer.
type TransferExecutor struct {
	Ledger ledger.Client
}

func (e *TransferExecutor) Execute(ctx context.Context, accountID queue.AccountID, payload queue.Payload) error {
	p, ok := payload.(queue.TransferPayload)
	if !ok {
		return &queue.ExecutionError{
			AccountID: accountID,
			Type:      queue.TypePeerTransfer,
			Reason:    fmt.Sprintf("unexpected payload %T", payload),
		}
	}

	if p.Recipient == "" {
		return &queue.ExecutionError{
			AccountID: accountID,
			Type:      queue.TypePeerTransfer,
			Reason:    "missing recipient",
		}
	}
	if !p.Amount.IsPositive() {
		return &queue.ExecutionError{
			AccountID: accountID,
			Type:      queue.TypePeerTransfer,
			Reason:    fmt.Sprintf("amount must be positive, got %s", p.Amount),
		}
	}

	receipt, err := e.Ledger.Execute(ctx, string(accountID), ledger.OpTransfer)
	if err != nil {
		return &queue.ExecutionError{
			AccountID: accountID,
			Type:      queue.TypePeerTransfer,
			Reason:    fmt.Sprintf("transfer of %s to %s failed", p.Amount, p.Recipient),
			Err:       err,
		}
	}
	if !receipt.Success {
		return &queue.ExecutionError{
			AccountID: accountID,
			Type:      queue.TypePeerTransfer,
			Reason:    fmt.Sprintf("transfer rejected (tx %s)", receipt.TxID),
		}
	}
	return nil
}
