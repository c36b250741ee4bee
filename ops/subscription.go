package ops

import (
	"context"
	"fmt"

	"github.com/drip-labs/drip-engine/ledger"
	"github.com/drip-labs/drip-engine/queue"
)

// KnownPlans are the subscription plans the product currently sells.
var KnownPlans = map[string]bool{
	"basic":   true,
	"plus":    true,
	"premium": true,
}

// SubscriptionExecutor activates a subscription plan for the account.
type SubscriptionExecutor struct {
	Ledger ledger.Client
}

func (e *SubscriptionExecutor) Execute(ctx context.Context, accountID queue.AccountID, payload queue.Payload) error {
	p, ok := payload.(queue.SubscriptionPayload)
	if !ok {
		return &queue.ExecutionError{
			AccountID: accountID,
			Type:      queue.TypeSubscription,
			Reason:    fmt.Sprintf("unexpected payload %T", payload),
		}
	}

	if p.PlanID == "" || !KnownPlans[p.PlanID] {
		return &queue.ExecutionError{
			AccountID: accountID,
			Type:      queue.TypeSubscription,
			Reason:    fmt.Sprintf("unknown plan %q", p.PlanID),
		}
	}

	receipt, err := e.Ledger.Execute(ctx, string(accountID), ledger.OpSubscription)
	if err != nil {
		return &queue.ExecutionError{
			AccountID: accountID,
			Type:      queue.TypeSubscription,
			Reason:    fmt.Sprintf("activation of %q failed", p.PlanID),
			Err:       err,
		}
	}
	if !receipt.Success {
		return &queue.ExecutionError{
			AccountID: accountID,
			Type:      queue.TypeSubscription,
			Reason:    fmt.Sprintf("activation rejected (tx %s)", receipt.TxID),
		}
	}
	return nil
}
