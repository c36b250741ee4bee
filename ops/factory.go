package ops

import (
	"github.com/drip-labs/drip-engine/ledger"
	"github.com/drip-labs/drip-engine/queue"
)

// NewRegistry wires the default executors for every supported action
// type against the given ledger client and account registry.
func NewRegistry(client ledger.Client, accounts queue.AccountRegistry) *queue.Registry {
	r := queue.NewRegistry()
	r.Register(queue.TypeDailySwap, &SwapExecutor{Ledger: client, Accounts: accounts})
	r.Register(queue.TypePeerTransfer, &TransferExecutor{Ledger: client})
	r.Register(queue.TypeSubscription, &SubscriptionExecutor{Ledger: client})
	return r
}
