package ops_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drip-labs/drip-engine/ledger"
	"github.com/drip-labs/drip-engine/ops"
	"github.com/drip-labs/drip-engine/queue"
	memstore "github.com/drip-labs/drip-engine/queue/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// countingClient wraps Simulated and counts Execute calls, so tests can
// assert the ledger is never touched on validation failures.
type countingClient struct {
	*ledger.Simulated
	executes int
}

func (c *countingClient) Execute(ctx context.Context, account, op string) (ledger.Receipt, error) {
	c.executes++
	return c.Simulated.Execute(ctx, account, op)
}

func newFixture(t *testing.T) (*countingClient, *memstore.Memory) {
	t.Helper()
	store := memstore.NewMemory()
	require.NoError(t, store.PutAccount(context.Background(), queue.Account{
		Address:    "0xabc",
		Active:     true,
		EnrolledAt: time.Now().UTC().AddDate(0, 0, -5),
	}))
	return &countingClient{Simulated: ledger.NewSimulated()}, store
}

// =============================================================================
// DAILY SWAP
// =============================================================================

func TestSwapExecutor_RecordsLastSwapOnSuccess(t *testing.T) {
	client, store := newFixture(t)
	swapTime := time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)
	exec := &ops.SwapExecutor{
		Ledger:   client,
		Accounts: store,
		Now:      func() time.Time { return swapTime },
	}

	err := exec.Execute(context.Background(), "0xabc", queue.SwapPayload{Reason: "scheduled"})
	require.NoError(t, err)

	acct, err := store.GetAccount(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.True(t, acct.LastSwapAt.Equal(swapTime))
	assert.Equal(t, 1, client.executes)
}

func TestSwapExecutor_IneligibleAccounts(t *testing.T) {
	tests := []struct {
		name string
		elig ledger.Eligibility
		want string
	}{
		{"inactive", ledger.Eligibility{Active: false}, "ineligible"},
		{"program done", ledger.Eligibility{Active: true, Completed: true}, "program already completed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, store := newFixture(t)
			client.SetEligibility("0xabc", tt.elig)
			exec := &ops.SwapExecutor{Ledger: client, Accounts: store}

			err := exec.Execute(context.Background(), "0xabc", queue.SwapPayload{Reason: "user"})
			require.Error(t, err)

			var execErr *queue.ExecutionError
			require.ErrorAs(t, err, &execErr)
			assert.Contains(t, execErr.Reason, tt.want)
			assert.Equal(t, 0, client.executes, "no ledger call for ineligible accounts")

			acct, getErr := store.GetAccount(context.Background(), "0xabc")
			require.NoError(t, getErr)
			assert.True(t, acct.LastSwapAt.IsZero(), "failed swap must not advance the anchor")
		})
	}
}

func TestSwapExecutor_LedgerFailure(t *testing.T) {
	client, store := newFixture(t)
	client.FailOp(ledger.OpDailySwap, errors.New("insufficient gas"))
	exec := &ops.SwapExecutor{Ledger: client, Accounts: store}

	err := exec.Execute(context.Background(), "0xabc", queue.SwapPayload{Reason: "user"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "swap submission failed")

	acct, getErr := store.GetAccount(context.Background(), "0xabc")
	require.NoError(t, getErr)
	assert.True(t, acct.LastSwapAt.IsZero())
}

// =============================================================================
// PEER TRANSFER
// =============================================================================

func TestTransferExecutor_ValidationNeverTouchesLedger(t *testing.T) {
	tests := []struct {
		name    string
		payload queue.TransferPayload
		want    string
	}{
		{"missing recipient", queue.TransferPayload{Amount: decimal.NewFromInt(1)}, "missing recipient"},
		{"zero amount", queue.TransferPayload{Recipient: "0xdef"}, "must be positive"},
		{"negative amount", queue.TransferPayload{Recipient: "0xdef", Amount: decimal.NewFromInt(-3)}, "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newFixture(t)
			exec := &ops.TransferExecutor{Ledger: client}

			err := exec.Execute(context.Background(), "0xabc", tt.payload)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, 0, client.executes)
		})
	}
}

func TestTransferExecutor_ValidTransfer(t *testing.T) {
	client, _ := newFixture(t)
	exec := &ops.TransferExecutor{Ledger: client}

	err := exec.Execute(context.Background(), "0xabc", queue.TransferPayload{
		Recipient: "0xdef",
		Amount:    decimal.RequireFromString("0.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, client.executes)
}

// =============================================================================
// SUBSCRIPTION
// =============================================================================

func TestSubscriptionExecutor_PlanValidation(t *testing.T) {
	client, _ := newFixture(t)
	exec := &ops.SubscriptionExecutor{Ledger: client}

	err := exec.Execute(context.Background(), "0xabc", queue.SubscriptionPayload{PlanID: "gold"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown plan "gold"`)
	assert.Equal(t, 0, client.executes)

	err = exec.Execute(context.Background(), "0xabc", queue.SubscriptionPayload{PlanID: "premium"})
	require.NoError(t, err)
	assert.Equal(t, 1, client.executes)
}

// =============================================================================
// REGISTRY WIRING
// =============================================================================

func TestNewRegistry_AllTypesBound(t *testing.T) {
	client, store := newFixture(t)
	registry := ops.NewRegistry(client, store)

	for _, typ := range []queue.ActionType{queue.TypeDailySwap, queue.TypePeerTransfer, queue.TypeSubscription} {
		_, err := registry.Lookup(typ)
		assert.NoError(t, err, "executor for %s", typ)
	}

	_, err := registry.Lookup("staking")
	assert.ErrorIs(t, err, queue.ErrUnsupportedActionType)
}
