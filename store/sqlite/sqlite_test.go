package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drip-labs/drip-engine/queue"
	"github.com/drip-labs/drip-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// ACTION LEDGER
// =============================================================================

func TestSQLite_AppendAndListPending_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	a1 := queue.NewAction("0xabc", queue.SwapPayload{Reason: "user"})
	a1.CreatedAt = base
	a2 := queue.NewAction("0xabc", queue.TransferPayload{
		Recipient: "0xdef",
		Amount:    decimal.RequireFromString("1.25"),
	})
	a2.CreatedAt = base.Add(time.Second)

	require.NoError(t, store.Append(ctx, a1))
	require.NoError(t, store.Append(ctx, a2))

	pending, err := store.ListPending(ctx, "0xabc")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a1.ID, pending[0].ID, "creation order")
	assert.Equal(t, a2.ID, pending[1].ID)

	// Payloads decode back into their concrete variants.
	swap, ok := pending[0].Payload.(queue.SwapPayload)
	require.True(t, ok)
	assert.Equal(t, "user", swap.Reason)

	transfer, ok := pending[1].Payload.(queue.TransferPayload)
	require.True(t, ok)
	assert.Equal(t, "0xdef", transfer.Recipient)
	assert.True(t, transfer.Amount.Equal(decimal.RequireFromString("1.25")))
}

func TestSQLite_UpdateStatus_TerminalIsFinal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := queue.NewAction("0xabc", queue.SwapPayload{Reason: "user"})
	require.NoError(t, store.Append(ctx, a))
	require.NoError(t, store.UpdateStatus(ctx, "0xabc", a.ID, queue.StatusFailed, "ledger rejected"))

	// The compare-and-swap condition refuses the re-stamp.
	err := store.UpdateStatus(ctx, "0xabc", a.ID, queue.StatusCompleted, "")
	assert.ErrorIs(t, err, queue.ErrAlreadyProcessed)

	all, err := store.List(ctx, "0xabc")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, queue.StatusFailed, all[0].Status)
	assert.Equal(t, "ledger rejected", all[0].Error)
	assert.NotNil(t, all[0].FailedAt)
	assert.Nil(t, all[0].CompletedAt)
}

func TestSQLite_UpdateStatus_UnknownAction(t *testing.T) {
	store := newTestStore(t)
	err := store.UpdateStatus(context.Background(), "0xabc", "act-missing", queue.StatusCompleted, "")
	assert.ErrorIs(t, err, queue.ErrActionNotFound)
}

func TestSQLite_Prune_RetainsNewestTen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	var ids []queue.ActionID
	for i := 0; i < 15; i++ {
		a := queue.NewAction("0xabc", queue.SwapPayload{Reason: "user"})
		a.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Append(ctx, a))
		ids = append(ids, a.ID)
	}

	require.NoError(t, store.Prune(ctx, "0xabc", 10))

	all, err := store.List(ctx, "0xabc")
	require.NoError(t, err)
	require.Len(t, all, 10)
	for _, a := range all {
		assert.Contains(t, ids[5:], a.ID)
	}
}

func TestSQLite_LastUpdated_TracksWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	before, err := store.LastUpdated(ctx)
	require.NoError(t, err)
	assert.True(t, before.IsZero(), "fresh ledger has no last-updated")

	require.NoError(t, store.Append(ctx, queue.NewAction("0xabc", queue.SwapPayload{})))

	after, err := store.LastUpdated(ctx)
	require.NoError(t, err)
	assert.False(t, after.IsZero())
}

// =============================================================================
// ACCOUNT REGISTRY
// =============================================================================

func TestSQLite_Accounts_RoundTripAndRecordSwap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	enrolled := time.Now().UTC().AddDate(0, 0, -5).Truncate(time.Second)
	require.NoError(t, store.PutAccount(ctx, queue.Account{
		Address:    "0xabc",
		Active:     true,
		EnrolledAt: enrolled,
	}))

	acct, err := store.GetAccount(ctx, "0xabc")
	require.NoError(t, err)
	assert.True(t, acct.Active)
	assert.True(t, acct.LastSwapAt.IsZero())

	swapTime := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.RecordSwap(ctx, "0xabc", swapTime))

	acct, err = store.GetAccount(ctx, "0xabc")
	require.NoError(t, err)
	assert.True(t, acct.LastSwapAt.Equal(swapTime))
}

func TestSQLite_GetAccount_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetAccount(context.Background(), "0xnope")
	assert.ErrorIs(t, err, queue.ErrAccountNotFound)

	err = store.RecordSwap(context.Background(), "0xnope", time.Now())
	assert.ErrorIs(t, err, queue.ErrAccountNotFound)
}

func TestSQLite_ListActive_ExcludesInactive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutAccount(ctx, queue.Account{Address: "0xon", Active: true}))
	require.NoError(t, store.PutAccount(ctx, queue.Account{Address: "0xoff", Active: false}))

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, queue.AccountID("0xon"), active[0].Address)
}
