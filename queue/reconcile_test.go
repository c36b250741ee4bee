package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drip-labs/drip-engine/queue"
	memstore "github.com/drip-labs/drip-engine/queue/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestReconciler(t *testing.T, cfg queue.Config) (*queue.Reconciler, *memstore.Memory, *recordingExecutor) {
	t.Helper()

	exec := &recordingExecutor{}
	engine, store := newTestEngine(t, cfg, exec)
	r := queue.NewReconciler(store, engine)
	return r, store, exec
}

func enrollAccount(t *testing.T, store *memstore.Memory, addr queue.AccountID, active bool, lastSwap time.Time) {
	t.Helper()
	require.NoError(t, store.PutAccount(context.Background(), queue.Account{
		Address:    addr,
		Active:     active,
		EnrolledAt: time.Now().UTC().AddDate(0, 0, -30),
		LastSwapAt: lastSwap,
	}))
}

func daysAgo(n int) time.Time {
	return queue.Today().AddDate(0, 0, -n)
}

// =============================================================================
// MISSED-CYCLE MATH
// =============================================================================

func TestReconcile_CatchUpBound(t *testing.T) {
	// GIVEN: last swap 10 calendar days ago and a bound of 7
	// WHEN: the account reconciles
	// THEN: 7 catch-ups are enqueued, never 9

	r, store, _ := newTestReconciler(t, queue.Config{BatchThreshold: 100, MaxCatchUpDays: 7})
	enrollAccount(t, store, "acct-A", true, daysAgo(10))

	n, err := r.ReconcileAccount(context.Background(), "acct-A")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	pending, err := store.ListPending(context.Background(), "acct-A")
	require.NoError(t, err)
	assert.Len(t, pending, 7)
}

func TestReconcile_MissedDayMath(t *testing.T) {
	tests := []struct {
		name       string
		lastSwap   time.Time
		wantMissed int
	}{
		{"swapped today", daysAgo(0), 0},
		{"swapped yesterday", daysAgo(1), 0},
		{"two days ago", daysAgo(2), 1},
		{"five days ago", daysAgo(5), 4},
		{"at the bound", daysAgo(8), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, store, _ := newTestReconciler(t, queue.Config{BatchThreshold: 100, MaxCatchUpDays: 7})
			enrollAccount(t, store, "acct-A", true, tt.lastSwap)

			n, err := r.ReconcileAccount(context.Background(), "acct-A")
			require.NoError(t, err)
			assert.Equal(t, tt.wantMissed, n)
		})
	}
}

func TestReconcile_NeverSwapped_UsesEnrollmentAnchor(t *testing.T) {
	r, store, _ := newTestReconciler(t, queue.Config{BatchThreshold: 100, MaxCatchUpDays: 7})
	require.NoError(t, store.PutAccount(context.Background(), queue.Account{
		Address:    "acct-new",
		Active:     true,
		EnrolledAt: daysAgo(3),
	}))

	n, err := r.ReconcileAccount(context.Background(), "acct-new")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "enrolled 3 days ago with no swaps -> 2 missed")
}

func TestReconcile_InactiveAccountSkipped(t *testing.T) {
	r, store, exec := newTestReconciler(t, queue.Config{BatchThreshold: 100, MaxCatchUpDays: 7})
	enrollAccount(t, store, "acct-off", false, daysAgo(10))

	n, err := r.ReconcileAccount(context.Background(), "acct-off")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, exec.Calls())
}

func TestReconcile_CatchUpPayloads(t *testing.T) {
	r, store, _ := newTestReconciler(t, queue.Config{BatchThreshold: 100, MaxCatchUpDays: 7})
	enrollAccount(t, store, "acct-A", true, daysAgo(4))

	n, err := r.ReconcileAccount(context.Background(), "acct-A")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	pending, err := store.ListPending(context.Background(), "acct-A")
	require.NoError(t, err)
	require.Len(t, pending, 3)
	for i, a := range pending {
		p, ok := a.Payload.(queue.SwapPayload)
		require.True(t, ok)
		assert.Equal(t, "missed_cycle", p.Reason)
		assert.Equal(t, i+1, p.Day)
	}
}

func TestReconcile_ThresholdFiresDuringCatchUp(t *testing.T) {
	// With threshold 3 and 5 missed days, reconciliation itself should
	// push the queue over the threshold and execute en route.

	r, store, exec := newTestReconciler(t, queue.Config{BatchThreshold: 3, MaxCatchUpDays: 7})
	enrollAccount(t, store, "acct-A", true, daysAgo(6))

	n, err := r.ReconcileAccount(context.Background(), "acct-A")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.GreaterOrEqual(t, exec.Calls(), 3, "threshold batch should have fired mid-catch-up")
}

// =============================================================================
// SWEEP ISOLATION
// =============================================================================

func TestReconcileAll_SweepsAllActive(t *testing.T) {
	r, store, _ := newTestReconciler(t, queue.Config{BatchThreshold: 100, MaxCatchUpDays: 7})
	enrollAccount(t, store, "acct-1", true, daysAgo(3))
	enrollAccount(t, store, "acct-2", true, daysAgo(5))

	res, err := r.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Accounts)
	assert.Equal(t, 2+4, res.Enqueued)
	assert.Equal(t, 0, res.Failed)
}

func TestReconcileAll_BadAccountDoesNotHaltSweep(t *testing.T) {
	r, store, _ := newTestReconciler(t, queue.Config{BatchThreshold: 100, MaxCatchUpDays: 7})
	enrollAccount(t, store, "acct-good", true, daysAgo(2))
	enrollAccount(t, store, "acct-bad", true, daysAgo(2))

	// Registry that errors for one account only.
	r.Accounts = &flakyRegistry{Memory: store, failFor: "acct-bad"}

	res, err := r.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Accounts)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Enqueued, "the good account still reconciled")
}

// flakyRegistry fails GetAccount for one address.
type flakyRegistry struct {
	*memstore.Memory
	failFor queue.AccountID
}

func (f *flakyRegistry) GetAccount(ctx context.Context, id queue.AccountID) (queue.Account, error) {
	if id == f.failFor {
		return queue.Account{}, queue.ErrStoreUnavailable
	}
	return f.Memory.GetAccount(ctx, id)
}
