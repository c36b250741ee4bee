package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drip-labs/drip-engine/queue"
	memstore "github.com/drip-labs/drip-engine/queue/store"
)

func TestMemory_UpdateStatus_TerminalIsFinal(t *testing.T) {
	// GIVEN: a completed action
	// WHEN: UpdateStatus is called again
	// THEN: ErrAlreadyProcessed, and the original timestamps survive

	m := memstore.NewMemory()
	ctx := context.Background()

	a := queue.NewAction("acct-A", queue.SwapPayload{Reason: "user"})
	require.NoError(t, m.Append(ctx, a))
	require.NoError(t, m.UpdateStatus(ctx, "acct-A", a.ID, queue.StatusCompleted, ""))

	all, err := m.List(ctx, "acct-A")
	require.NoError(t, err)
	require.Len(t, all, 1)
	firstStamp := all[0].CompletedAt
	require.NotNil(t, firstStamp)

	err = m.UpdateStatus(ctx, "acct-A", a.ID, queue.StatusFailed, "late failure")
	assert.ErrorIs(t, err, queue.ErrAlreadyProcessed)

	all, err = m.List(ctx, "acct-A")
	require.NoError(t, err)
	assert.Equal(t, queue.StatusCompleted, all[0].Status)
	assert.Equal(t, firstStamp, all[0].CompletedAt)
	assert.Empty(t, all[0].Error)
}

func TestMemory_ConcurrentAppends_NoneLost(t *testing.T) {
	m := memstore.NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Append(ctx, queue.NewAction("acct-A", queue.SwapPayload{Reason: "user"}))
		}()
	}
	wg.Wait()

	pending, err := m.ListPending(ctx, "acct-A")
	require.NoError(t, err)
	assert.Len(t, pending, 50)
}

func TestMemory_ListPending_CreationOrder(t *testing.T) {
	m := memstore.NewMemory()
	ctx := context.Background()

	base := time.Now().UTC()
	// Append out of order; ListPending must sort by CreatedAt.
	for _, offset := range []int{2, 0, 1} {
		a := queue.NewAction("acct-A", queue.SwapPayload{Reason: "user", Day: offset})
		a.CreatedAt = base.Add(time.Duration(offset) * time.Second)
		require.NoError(t, m.Append(ctx, a))
	}

	pending, err := m.ListPending(ctx, "acct-A")
	require.NoError(t, err)
	require.Len(t, pending, 3)
	for i := 1; i < len(pending); i++ {
		assert.False(t, pending[i].CreatedAt.Before(pending[i-1].CreatedAt))
	}
}

func TestMemory_Prune_KeepsNewestRegardlessOfStatus(t *testing.T) {
	m := memstore.NewMemory()
	ctx := context.Background()

	base := time.Now().UTC()
	var ids []queue.ActionID
	for i := 0; i < 15; i++ {
		a := queue.NewAction("acct-A", queue.SwapPayload{Reason: "user"})
		a.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, m.Append(ctx, a))
		ids = append(ids, a.ID)
	}
	// Mix of statuses: complete the 5 oldest.
	for _, id := range ids[:5] {
		require.NoError(t, m.UpdateStatus(ctx, "acct-A", id, queue.StatusCompleted, ""))
	}

	require.NoError(t, m.Prune(ctx, "acct-A", 10))

	all, err := m.List(ctx, "acct-A")
	require.NoError(t, err)
	require.Len(t, all, 10)
	for _, a := range all {
		assert.Contains(t, ids[5:], a.ID)
	}
}

func TestMemory_Unavailable_AllOpsFail(t *testing.T) {
	m := memstore.NewMemory()
	m.SetUnavailable(true)
	ctx := context.Background()

	assert.ErrorIs(t, m.Append(ctx, queue.NewAction("a", queue.SwapPayload{})), queue.ErrStoreUnavailable)
	_, err := m.ListPending(ctx, "a")
	assert.ErrorIs(t, err, queue.ErrStoreUnavailable)
	_, err = m.LastUpdated(ctx)
	assert.ErrorIs(t, err, queue.ErrStoreUnavailable)
	_, err = m.ListActive(ctx)
	assert.ErrorIs(t, err, queue.ErrStoreUnavailable)
}
