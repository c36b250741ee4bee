// Package store provides an in-memory Store and AccountRegistry
// implementation for tests and the dev server.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/drip-labs/drip-engine/queue"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	actions     map[queue.AccountID][]queue.Action
	accounts    map[queue.AccountID]queue.Account
	lastUpdated time.Time
	unavailable bool
}

func NewMemory() *Memory {
	return &Memory{
		actions:  make(map[queue.AccountID][]queue.Action),
		accounts: make(map[queue.AccountID]queue.Account),
	}
}

// SetUnavailable toggles fault injection: while set, every operation
// fails with ErrStoreUnavailable, as a real persistence outage would.
func (m *Memory) SetUnavailable(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = down
}

func (m *Memory) check() error {
	if m.unavailable {
		return queue.ErrStoreUnavailable
	}
	return nil
}

// =============================================================================
// STORE
// =============================================================================

func (m *Memory) Append(_ context.Context, a queue.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}

	m.actions[a.AccountID] = append(m.actions[a.AccountID], a)
	m.lastUpdated = time.Now().UTC()
	return nil
}

func (m *Memory) ListPending(_ context.Context, accountID queue.AccountID) ([]queue.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}

	var out []queue.Action
	for _, a := range m.actions[accountID] {
		if a.Status == queue.StatusPending {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) List(_ context.Context, accountID queue.AccountID) ([]queue.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}

	src := m.actions[accountID]
	out := make([]queue.Action, len(src))
	copy(out, src)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateStatus(_ context.Context, accountID queue.AccountID, id queue.ActionID, status queue.ActionStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}

	actions := m.actions[accountID]
	for i := range actions {
		if actions[i].ID != id {
			continue
		}
		if actions[i].Status.Terminal() {
			return queue.ErrAlreadyProcessed
		}

		now := time.Now().UTC()
		actions[i].Status = status
		switch status {
		case queue.StatusCompleted:
			actions[i].CompletedAt = &now
		case queue.StatusFailed:
			actions[i].FailedAt = &now
			actions[i].Error = errMsg
		}
		m.lastUpdated = now
		return nil
	}
	return queue.ErrActionNotFound
}

func (m *Memory) Prune(_ context.Context, accountID queue.AccountID, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}

	actions := m.actions[accountID]
	if len(actions) <= keep {
		return nil
	}

	sorted := make([]queue.Action, len(actions))
	copy(sorted, actions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	m.actions[accountID] = sorted[:keep]
	m.lastUpdated = time.Now().UTC()
	return nil
}

func (m *Memory) LastUpdated(_ context.Context) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return time.Time{}, err
	}
	return m.lastUpdated, nil
}

// =============================================================================
// ACCOUNT REGISTRY
// =============================================================================

func (m *Memory) GetAccount(_ context.Context, id queue.AccountID) (queue.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return queue.Account{}, err
	}

	a, ok := m.accounts[id]
	if !ok {
		return queue.Account{}, queue.ErrAccountNotFound
	}
	return a, nil
}

func (m *Memory) ListActive(_ context.Context) ([]queue.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}

	var out []queue.Account
	for _, a := range m.accounts {
		if a.Active {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (m *Memory) PutAccount(_ context.Context, a queue.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m.accounts[a.Address] = a
	return nil
}

func (m *Memory) RecordSwap(_ context.Context, id queue.AccountID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}

	a, ok := m.accounts[id]
	if !ok {
		return queue.ErrAccountNotFound
	}
	a.LastSwapAt = at
	m.accounts[id] = a
	return nil
}
