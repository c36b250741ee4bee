/*
simulated.go - Deterministic in-process ledger for dev and demos

PURPOSE:
  Stands in for the real chain client so the engine can run end-to-end
  without a node. Eligibility is configurable per account, specific ops
  can be made to fail, and an optional latency can be injected to
  exercise the per-action timeout path.

  Every account is eligible by default; tests opt accounts out rather
  than opting them in.
*/
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type Simulated struct {
	mu          sync.Mutex
	eligibility map[string]Eligibility
	failures    map[string]error // keyed by op name
	latency     time.Duration
	txSeq       int
}

func NewSimulated() *Simulated {
	return &Simulated{
		eligibility: make(map[string]Eligibility),
		failures:    make(map[string]error),
	}
}

// SetEligibility overrides the default (active, not completed) state for
// one account.
func (s *Simulated) SetEligibility(account string, e Eligibility) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eligibility[account] = e
}

// FailOp makes every execution of the named op return err. Pass nil to
// clear.
func (s *Simulated) FailOp(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// SetLatency delays every Execute call, honoring ctx cancellation.
func (s *Simulated) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

func (s *Simulated) Eligibility(_ context.Context, account string) (Eligibility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.eligibility[account]; ok {
		return e, nil
	}
	return Eligibility{Active: true}, nil
}

func (s *Simulated) Execute(ctx context.Context, account string, op string) (Receipt, error) {
	s.mu.Lock()
	latency := s.latency
	failure := s.failures[op]
	s.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		}
	}
	if failure != nil {
		return Receipt{}, fmt.Errorf("%s for %s: %w", op, account, failure)
	}

	s.mu.Lock()
	s.txSeq++
	txID := fmt.Sprintf("0x%012x", s.txSeq)
	s.mu.Unlock()

	return Receipt{TxID: txID, Success: true}, nil
}
