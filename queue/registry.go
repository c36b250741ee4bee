/*
registry.go - Action type to executor dispatch

PURPOSE:
  Maps each ActionType to the executor that knows how to perform that
  operation against the external ledger. Unknown types resolve to a
  deterministic ErrUnsupportedActionType, never a crash.

IDEMPOTENCE:
  Delivery is at-least-once. Executors are expected to be idempotent
  under re-invocation with the same payload where the ledger allows it
  (e.g. checking eligibility before acting); that responsibility sits
  with the executor, not this dispatch layer.
*/
package queue

import "context"

// Executor performs one action type against the external ledger.
type Executor interface {
	Execute(ctx context.Context, accountID AccountID, payload Payload) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, accountID AccountID, payload Payload) error

func (f ExecutorFunc) Execute(ctx context.Context, accountID AccountID, payload Payload) error {
	return f(ctx, accountID, payload)
}

// Registry holds the executor for each action type. Populated once at
// startup; not safe for concurrent mutation afterward.
type Registry struct {
	executors map[ActionType]Executor
}

func NewRegistry() *Registry {
	return &Registry{executors: make(map[ActionType]Executor)}
}

// Register binds an executor to a type, replacing any previous binding.
func (r *Registry) Register(t ActionType, e Executor) {
	r.executors[t] = e
}

// Lookup returns the executor for a type, or ErrUnsupportedActionType.
func (r *Registry) Lookup(t ActionType) (Executor, error) {
	e, ok := r.executors[t]
	if !ok {
		return nil, ErrUnsupportedActionType
	}
	return e, nil
}

// Types returns the registered action types, for diagnostics.
func (r *Registry) Types() []ActionType {
	out := make([]ActionType, 0, len(r.executors))
	for t := range r.executors {
		out = append(out, t)
	}
	return out
}
