/*
Package queue provides the deferred-action batching and recovery engine.

PURPOSE:
  This package contains the core types and algorithms for accumulating
  per-account operations against an external, fee-bearing ledger, deferring
  their execution until a count threshold is reached (or an operator forces
  it), and reconstructing the operations an account missed while the
  scheduler was down.

KEY CONCEPTS IN THIS FILE (types.go):
  - Action: A deferred unit of work targeting the external ledger
  - Payload: A tagged union of type-specific action parameters
  - ActionStatus: pending -> completed|failed; terminal states never revert
  - Config: Engine tuning knobs (threshold, history depth, catch-up bound)

DESIGN PRINCIPLES:
  1. At-least-once: Execution may repeat; executors must tolerate replays
  2. Terminal finality: Failed actions are never retried automatically;
     a retry is an explicit new Enqueue
  3. Type Safety: Payloads are concrete structs dispatched by tag, never
     untyped maps
  4. Precision: Transfer amounts use decimal.Decimal, never float64

SEE ALSO:
  - store.go: Persistence and account-registry interfaces
  - engine.go: Batch execution and threshold triggering
  - reconcile.go: Missed-period catch-up
*/
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// AccountID is the opaque external identity (a wallet address) on whose
// behalf actions are queued. This package never parses or validates it.
type AccountID string

// ActionID identifies a single queued action. IDs are time-prefixed nanoids,
// comparable for equality and safe under concurrent creation.
type ActionID string

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewActionID generates a fresh action identifier.
// Format: act-<unix-millis>-<10 random chars>.
func NewActionID() ActionID {
	suffix, err := nanoid.Generate(idAlphabet, 10)
	if err != nil {
		// nanoid only fails if the system randomness source is broken;
		// fall back to the timestamp alone rather than panicking.
		return ActionID(fmt.Sprintf("act-%d", time.Now().UnixNano()))
	}
	return ActionID(fmt.Sprintf("act-%d-%s", time.Now().UnixMilli(), suffix))
}

// =============================================================================
// ACTION TYPES AND STATUS
// =============================================================================

type ActionType string

const (
	// TypeDailySwap is the recurring ledger operation each enrolled
	// account is entitled to once per calendar day.
	TypeDailySwap ActionType = "daily_swap"

	// TypePeerTransfer moves value from the account to a named recipient.
	TypePeerTransfer ActionType = "peer_transfer"

	// TypeSubscription activates a subscription plan for the account.
	TypeSubscription ActionType = "subscription"
)

type ActionStatus string

const (
	StatusPending   ActionStatus = "pending"
	StatusCompleted ActionStatus = "completed"
	StatusFailed    ActionStatus = "failed"
)

// Terminal reports whether a status is final. Terminal actions never
// transition back to pending; retries require a new action.
func (s ActionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// =============================================================================
// ACTION - The deferred unit of work
// =============================================================================

type Action struct {
	ID        ActionID
	AccountID AccountID
	Type      ActionType
	Payload   Payload
	Status    ActionStatus

	// Error holds the diagnostic string for failed actions. Empty otherwise.
	Error string

	CreatedAt   time.Time
	CompletedAt *time.Time
	FailedAt    *time.Time
}

// NewAction creates a pending action with a fresh ID. The payload's tag
// must match the action type; mismatches are caught at Enqueue time.
func NewAction(accountID AccountID, payload Payload) Action {
	return Action{
		ID:        NewActionID(),
		AccountID: accountID,
		Type:      payload.ActionType(),
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// =============================================================================
// PAYLOAD - Tagged union of per-type parameters
// =============================================================================

// Payload carries type-specific action parameters. Each variant is a
// concrete struct; dispatch is a switch over ActionType, never a lookup
// into an untyped map.
type Payload interface {
	ActionType() ActionType
}

// SwapPayload parameterizes a daily-swap action.
type SwapPayload struct {
	// Reason records why the action was enqueued: "user", "scheduled",
	// or "missed_cycle" for reconciliation catch-ups.
	Reason string `json:"reason"`

	// Day is the 1-based missed-cycle index for catch-up actions; zero
	// for ordinary swaps.
	Day int `json:"day,omitempty"`
}

func (SwapPayload) ActionType() ActionType { return TypeDailySwap }

// TransferPayload parameterizes a peer transfer.
type TransferPayload struct {
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

func (TransferPayload) ActionType() ActionType { return TypePeerTransfer }

// SubscriptionPayload parameterizes a subscription activation.
type SubscriptionPayload struct {
	PlanID string `json:"plan_id"`
}

func (SubscriptionPayload) ActionType() ActionType { return TypeSubscription }

// EncodePayload serializes a payload for storage.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// DecodePayload reconstructs a payload from its stored form, keyed by the
// action's type tag. Unknown tags return ErrUnsupportedActionType so a
// corrupt row surfaces as a failed action rather than a crash.
func DecodePayload(t ActionType, data []byte) (Payload, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}
	switch t {
	case TypeDailySwap:
		var p SwapPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
		return p, nil
	case TypePeerTransfer:
		var p TransferPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
		return p, nil
	case TypeSubscription:
		var p SubscriptionPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedActionType, t)
	}
}

// =============================================================================
// RESULTS
// =============================================================================

// BatchResult aggregates the outcome of one batch run.
type BatchResult struct {
	Succeeded int
	Failed    int
}

func (r BatchResult) Total() int { return r.Succeeded + r.Failed }

// String renders an operator-facing summary, distinguishing an empty
// queue from an executed batch.
func (r BatchResult) String() string {
	if r.Total() == 0 {
		return "no pending actions"
	}
	return fmt.Sprintf("%d actions executed (%d succeeded, %d failed)", r.Total(), r.Succeeded, r.Failed)
}

// QueueStatus summarizes an account's queue for the admin surface.
type QueueStatus struct {
	Total           int
	Pending         int
	Completed       int
	Failed          int
	CanTriggerBatch bool
}

// =============================================================================
// CONFIG
// =============================================================================

// Config holds the engine's tuning knobs. Zero values are replaced with
// defaults via Normalize.
type Config struct {
	// BatchThreshold is the pending-action count at which an append
	// triggers a synchronous batch run.
	BatchThreshold int

	// KeepHistory is how many actions (any status) survive pruning
	// after a batch run, newest first.
	KeepHistory int

	// MaxCatchUpDays bounds how many missed daily cycles reconciliation
	// will enqueue for one account. Applied uniformly everywhere.
	MaxCatchUpDays int

	// ActionTimeout caps a single executor invocation. Expired actions
	// are marked failed with a timeout error; the batch continues.
	ActionTimeout time.Duration
}

const (
	DefaultBatchThreshold = 3
	DefaultKeepHistory    = 10
	DefaultMaxCatchUpDays = 7
	DefaultActionTimeout  = 30 * time.Second
)

// Normalize fills unset fields with defaults.
func (c Config) Normalize() Config {
	if c.BatchThreshold <= 0 {
		c.BatchThreshold = DefaultBatchThreshold
	}
	if c.KeepHistory <= 0 {
		c.KeepHistory = DefaultKeepHistory
	}
	if c.MaxCatchUpDays <= 0 {
		c.MaxCatchUpDays = DefaultMaxCatchUpDays
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = DefaultActionTimeout
	}
	return c
}
