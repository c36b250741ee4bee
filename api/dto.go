/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the admin surface. These types decouple the
  internal queue model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/drip-labs/drip-engine/queue"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

type AccountDTO struct {
	Address    string `json:"address"`
	Active     bool   `json:"active"`
	EnrolledAt string `json:"enrolled_at,omitempty"`
	LastSwapAt string `json:"last_swap_at,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

type EnrollAccountRequest struct {
	Address string `json:"address"`
	// EnrolledAt defaults to now when omitted. Format: RFC 3339.
	EnrolledAt string `json:"enrolled_at,omitempty"`
}

func accountDTO(a queue.Account) AccountDTO {
	dto := AccountDTO{
		Address: string(a.Address),
		Active:  a.Active,
	}
	if !a.EnrolledAt.IsZero() {
		dto.EnrolledAt = a.EnrolledAt.Format(time.RFC3339)
	}
	if !a.LastSwapAt.IsZero() {
		dto.LastSwapAt = a.LastSwapAt.Format(time.RFC3339)
	}
	if !a.CreatedAt.IsZero() {
		dto.CreatedAt = a.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// ACTIONS
// =============================================================================

type ActionDTO struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"created_at"`
	CompletedAt string          `json:"completed_at,omitempty"`
	FailedAt    string          `json:"failed_at,omitempty"`
}

type AppendActionRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func actionDTO(a queue.Action) ActionDTO {
	payload, err := queue.EncodePayload(a.Payload)
	if err != nil {
		payload = []byte("{}")
	}
	dto := ActionDTO{
		ID:        string(a.ID),
		AccountID: string(a.AccountID),
		Type:      string(a.Type),
		Payload:   payload,
		Status:    string(a.Status),
		Error:     a.Error,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
	if a.CompletedAt != nil {
		dto.CompletedAt = a.CompletedAt.Format(time.RFC3339)
	}
	if a.FailedAt != nil {
		dto.FailedAt = a.FailedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// QUEUE / BATCH
// =============================================================================

type QueueStatusDTO struct {
	Total           int  `json:"total"`
	Pending         int  `json:"pending"`
	Completed       int  `json:"completed"`
	Failed          int  `json:"failed"`
	CanTriggerBatch bool `json:"can_trigger_batch"`
}

type BatchResultDTO struct {
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Message   string `json:"message"`
}

// =============================================================================
// RECONCILIATION / SWEEPS / SCHEDULER
// =============================================================================

type SweepResultDTO struct {
	Accounts int `json:"accounts"`
	Enqueued int `json:"enqueued,omitempty"`
	Swapped  int `json:"swapped,omitempty"`
	Skipped  int `json:"skipped,omitempty"`
	Failed   int `json:"failed"`
}

type SchedulerStatusDTO struct {
	Enabled       bool   `json:"enabled"`
	CheckInterval string `json:"check_interval"`
	LastSweepDay  string `json:"last_sweep_day,omitempty"`
	NextCheckAt   string `json:"next_check_at"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
