/*
handlers.go - HTTP API handlers for the onboarding dashboard backend

PURPOSE:
  Exposes the action queue engine via REST. Handles HTTP
  request/response, JSON serialization, and delegates to the engine.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                        List accounts
    POST   /api/accounts                        Enroll account
    GET    /api/accounts/{address}              Account details
    GET    /api/accounts/{address}/actions      Action history
    POST   /api/accounts/{address}/actions      Append action (may trigger a batch)
    GET    /api/accounts/{address}/queue        Queue status

  Admin:
    POST   /api/admin/batch/{address}           Force-execute batch
    POST   /api/admin/actions/{address}/{id}    Execute single action
    POST   /api/admin/reconcile                 Reconciliation sweep now
    POST   /api/admin/swap-sweep                Direct daily-swap sweep now
    GET    /api/admin/scheduler                 Scheduler status

ERROR HANDLING:
  Expected outcomes (empty queue, ineligible account, batch with
  failures) come back as structured 200 bodies. Errors map to:
  - 400: Validation, unsupported action type
  - 404: Unknown account or action
  - 409: Action already processed
  - 503: Store unavailable (retryable)
  - 500: Everything else

SECURITY NOTE:
  No authentication middleware. Admin auth sits in front of this
  service.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: The periodic driver behind /api/admin/scheduler
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/drip-labs/drip-engine/queue"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Accounts   queue.AccountRegistry
	Engine     *queue.Engine
	Reconciler *queue.Reconciler
	Scheduler  *Scheduler
}

func NewHandler(accounts queue.AccountRegistry, engine *queue.Engine, reconciler *queue.Reconciler) *Handler {
	return &Handler{
		Accounts:   accounts,
		Engine:     engine,
		Reconciler: reconciler,
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Accounts.ListActive(r.Context())
	if err != nil {
		writeError(w, statusFor(err), "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = accountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) EnrollAccount(w http.ResponseWriter, r *http.Request) {
	var req EnrollAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required", nil)
		return
	}

	enrolledAt := time.Now().UTC()
	if req.EnrolledAt != "" {
		t, err := time.Parse(time.RFC3339, req.EnrolledAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "enrolled_at must be RFC 3339", err)
			return
		}
		enrolledAt = t
	}

	acct := queue.Account{
		Address:    queue.AccountID(req.Address),
		Active:     true,
		EnrolledAt: enrolledAt,
	}
	if err := h.Accounts.PutAccount(r.Context(), acct); err != nil {
		writeError(w, statusFor(err), "Failed to enroll account", err)
		return
	}
	writeJSON(w, http.StatusCreated, accountDTO(acct))
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	address := queue.AccountID(chi.URLParam(r, "address"))

	acct, err := h.Accounts.GetAccount(r.Context(), address)
	if err != nil {
		writeError(w, statusFor(err), "Failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, accountDTO(acct))
}

// =============================================================================
// ACTION HANDLERS
// =============================================================================

// AppendAction enqueues a new action. If the append crosses the batch
// threshold the batch runs synchronously, so this request can carry the
// latency of a full batch.
func (h *Handler) AppendAction(w http.ResponseWriter, r *http.Request) {
	address := queue.AccountID(chi.URLParam(r, "address"))

	var req AppendActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	payload, err := queue.DecodePayload(queue.ActionType(req.Type), req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid action", err)
		return
	}

	action, err := h.Engine.Enqueue(r.Context(), address, payload)
	if err != nil && queue.IsRetryable(err) {
		writeError(w, http.StatusServiceUnavailable, "Action store unavailable", err)
		return
	}
	if err != nil {
		// The append itself succeeded if we have an ID; a failed
		// threshold batch is reported but the action is queued.
		if action.ID == "" {
			writeError(w, http.StatusInternalServerError, "Failed to enqueue action", err)
			return
		}
		log.Printf("[API] Batch after append for %s failed: %v", address, err)
	}
	writeJSON(w, http.StatusCreated, actionDTO(action))
}

func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	address := queue.AccountID(chi.URLParam(r, "address"))

	actions, err := h.Engine.Store.List(r.Context(), address)
	if err != nil {
		writeError(w, statusFor(err), "Failed to list actions", err)
		return
	}

	dtos := make([]ActionDTO, len(actions))
	for i, a := range actions {
		dtos[i] = actionDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	address := queue.AccountID(chi.URLParam(r, "address"))

	s, err := h.Engine.Status(r.Context(), address)
	if err != nil {
		writeError(w, statusFor(err), "Failed to get queue status", err)
		return
	}
	writeJSON(w, http.StatusOK, QueueStatusDTO{
		Total:           s.Total,
		Pending:         s.Pending,
		Completed:       s.Completed,
		Failed:          s.Failed,
		CanTriggerBatch: s.CanTriggerBatch,
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ForceBatch executes the account's batch regardless of pending count.
func (h *Handler) ForceBatch(w http.ResponseWriter, r *http.Request) {
	address := queue.AccountID(chi.URLParam(r, "address"))

	result, err := h.Engine.ForceBatch(r.Context(), address)
	if err != nil {
		writeError(w, statusFor(err), "Batch execution failed", err)
		return
	}
	writeJSON(w, http.StatusOK, BatchResultDTO{
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Message:   result.String(),
	})
}

// ExecuteSingleAction executes exactly one named pending action.
func (h *Handler) ExecuteSingleAction(w http.ResponseWriter, r *http.Request) {
	address := queue.AccountID(chi.URLParam(r, "address"))
	id := queue.ActionID(chi.URLParam(r, "id"))

	err := h.Engine.ExecuteSingle(r.Context(), address, id)
	if err != nil {
		writeError(w, statusFor(err), "Single action execution failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "action executed"})
}

// TriggerReconcile runs the missed-period sweep over all active accounts.
func (h *Handler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	res, err := h.Reconciler.ReconcileAll(r.Context())
	if err != nil {
		writeError(w, statusFor(err), "Reconciliation sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResultDTO{
		Accounts: res.Accounts,
		Enqueued: res.Enqueued,
		Failed:   res.Failed,
	})
}

// TriggerSwapSweep runs today's direct daily-swap sweep, bypassing the
// queue entirely.
func (h *Handler) TriggerSwapSweep(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "Scheduler not configured", nil)
		return
	}
	res, err := h.Scheduler.DirectSweep(r.Context())
	if err != nil {
		writeError(w, statusFor(err), "Swap sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResultDTO{
		Accounts: res.Accounts,
		Swapped:  res.Swapped,
		Skipped:  res.Skipped,
		Failed:   res.Failed,
	})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "Scheduler not configured", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.Scheduler.StatusDTO())
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case queue.IsRetryable(err):
		return http.StatusServiceUnavailable
	case queue.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, queue.ErrUnsupportedActionType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
