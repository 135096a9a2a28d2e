package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"lexflow/reminder"
	"lexflow/signature"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Handler exposes the reminder engine's operations over HTTP. The tenant and
// actor are explicit per request; there is no ambient tenant context.
type Handler struct {
	Reminders *reminder.Service
	Requests  *signature.Service
	Log       *logrus.Logger
}

func tenantID(r *http.Request) string {
	return r.Header.Get("X-Tenant-ID")
}

func actorID(r *http.Request) string {
	return r.Header.Get("X-Actor-ID")
}

// SendImmediate handles POST /api/requests/{id}/reminders/send.
func (h *Handler) SendImmediate(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "X-Tenant-ID header required")
		return
	}

	result, err := h.Reminders.SendImmediateReminder(r.Context(), tenant, chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListPending handles GET /api/requests/{id}/reminders.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "X-Tenant-ID header required")
		return
	}

	entries, err := h.Reminders.PendingReminders(r.Context(), tenant, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": toEntryDTOs(entries)})
}

// CancelReminders handles DELETE /api/requests/{id}/reminders.
func (h *Handler) CancelReminders(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "X-Tenant-ID header required")
		return
	}

	cancelled, err := h.Reminders.CancelReminders(r.Context(), tenant, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cancelled": cancelled})
}

// TransitionRequest handles POST /api/requests/{id}/status, the lifecycle
// owner's entry point that also cancels queued reminders.
func (h *Handler) TransitionRequest(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "X-Tenant-ID header required")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := h.Requests.Transition(r.Context(), signature.TransitionParams{
		TenantID:  tenant,
		RequestID: chi.URLParam(r, "id"),
		Next:      signature.Status(body.Status),
		ActorID:   actorID(r),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": body.Status})
}

// Sweep handles POST /api/reminders/sweep (manual trigger of the periodic sweep).
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.Reminders.ProcessPendingReminders(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Retry handles POST /api/reminders/retry.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	retried, err := h.Reminders.RetryFailedReminders(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"retried": retried})
}

// Cleanup handles POST /api/reminders/cleanup?max_age_days=N.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	maxAgeDays, err := strconv.Atoi(r.URL.Query().Get("max_age_days"))
	if err != nil || maxAgeDays <= 0 {
		writeError(w, http.StatusBadRequest, "max_age_days must be a positive integer")
		return
	}

	deleted, err := h.Reminders.CleanupOldReminders(r.Context(), maxAgeDays)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// Stats handles GET /api/reminders/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "X-Tenant-ID header required")
		return
	}

	stats, err := h.Reminders.Statistics(r.Context(), tenant)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, signature.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, reminder.ErrRequestNotPending), errors.Is(err, signature.ErrRequestNotPending):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.Log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
