package reviewhandler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"appraisal/internal/domain/review"
	"appraisal/internal/domain/workflow"
	"appraisal/internal/transport/http/api"
	"appraisal/internal/transport/http/shared"
)

func (h *Handler) handleInbox(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	status := workflow.Status(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
	if status != "" && !status.Valid() {
		v := shared.NewValidator()
		v.Add("status", "unknown status")
		v.Reject(w, a.RequestID)
		return
	}

	items, err := h.Service.Inbox(r.Context(), a, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, items, a.RequestID)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	events, err := h.Service.TaskHistory(r.Context(), a, chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, events, a.RequestID)
}

type transitionFunc func(ctx context.Context, actor review.Actor, taskID string) (review.Task, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	task, err := fn(r.Context(), a, chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, task, a.RequestID)
}

func (h *Handler) handleBegin(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.BeginStage)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.StartWorkflow)
}

func (h *Handler) handleRevise(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Revise)
}

// handleConfirm expects {"approved": true|false}; the field is required so a
// missing body never counts as approval.
func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		Approved *bool `json:"approved"`
	}
	if !decode(w, r, &payload) {
		return
	}
	if payload.Approved == nil {
		v := shared.NewValidator()
		v.Add("approved", "is required")
		v.Reject(w, a.RequestID)
		return
	}

	task, err := h.Service.Confirm(r.Context(), a, chi.URLParam(r, "taskID"), *payload.Approved)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, task, a.RequestID)
}
