package reviewhandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"appraisal/internal/domain/review"
	"appraisal/internal/transport/http/api"
)

func (h *Handler) handleAddLineItem(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var item review.LineItem
	if !decode(w, r, &item) {
		return
	}
	created, err := h.Service.AddLineItem(r.Context(), a, chi.URLParam(r, "documentID"), item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Created(w, created, a.RequestID)
}

func (h *Handler) handleUpdateLineItem(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var item review.LineItem
	if !decode(w, r, &item) {
		return
	}
	item.ID = chi.URLParam(r, "itemID")
	updated, err := h.Service.UpdateLineItem(r.Context(), a, chi.URLParam(r, "documentID"), item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, updated, a.RequestID)
}

func (h *Handler) handleDeleteLineItem(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteLineItem(r.Context(), a, chi.URLParam(r, "documentID"), chi.URLParam(r, "itemID")); err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, a.RequestID)
}

func (h *Handler) handleAchievement(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		Tier int `json:"tier"`
	}
	if !decode(w, r, &payload) {
		return
	}
	item, err := h.Service.RecordAchievement(r.Context(), a, chi.URLParam(r, "documentID"), chi.URLParam(r, "itemID"), payload.Tier)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, item, a.RequestID)
}

func (h *Handler) handleAddCompetency(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var item review.CompetencyItem
	if !decode(w, r, &item) {
		return
	}
	created, err := h.Service.AddCompetency(r.Context(), a, chi.URLParam(r, "documentID"), item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Created(w, created, a.RequestID)
}

func (h *Handler) handleUpdateCompetency(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var item review.CompetencyItem
	if !decode(w, r, &item) {
		return
	}
	item.ID = chi.URLParam(r, "itemID")
	updated, err := h.Service.UpdateCompetency(r.Context(), a, chi.URLParam(r, "documentID"), item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, updated, a.RequestID)
}

func (h *Handler) handleDeleteCompetency(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteCompetency(r.Context(), a, chi.URLParam(r, "documentID"), chi.URLParam(r, "itemID")); err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, a.RequestID)
}

func (h *Handler) handleLevel(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		Level int `json:"level"`
	}
	if !decode(w, r, &payload) {
		return
	}
	item, err := h.Service.RecordLevel(r.Context(), a, chi.URLParam(r, "documentID"), chi.URLParam(r, "itemID"), payload.Level)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, item, a.RequestID)
}
