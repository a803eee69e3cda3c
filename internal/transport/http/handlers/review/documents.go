package reviewhandler

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"appraisal/internal/domain/access"
	"appraisal/internal/domain/review"
	"appraisal/internal/transport/http/api"
	"appraisal/internal/transport/http/shared"
)

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	v := shared.NewValidator()
	q := r.URL.Query()
	filter := review.DocumentFilter{Year: v.Int("year", q.Get("year")), Kind: review.Kind(strings.ToLower(q.Get("kind")))}
	v.Enum("kind", string(filter.Kind), []string{string(review.KindBonus), string(review.KindMerit)}, "must be bonus or merit")
	if v.Reject(w, a.RequestID) {
		return
	}

	docs, err := h.Service.ListDocuments(r.Context(), a, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, docs, a.RequestID)
}

func (h *Handler) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var payload review.NewDocument
	if !decode(w, r, &payload) {
		return
	}
	payload.Kind = review.Kind(strings.ToLower(strings.TrimSpace(string(payload.Kind))))

	view, err := h.Service.CreateDocument(r.Context(), a, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Created(w, view, a.RequestID)
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	view, err := h.Service.GetDocument(r.Context(), a, chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, view, a.RequestID)
}

func (h *Handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var actions []access.Action
	if raw := strings.TrimSpace(r.URL.Query().Get("actions")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				actions = append(actions, access.Action(part))
			}
		}
	}

	set, err := h.Service.Permissions(r.Context(), a, chi.URLParam(r, "documentID"), actions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, set, a.RequestID)
}

func (h *Handler) handleWeights(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	summary, err := h.Service.WeightSummary(r.Context(), a, chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, summary, a.RequestID)
}

func (h *Handler) handleScores(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	scores, err := h.Service.Scores(r.Context(), a, chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, scores, a.RequestID)
}

// handleExportPDF renders into a buffer first so a failure still produces a
// JSON error instead of a truncated file.
func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	documentID := chi.URLParam(r, "documentID")
	var buf bytes.Buffer
	if err := h.Service.ExportPDF(r.Context(), a, documentID, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=review-"+documentID+".pdf")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("pdf write failed", "documentId", documentID, "requestId", a.RequestID, "err", err)
	}
}

func (h *Handler) handleNextStage(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	task, err := h.Service.OpenNextStage(r.Context(), a, chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Created(w, task, a.RequestID)
}
