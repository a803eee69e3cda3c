package reviewhandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"appraisal/internal/domain/access"
	"appraisal/internal/domain/audit"
	"appraisal/internal/domain/importer"
	"appraisal/internal/domain/review"
	"appraisal/internal/domain/scoring"
	"appraisal/internal/domain/workflow"
	"appraisal/internal/transport/http/api"
	"appraisal/internal/transport/http/middleware"
)

// Service is the part of review.Service the HTTP layer drives.
type Service interface {
	GetDocument(ctx context.Context, actor review.Actor, documentID string) (review.DocumentView, error)
	ListDocuments(ctx context.Context, actor review.Actor, filter review.DocumentFilter) ([]review.Document, error)
	CreateDocument(ctx context.Context, actor review.Actor, in review.NewDocument) (review.DocumentView, error)
	Permissions(ctx context.Context, actor review.Actor, documentID string, actions []access.Action) (review.PermissionSet, error)
	WeightSummary(ctx context.Context, actor review.Actor, documentID string) (review.WeightSummary, error)
	Scores(ctx context.Context, actor review.Actor, documentID string) (review.ScoreSummary, error)
	ExportPDF(ctx context.Context, actor review.Actor, documentID string, w io.Writer) error
	OpenNextStage(ctx context.Context, actor review.Actor, documentID string) (review.Task, error)

	AddLineItem(ctx context.Context, actor review.Actor, documentID string, item review.LineItem) (review.LineItem, error)
	UpdateLineItem(ctx context.Context, actor review.Actor, documentID string, item review.LineItem) (review.LineItem, error)
	DeleteLineItem(ctx context.Context, actor review.Actor, documentID, itemID string) error
	RecordAchievement(ctx context.Context, actor review.Actor, documentID, itemID string, tier int) (review.LineItem, error)
	AddCompetency(ctx context.Context, actor review.Actor, documentID string, item review.CompetencyItem) (review.CompetencyItem, error)
	UpdateCompetency(ctx context.Context, actor review.Actor, documentID string, item review.CompetencyItem) (review.CompetencyItem, error)
	DeleteCompetency(ctx context.Context, actor review.Actor, documentID, itemID string) error
	RecordLevel(ctx context.Context, actor review.Actor, documentID, itemID string, level int) (review.CompetencyItem, error)

	Inbox(ctx context.Context, actor review.Actor, status workflow.Status) ([]review.InboxItem, error)
	TaskHistory(ctx context.Context, actor review.Actor, taskID string) ([]audit.Event, error)
	BeginStage(ctx context.Context, actor review.Actor, taskID string) (review.Task, error)
	StartWorkflow(ctx context.Context, actor review.Actor, taskID string) (review.Task, error)
	Confirm(ctx context.Context, actor review.Actor, taskID string, approved bool) (review.Task, error)
	Revise(ctx context.Context, actor review.Actor, taskID string) (review.Task, error)

	Import(ctx context.Context, actor review.Actor, filename string, r io.Reader) (review.ImportReport, error)
}

type Handler struct {
	Service Service
	// MaxUploadBytes bounds the multipart form kept in memory.
	MaxUploadBytes int64
}

func NewHandler(service Service) *Handler {
	return &Handler{Service: service, MaxUploadBytes: 10 << 20}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.handleListDocuments)
		r.Post("/", h.handleCreateDocument)
		r.Route("/{documentID}", func(r chi.Router) {
			r.Get("/", h.handleGetDocument)
			r.Get("/permissions", h.handlePermissions)
			r.Get("/weights", h.handleWeights)
			r.Get("/scores", h.handleScores)
			r.Get("/export.pdf", h.handleExportPDF)
			r.Post("/stages/next", h.handleNextStage)

			r.Post("/line-items", h.handleAddLineItem)
			r.Put("/line-items/{itemID}", h.handleUpdateLineItem)
			r.Delete("/line-items/{itemID}", h.handleDeleteLineItem)
			r.Put("/line-items/{itemID}/achievement", h.handleAchievement)

			r.Post("/competencies", h.handleAddCompetency)
			r.Put("/competencies/{itemID}", h.handleUpdateCompetency)
			r.Delete("/competencies/{itemID}", h.handleDeleteCompetency)
			r.Put("/competencies/{itemID}/level", h.handleLevel)
		})
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.handleInbox)
		r.Get("/{taskID}/history", h.handleHistory)
		r.Post("/{taskID}/begin", h.handleBegin)
		r.Post("/{taskID}/start", h.handleStart)
		r.Post("/{taskID}/confirm", h.handleConfirm)
		r.Post("/{taskID}/revise", h.handleRevise)
	})

	r.With(middleware.RequireAdmin).Post("/imports/bonus", h.handleImport)
}

// actor builds the caller from the authenticated user. It writes 401 and
// reports false when there is none.
func actor(w http.ResponseWriter, r *http.Request) (review.Actor, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return review.Actor{}, false
	}
	return review.Actor{
		UserID:     user.UserID,
		TenantID:   user.TenantID,
		EmployeeID: user.EmployeeID,
		Admin:      user.IsAdmin(),
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         middleware.GetClientIP(r.Context()),
	}, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

type weightDetails struct {
	Kind   review.Kind `json:"kind"`
	Rank   string      `json:"rank,omitempty"`
	Total  string      `json:"total"`
	Limit  string      `json:"limit"`
	Issues []string    `json:"issues"`
}

// writeError maps domain errors onto the response envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())

	var weightErr *review.WeightError
	var inputErr *review.InputError
	var transitionErr *workflow.InvalidTransitionError
	switch {
	case errors.As(err, &weightErr):
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "weight_invalid", weightErr.Error(), weightDetails{
			Kind:   weightErr.Kind,
			Rank:   weightErr.Rank,
			Total:  weightErr.Total.String(),
			Limit:  weightErr.Limit.String(),
			Issues: splitJoined(weightErr.Err),
		}, requestID)
	case errors.As(err, &inputErr):
		api.FailWithDetails(w, http.StatusBadRequest, "validation_error", inputErr.Error(),
			map[string]any{"fields": []map[string]string{{"field": inputErr.Field, "reason": inputErr.Reason}}}, requestID)
	case errors.Is(err, scoring.ErrInvalidTier), errors.Is(err, scoring.ErrLevelOutOfRange), errors.Is(err, scoring.ErrNegativeWeight),
		errors.Is(err, scoring.ErrWeightTooLarge):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	case errors.Is(err, review.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "resource not found", requestID)
	case errors.Is(err, review.ErrPermissionDenied):
		api.Fail(w, http.StatusForbidden, "forbidden", err.Error(), requestID)
	case errors.As(err, &transitionErr):
		api.FailWithDetails(w, http.StatusConflict, "invalid_transition", err.Error(),
			map[string]string{"status": string(transitionErr.From), "action": string(transitionErr.Action)}, requestID)
	case errors.Is(err, review.ErrDuplicateDocument):
		api.Fail(w, http.StatusConflict, "duplicate_document", err.Error(), requestID)
	case errors.Is(err, review.ErrConflict):
		api.Fail(w, http.StatusConflict, "conflict", err.Error(), requestID)
	case errors.Is(err, review.ErrStageNotApproved), errors.Is(err, review.ErrNoNextStage):
		api.Fail(w, http.StatusConflict, "stage_unavailable", err.Error(), requestID)
	case errors.Is(err, importer.ErrTooManyRows):
		api.Fail(w, http.StatusUnprocessableEntity, "import_too_large", err.Error(), requestID)
	default:
		slog.Error("request failed", "path", r.URL.Path, "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal error", requestID)
	}
}

func splitJoined(err error) []string {
	if err == nil {
		return nil
	}
	return strings.Split(err.Error(), "\n")
}
