package reportshandler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"appraisal/internal/domain/reports"
	"appraisal/internal/transport/http/api"
	"appraisal/internal/transport/http/middleware"
	"appraisal/internal/transport/http/shared"
)

type Reporter interface {
	YearlyRollup(ctx context.Context, tenantID string, year int) (reports.YearlyRollup, error)
	JobRuns(ctx context.Context, tenantID string, filter reports.JobRunFilter, limit, offset int) ([]reports.JobRun, int, error)
}

type Handler struct {
	Service Reporter
	Now     func() time.Time
}

func NewHandler(service Reporter) *Handler {
	return &Handler{Service: service, Now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/yearly", h.handleYearly)
		r.Get("/jobs", h.handleJobRuns)
	})
}

func (h *Handler) handleYearly(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	v := shared.NewValidator()
	year := v.Int("year", r.URL.Query().Get("year"))
	if year == 0 && !v.HasIssues() {
		year = h.Now().Year()
	}
	v.Range("year", year, 2000, 2100)
	if v.Reject(w, requestID) {
		return
	}

	rollup, err := h.Service.YearlyRollup(r.Context(), user.TenantID, year)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to build report", requestID)
		return
	}
	api.Success(w, rollup, requestID)
}

func (h *Handler) handleJobRuns(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()

	v := shared.NewValidator()
	filter := reports.JobRunFilter{
		JobType:     q.Get("jobType"),
		Status:      q.Get("status"),
		StartedFrom: v.OptionalTime("startedFrom", q.Get("startedFrom")),
		StartedTo:   v.OptionalTime("startedTo", q.Get("startedTo")),
	}
	if v.Reject(w, requestID) {
		return
	}
	// a bare date in startedTo covers the whole day
	if filter.StartedTo != nil && len(q.Get("startedTo")) == len("2006-01-02") {
		end := filter.StartedTo.Add(24*time.Hour - time.Nanosecond)
		filter.StartedTo = &end
	}
	page := shared.ParsePagination(r, 50, 200)

	runs, total, err := h.Service.JobRuns(r.Context(), user.TenantID, filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_runs_failed", "failed to list job runs", requestID)
		return
	}
	w.Header().Set(shared.TotalCountHeader, strconv.Itoa(total))
	api.Success(w, runs, requestID)
}
