package reviewhandler

import (
	"errors"
	"net/http"

	"appraisal/internal/domain/review"
	"appraisal/internal/transport/http/api"
)

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_upload", "expected a multipart form with a file field", a.RequestID)
		return
	}
	defer r.MultipartForm.RemoveAll()
	file, header, err := r.FormFile("file")
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_upload", "file field is required", a.RequestID)
		return
	}
	defer file.Close()

	report, err := h.Service.Import(r.Context(), a, header.Filename, file)
	if errors.Is(err, review.ErrImportRejected) {
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "import_invalid", "import rejected", report.Validation, a.RequestID)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Created(w, report, a.RequestID)
}
