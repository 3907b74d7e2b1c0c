package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/printmitra/printmitra-backend/api/responses"
	"github.com/printmitra/printmitra-backend/internal/conversion"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
	"github.com/printmitra/printmitra-backend/pkg/logger"
)

// ConversionStatus reports the progress of an async DOCX to PDF job.
func ConversionStatus(pipeline *conversion.Pipeline, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pipeline == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "conversion pipeline unavailable"))
			return
		}
		jobID := strings.TrimSpace(chi.URLParam(r, "jobId"))
		if jobID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "job id is required"))
			return
		}
		status, err := pipeline.Status(r.Context(), jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
