package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/printmitra/printmitra-backend/api/responses"
	"github.com/printmitra/printmitra-backend/internal/printing"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
	"github.com/printmitra/printmitra-backend/pkg/logger"
)

// PrinterHealth probes every configured printer's unauthenticated health
// endpoint and reports the fleet view.
func PrinterHealth(fleet printing.FleetMonitor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fleet == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fleet monitor unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"printers": fleet.CheckAll(r.Context())})
	}
}

// PrinterQueues reports per-printer queue backlog and pause state.
func PrinterQueues(fleet printing.FleetMonitor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fleet == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fleet monitor unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"queues": fleet.QueueStatusAll(r.Context())})
	}
}

// PrinterQueuePause proxies the pause action to one printer.
func PrinterQueuePause(fleet printing.FleetMonitor, logg *logger.Logger) http.HandlerFunc {
	return queueAction(fleet, logg, func(r *http.Request, index int) error {
		return fleet.PauseQueue(r.Context(), index)
	}, "paused")
}

// PrinterQueueResume proxies the resume action to one printer.
func PrinterQueueResume(fleet printing.FleetMonitor, logg *logger.Logger) http.HandlerFunc {
	return queueAction(fleet, logg, func(r *http.Request, index int) error {
		return fleet.ResumeQueue(r.Context(), index)
	}, "resumed")
}

func queueAction(fleet printing.FleetMonitor, logg *logger.Logger, act func(*http.Request, int) error, state string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fleet == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fleet monitor unavailable"))
			return
		}
		index, err := strconv.Atoi(chi.URLParam(r, "printerIndex"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid printer index"))
			return
		}
		if err := act(r, index); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"printerIndex": index, "state": state})
	}
}
