package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/printmitra/printmitra-backend/api/responses"
	"github.com/printmitra/printmitra-backend/api/validators"
	internalorders "github.com/printmitra/printmitra-backend/internal/orders"
	"github.com/printmitra/printmitra-backend/pkg/enums"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
	"github.com/printmitra/printmitra-backend/pkg/logger"
	"github.com/printmitra/printmitra-backend/pkg/types"
)

type createOrderRequest struct {
	OrderType       string                 `json:"orderType" validate:"required,oneof=file template"`
	FileURL         string                 `json:"fileUrl"`
	TemplateID      string                 `json:"templateId"`
	TemplateDocxURL string                 `json:"templateDocxUrl"`
	TemplateFields  map[string]string      `json:"templateFields"`
	TemplatePaise   int64                  `json:"templatePricePaise"`
	PrintCostPaise  int64                  `json:"printCostPaise" validate:"required,gt=0"`
	PrintingOptions *types.PrintingOptions `json:"printingOptions"`
	CustomerEmail   string                 `json:"customerEmail" validate:"omitempty,email"`
	CustomerPhone   string                 `json:"customerPhone"`
}

// OrderCreate registers a new order and its gateway-side counterpart.
func OrderCreate(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := buildCreateInput(req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, summary)
	}
}

func buildCreateInput(req createOrderRequest) (internalorders.CreateOrderInput, error) {
	orderType, err := enums.ParseOrderType(req.OrderType)
	if err != nil {
		return internalorders.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order type")
	}
	input := internalorders.CreateOrderInput{
		Type:            orderType,
		FileURL:         validators.SanitizeString(req.FileURL, 2048),
		TemplateDocxURL: validators.SanitizeString(req.TemplateDocxURL, 2048),
		TemplateFields:  req.TemplateFields,
		TemplatePaise:   req.TemplatePaise,
		PrintCostPaise:  req.PrintCostPaise,
		CustomerEmail:   validators.SanitizeString(req.CustomerEmail, 320),
		CustomerPhone:   validators.SanitizeString(req.CustomerPhone, 32),
	}
	if req.PrintingOptions != nil {
		input.PrintingOptions = *req.PrintingOptions
	}
	if raw := strings.TrimSpace(req.TemplateID); raw != "" {
		templateID, err := parseUUIDParam(raw, "template id")
		if err != nil {
			return internalorders.CreateOrderInput{}, err
		}
		input.TemplateID = templateID.String()
	}
	return input, nil
}

// OrderDetail returns one order by its public reference.
func OrderDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		orderRef := strings.TrimSpace(chi.URLParam(r, "orderRef"))
		if orderRef == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order reference is required"))
			return
		}
		summary, err := svc.Get(r.Context(), orderRef)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// OrderList returns recent orders for operational dashboards.
func OrderList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"orders": list, "count": len(list)})
	}
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
	Admin  bool   `json:"admin"`
}

// OrderTransition moves an order along its lifecycle; the admin flag unlocks
// the override pairs.
func OrderTransition(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		orderRef := strings.TrimSpace(chi.URLParam(r, "orderRef"))
		if orderRef == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order reference is required"))
			return
		}

		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status"))
			return
		}

		summary, err := svc.ApplyTransition(r.Context(), orderRef, target, req.Admin)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
