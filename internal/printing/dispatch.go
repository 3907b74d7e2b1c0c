package printing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/printmitra/printmitra-backend/pkg/config"
	"github.com/printmitra/printmitra-backend/pkg/db/models"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
	"github.com/printmitra/printmitra-backend/pkg/logger"
	"github.com/printmitra/printmitra-backend/pkg/metrics"
)

// DispatchResult is the outcome of one printer dispatch call.
type DispatchResult struct {
	Success        bool   `json:"success"`
	DeliveryNumber string `json:"deliveryNumber"`
	Message        string `json:"message"`
	EstimatedSecs  int    `json:"estimatedDuration"`
}

// Dispatcher sends paid orders to the printer fleet.
type Dispatcher interface {
	Dispatch(ctx context.Context, order *models.Order, printerIndex int) (DispatchResult, error)
	Endpoints() []string
}

type dispatcher struct {
	httpClient *http.Client
	endpoints  []string
	apiKey     string
	metrics    *metrics.DispatchMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// DispatcherParams bundles the dispatcher dependencies.
type DispatcherParams struct {
	Printers config.PrinterConfig
	Metrics  *metrics.DispatchMetrics
	Logger   *logger.Logger
}

// NewDispatcher parses the configured endpoints and builds the dispatcher.
// An empty endpoint list is allowed at construction; Dispatch then fails fast.
func NewDispatcher(params DispatcherParams) (Dispatcher, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := params.Printers.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &dispatcher{
		httpClient: &http.Client{Timeout: timeout},
		endpoints:  ParseEndpoints(params.Printers.Endpoints),
		apiKey:     params.Printers.APIKey,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        time.Now,
	}, nil
}

func (d *dispatcher) Endpoints() []string {
	return d.endpoints
}

type printRequest struct {
	OrderID         string `json:"orderId"`
	DocumentURL     string `json:"documentUrl"`
	DeliveryNumber  string `json:"deliveryNumber,omitempty"`
	Copies          int    `json:"copies"`
	Color           bool   `json:"color"`
	DoubleSided     bool   `json:"doubleSided"`
	PaperSize       string `json:"paperSize"`
	Binding         string `json:"binding,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type printResponse struct {
	Success        bool   `json:"success"`
	DeliveryNumber string `json:"deliveryNumber"`
	EstimatedSecs  int    `json:"estimatedDuration"`
	Message        string `json:"message"`
}

// Dispatch posts the order's source document to the selected printer. The
// delivery number in the result is the order's existing one, the printer's
// answer, or a freshly generated value, in that preference order.
func (d *dispatcher) Dispatch(ctx context.Context, order *models.Order, printerIndex int) (DispatchResult, error) {
	if order == nil {
		return DispatchResult{}, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if len(d.endpoints) == 0 {
		return DispatchResult{}, pkgerrors.New(pkgerrors.CodeDependency, "no printer URLs configured")
	}
	docURL := order.SourceDocumentURL()
	if docURL == "" {
		return DispatchResult{}, pkgerrors.New(pkgerrors.CodeValidation, "order has no printable document")
	}

	printerIndex = printerIndex % len(d.endpoints)
	if printerIndex < 0 {
		printerIndex += len(d.endpoints)
	}
	endpoint := d.endpoints[printerIndex]

	deliveryNumber := ""
	if order.DeliveryNumber != nil {
		deliveryNumber = *order.DeliveryNumber
	}

	options := order.PrintingOptions.Normalized()
	body, err := json.Marshal(printRequest{
		OrderID:        order.OrderRef,
		DocumentURL:    docURL,
		DeliveryNumber: deliveryNumber,
		Copies:         options.Copies,
		Color:          options.Color,
		DoubleSided:    options.DoubleSided,
		PaperSize:      options.PaperSize,
		Binding:        options.Binding,
		Notes:          options.Notes,
	})
	if err != nil {
		return DispatchResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal print request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/api/print", bytes.NewReader(body))
	if err != nil {
		return DispatchResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build print request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", d.apiKey)

	started := d.now()
	resp, err := d.httpClient.Do(req)
	d.metrics.ObserveDispatch(time.Since(started))
	if err != nil {
		d.metrics.IncAttempt("network_error")
		return DispatchResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "printer unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.metrics.IncAttempt("rejected")
		return DispatchResult{}, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("printer returned %s", resp.Status)).
			WithDetails(map[string]string{"body": strings.TrimSpace(string(raw))})
	}

	var parsed printResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		d.metrics.IncAttempt("bad_response")
		return DispatchResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode printer response")
	}
	if !parsed.Success {
		d.metrics.IncAttempt("rejected")
		return DispatchResult{}, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("printer rejected job: %s", parsed.Message))
	}

	d.metrics.IncAttempt("success")

	// Once assigned a delivery number is never regenerated.
	if deliveryNumber == "" {
		deliveryNumber = parsed.DeliveryNumber
	}
	if deliveryNumber == "" {
		deliveryNumber = GenerateDeliveryNumber(printerIndex, d.now())
	}

	return DispatchResult{
		Success:        true,
		DeliveryNumber: deliveryNumber,
		Message:        parsed.Message,
		EstimatedSecs:  parsed.EstimatedSecs,
	}, nil
}

// GenerateDeliveryNumber derives a human-facing tracking id from the printer
// index and a millisecond timestamp.
func GenerateDeliveryNumber(printerIndex int, at time.Time) string {
	return fmt.Sprintf("PMD-%d-%d", printerIndex+1, at.UnixMilli())
}
