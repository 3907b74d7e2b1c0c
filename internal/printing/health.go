package printing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/printmitra/printmitra-backend/pkg/config"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
	"github.com/printmitra/printmitra-backend/pkg/logger"
)

// PrinterHealth is one printer's availability snapshot. Failures here are
// informational and never block dispatch.
type PrinterHealth struct {
	Endpoint string `json:"endpoint"`
	Healthy  bool   `json:"healthy"`
	Error    string `json:"error,omitempty"`
}

// QueueStatus mirrors the printer-side queue report.
type QueueStatus struct {
	Endpoint string `json:"endpoint"`
	Paused   bool   `json:"paused"`
	Backlog  int    `json:"backlog"`
	Error    string `json:"error,omitempty"`
}

// FleetMonitor probes the printer fleet and proxies queue administration.
type FleetMonitor interface {
	CheckAll(ctx context.Context) []PrinterHealth
	QueueStatusAll(ctx context.Context) []QueueStatus
	PauseQueue(ctx context.Context, printerIndex int) error
	ResumeQueue(ctx context.Context, printerIndex int) error
}

type fleetMonitor struct {
	httpClient *http.Client
	endpoints  []string
	apiKey     string
	logg       *logger.Logger
}

// NewFleetMonitor builds the availability prober for the configured fleet.
func NewFleetMonitor(cfg config.PrinterConfig, logg *logger.Logger) (FleetMonitor, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := cfg.HealthTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &fleetMonitor{
		httpClient: &http.Client{Timeout: timeout},
		endpoints:  ParseEndpoints(cfg.Endpoints),
		apiKey:     cfg.APIKey,
		logg:       logg,
	}, nil
}

// CheckAll probes GET /health on every endpoint. The health endpoint is
// unauthenticated by the printer protocol.
func (f *fleetMonitor) CheckAll(ctx context.Context) []PrinterHealth {
	out := make([]PrinterHealth, 0, len(f.endpoints))
	for _, endpoint := range f.endpoints {
		health := PrinterHealth{Endpoint: endpoint}
		if err := f.get(ctx, endpoint+"/health", false, nil); err != nil {
			health.Error = err.Error()
		} else {
			health.Healthy = true
		}
		out = append(out, health)
	}
	return out
}

// QueueStatusAll reads GET /api/queue/status (API-key authenticated) from
// every endpoint.
func (f *fleetMonitor) QueueStatusAll(ctx context.Context) []QueueStatus {
	out := make([]QueueStatus, 0, len(f.endpoints))
	for _, endpoint := range f.endpoints {
		status := QueueStatus{Endpoint: endpoint}
		var parsed struct {
			Paused  bool `json:"paused"`
			Backlog int  `json:"backlog"`
		}
		if err := f.get(ctx, endpoint+"/api/queue/status", true, &parsed); err != nil {
			status.Error = err.Error()
		} else {
			status.Paused = parsed.Paused
			status.Backlog = parsed.Backlog
		}
		out = append(out, status)
	}
	return out
}

func (f *fleetMonitor) PauseQueue(ctx context.Context, printerIndex int) error {
	return f.post(ctx, printerIndex, "/api/queue/pause")
}

func (f *fleetMonitor) ResumeQueue(ctx context.Context, printerIndex int) error {
	return f.post(ctx, printerIndex, "/api/queue/resume")
}

func (f *fleetMonitor) post(ctx context.Context, printerIndex int, path string) error {
	if printerIndex < 0 || printerIndex >= len(f.endpoints) {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown printer index")
	}
	endpoint := f.endpoints[printerIndex]

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+path, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build queue request")
	}
	req.Header.Set("X-API-Key", f.apiKey)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "printer unreachable")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("printer returned %s", resp.Status))
	}
	return nil
}

func (f *fleetMonitor) get(ctx context.Context, url string, authed bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if authed {
		req.Header.Set("X-API-Key", f.apiKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("printer returned %s", resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	return nil
}
