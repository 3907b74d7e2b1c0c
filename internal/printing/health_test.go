package printing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/printmitra/printmitra-backend/pkg/config"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
)

func TestFleetMonitorCheckAll(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "" {
			t.Error("health probe must be unauthenticated")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	sick := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer sick.Close()

	m, err := NewFleetMonitor(config.PrinterConfig{
		Endpoints: healthy.URL + "," + sick.URL,
		APIKey:    "k",
	}, testLogger())
	if err != nil {
		t.Fatalf("NewFleetMonitor returned error: %v", err)
	}

	out := m.CheckAll(context.Background())
	if len(out) != 2 {
		t.Fatalf("expected 2 probes, got %d", len(out))
	}
	if !out[0].Healthy || out[1].Healthy {
		t.Errorf("unexpected health states: %+v", out)
	}
	if out[1].Error == "" {
		t.Error("unhealthy probe should carry an error")
	}
}

func TestFleetMonitorQueueStatusAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/queue/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "fleet-key" {
			t.Errorf("missing api key, got %q", r.Header.Get("X-API-Key"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"paused": true, "backlog": 7})
	}))
	defer srv.Close()

	m, err := NewFleetMonitor(config.PrinterConfig{Endpoints: srv.URL, APIKey: "fleet-key"}, testLogger())
	if err != nil {
		t.Fatalf("NewFleetMonitor returned error: %v", err)
	}

	out := m.QueueStatusAll(context.Background())
	if len(out) != 1 {
		t.Fatalf("expected 1 status, got %d", len(out))
	}
	if !out[0].Paused || out[0].Backlog != 7 {
		t.Errorf("unexpected status %+v", out[0])
	}
}

func TestFleetMonitorPauseQueue(t *testing.T) {
	var paused bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/queue/pause" {
			paused = true
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	m, err := NewFleetMonitor(config.PrinterConfig{Endpoints: srv.URL, APIKey: "k"}, testLogger())
	if err != nil {
		t.Fatalf("NewFleetMonitor returned error: %v", err)
	}

	if err := m.PauseQueue(context.Background(), 0); err != nil {
		t.Fatalf("PauseQueue returned error: %v", err)
	}
	if !paused {
		t.Error("pause request never reached the printer")
	}

	err = m.PauseQueue(context.Background(), 5)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Errorf("expected validation error for unknown index, got %v", err)
	}
}
