package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/printmitra/printmitra-backend/pkg/config"
	"github.com/printmitra/printmitra-backend/pkg/enums"
	"github.com/printmitra/printmitra-backend/pkg/logger"
	"github.com/printmitra/printmitra-backend/pkg/redis"
)

// Notifier delivers customer-facing events. Delivery is fire-and-forget:
// failures are logged and reported as false, never as errors.
type Notifier interface {
	Notify(ctx context.Context, event enums.NotificationEvent, payload map[string]any) bool
	NotifyOnce(ctx context.Context, event enums.NotificationEvent, dedupID string, payload map[string]any) bool
}

type notifier struct {
	httpClient *http.Client
	serviceURL string
	dedup      redis.DedupStore
	dedupTTL   time.Duration
	logg       *logger.Logger
}

// NewNotifier builds the HTTP notifier. A nil dedup store disables
// NotifyOnce suppression (every call sends).
func NewNotifier(cfg config.NotifyConfig, dedup redis.DedupStore, logg *logger.Logger) (Notifier, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &notifier{
		httpClient: &http.Client{Timeout: timeout},
		serviceURL: cfg.ServiceURL,
		dedup:      dedup,
		dedupTTL:   cfg.DedupTTL,
		logg:       logg,
	}, nil
}

func (n *notifier) Notify(ctx context.Context, event enums.NotificationEvent, payload map[string]any) bool {
	if n.serviceURL == "" {
		n.logg.Warn(ctx, "notification service url not configured, dropping event")
		return false
	}

	body, err := json.Marshal(map[string]any{
		"event":   event.String(),
		"payload": payload,
	})
	if err != nil {
		n.logg.Error(ctx, "marshal notification", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.serviceURL, bytes.NewReader(body))
	if err != nil {
		n.logg.Error(ctx, "build notification request", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logg.Error(ctx, "send notification", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.logg.Warn(n.logg.WithField(ctx, "status", resp.StatusCode), "notification service rejected event")
		return false
	}
	return true
}

// NotifyOnce suppresses repeats of the same (event, dedupID) pair for the
// configured TTL. Used by webhook replays so customers get one PDF-ready
// notice per order.
func (n *notifier) NotifyOnce(ctx context.Context, event enums.NotificationEvent, dedupID string, payload map[string]any) bool {
	if n.dedup != nil && dedupID != "" {
		key := n.dedup.IdempotencyKey("notify:"+event.String(), dedupID)
		acquired, err := n.dedup.SetNX(ctx, key, "1", n.dedupTTL)
		if err != nil {
			// Dedup store trouble must not swallow the notice.
			n.logg.Error(ctx, "notification dedup check", err)
		} else if !acquired {
			return true
		}
	}
	return n.Notify(ctx, event, payload)
}
