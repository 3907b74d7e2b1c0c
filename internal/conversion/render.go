package conversion

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
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
)

// renderClient submits documents to the async render service.
type renderClient struct {
	httpClient  *http.Client
	serviceURL  string
	callbackURL string
	secret      string
}

// NewRenderClient builds the async render submitter. Returns nil when no
// render service is configured so the pipeline can detect the absence.
func NewRenderClient(cfg config.ConversionConfig, appBaseURL string) RenderSubmitter {
	if cfg.RenderServiceURL == "" {
		return nil
	}
	timeout := cfg.RenderTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &renderClient{
		httpClient:  &http.Client{Timeout: timeout},
		serviceURL:  strings.TrimRight(cfg.RenderServiceURL, "/"),
		callbackURL: strings.TrimRight(appBaseURL, "/") + "/webhooks/render",
		secret:      cfg.WebhookSecret,
	}
}

func (r *renderClient) Submit(ctx context.Context, jobID, wordURL string) error {
	body, err := json.Marshal(map[string]string{
		"jobId":       jobID,
		"wordUrl":     wordURL,
		"callbackUrl": r.callbackURL,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal render request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.serviceURL+"/render", bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build render request")
	}
	req.Header.Set("Content-Type", "application/json")
	if r.secret != "" {
		req.Header.Set("X-Render-Webhook-Secret", r.secret)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "render service unreachable")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("render service returned %s", resp.Status))
	}
	return nil
}
