package conversion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/printmitra/printmitra-backend/pkg/config"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
	"github.com/printmitra/printmitra-backend/pkg/logger"
)

// remoteConverter calls the primary conversion API synchronously.
type remoteConverter struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	logg       *logger.Logger
}

func newRemoteConverter(cfg config.ConversionConfig, logg *logger.Logger) *remoteConverter {
	timeout := cfg.PrimaryTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &remoteConverter{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     cfg.PrimaryAPIURL,
		apiKey:     cfg.PrimaryAPIKey,
		logg:       logg,
	}
}

func (r *remoteConverter) configured() bool {
	return r.apiURL != ""
}

func (r *remoteConverter) Convert(ctx context.Context, docx []byte) ([]byte, error) {
	if !r.configured() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "primary conversion api not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiURL, bytes.NewReader(docx))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build conversion request")
	}
	req.Header.Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	req.Header.Set("Accept", "application/pdf")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "cause", "transient"), "primary conversion api unreachable")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "primary conversion api unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		cause := classifyAPIFailure(resp.StatusCode)
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"status": resp.StatusCode,
			"cause":  cause,
		}), "primary conversion api failed")
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("primary conversion api returned %s (%s)", resp.Status, cause)).
			WithDetails(map[string]string{"body": strings.TrimSpace(string(snippet))})
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read converted pdf")
	}
	if len(pdf) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "primary conversion api returned empty body")
	}
	return pdf, nil
}

// classifyAPIFailure distinguishes quota/auth failures, which will not heal
// on retry, from transient ones in the logs.
func classifyAPIFailure(status int) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "auth"
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return "quota"
	default:
		return "transient"
	}
}
