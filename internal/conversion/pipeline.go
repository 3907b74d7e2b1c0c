package conversion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/printmitra/printmitra-backend/pkg/config"
	"github.com/printmitra/printmitra-backend/pkg/db/models"
	"github.com/printmitra/printmitra-backend/pkg/enums"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
	"github.com/printmitra/printmitra-backend/pkg/logger"
)

type docConverter interface {
	Convert(ctx context.Context, docx []byte) ([]byte, error)
}

type RenderSubmitter interface {
	Submit(ctx context.Context, jobID, wordURL string) error
}

type orderUpdater interface {
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

// Pipeline converts filled DOCX documents to PDF. Synchronous conversion
// cascades primary API then local CLI; the async render path is for
// latency-sensitive callers that cannot block on either.
type Pipeline struct {
	primary docConverter
	local   docConverter
	render  RenderSubmitter
	jobs    JobStore
	orders  orderUpdater
	logg    *logger.Logger
	now     func() time.Time
}

// PipelineParams bundles the pipeline dependencies. Render may be nil when
// no render service is configured; SubmitAsync then fails with a dependency
// error.
type PipelineParams struct {
	Config config.ConversionConfig
	Render RenderSubmitter
	Jobs   JobStore
	Orders orderUpdater
	Logger *logger.Logger
}

// NewPipeline builds the conversion pipeline.
func NewPipeline(params PipelineParams) (*Pipeline, error) {
	if params.Jobs == nil {
		return nil, fmt.Errorf("job store required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order updater required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	var primary docConverter
	remote := newRemoteConverter(params.Config, params.Logger)
	if remote.configured() {
		primary = remote
	}

	return &Pipeline{
		primary: primary,
		local:   newLocalConverter(params.Config),
		render:  params.Render,
		jobs:    params.Jobs,
		orders:  params.Orders,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

// Convert runs the synchronous provider cascade: primary API first, local
// CLI as fallback. When both fail the error carries both causes.
func (p *Pipeline) Convert(ctx context.Context, docx []byte) ([]byte, error) {
	if len(docx) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "empty document")
	}

	var primaryErr error
	if p.primary != nil {
		pdf, err := p.primary.Convert(ctx, docx)
		if err == nil {
			return pdf, nil
		}
		primaryErr = err
		p.logg.Warn(ctx, "primary conversion failed, falling back to local tool")
	}

	pdf, localErr := p.local.Convert(ctx, docx)
	if localErr == nil {
		return pdf, nil
	}

	combined := multierr.Append(primaryErr, localErr)
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, combined, "all conversion providers failed")
}

// SubmitAsync hands the document to the render service and records a
// processing job. The caller proceeds without blocking; completion arrives
// via the render webhook.
func (p *Pipeline) SubmitAsync(ctx context.Context, order *models.Order, docxURL string) (*Job, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if docxURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document url required")
	}
	if p.render == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "render service not configured")
	}

	job := &Job{
		JobID:     uuid.NewString(),
		OrderRef:  order.OrderRef,
		WordURL:   docxURL,
		Status:    enums.ConversionStatusProcessing,
		CreatedAt: p.now().UTC(),
	}

	if err := p.render.Submit(ctx, job.JobID, docxURL); err != nil {
		return nil, err
	}
	if err := p.jobs.Put(ctx, job); err != nil {
		return nil, err
	}
	if err := p.orders.UpdateFields(ctx, order.ID, map[string]any{
		"render_job_id":         job.JobID,
		"pdf_conversion_status": enums.ConversionStatusProcessing,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record render job on order")
	}

	ctx = p.logg.WithJobID(p.logg.WithOrderID(ctx, order.OrderRef), job.JobID)
	p.logg.Info(ctx, "async conversion submitted")
	return job, nil
}

// StatusResult is the poll answer for one conversion job.
type StatusResult struct {
	Status   enums.ConversionStatus `json:"status"`
	Progress int                    `json:"progress"`
	PDFURL   string                 `json:"pdfUrl,omitempty"`
	WordURL  string                 `json:"wordUrl,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// Status reports a job's state with an elapsed-time progress heuristic. The
// number is a UX affordance: it grows monotonically while processing and
// saturates below 100 until the webhook lands.
func (p *Pipeline) Status(ctx context.Context, jobID string) (*StatusResult, error) {
	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &StatusResult{
		Status:   job.Status,
		Progress: progressFor(job, p.now()),
		PDFURL:   job.PDFURL,
		WordURL:  job.WordURL,
		Error:    job.Error,
	}, nil
}

func progressFor(job *Job, now time.Time) int {
	switch job.Status {
	case enums.ConversionStatusCompleted, enums.ConversionStatusFailed:
		return 100
	}
	elapsed := now.Sub(job.CreatedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	progress := 5 + int(elapsed/(2*time.Second))
	if progress > 95 {
		progress = 95
	}
	return progress
}
