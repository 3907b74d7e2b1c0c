package conversion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/printmitra/printmitra-backend/pkg/enums"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
	"github.com/printmitra/printmitra-backend/pkg/redis"
)

// Job tracks one DOCX to PDF conversion through the async render path.
type Job struct {
	JobID     string                 `json:"jobId"`
	OrderRef  string                 `json:"orderId"`
	WordURL   string                 `json:"wordUrl"`
	PDFURL    string                 `json:"pdfUrl,omitempty"`
	Status    enums.ConversionStatus `json:"status"`
	Error     string                 `json:"error,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// JobStore is the capability the pipeline depends on for conversion jobs.
// Entries expire by TTL instead of explicit deletion.
type JobStore interface {
	Put(ctx context.Context, job *Job) error
	Get(ctx context.Context, jobID string) (*Job, error)
}

type jobKV interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	RenderJobKey(jobID string) string
}

type redisJobStore struct {
	kv  jobKV
	ttl time.Duration
}

// NewJobStore builds the redis-backed job store. Jobs older than ttl are
// garbage-collected by key expiry.
func NewJobStore(kv jobKV, ttl time.Duration) (JobStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisJobStore{kv: kv, ttl: ttl}, nil
}

func (s *redisJobStore) Put(ctx context.Context, job *Job) error {
	if job == nil || job.JobID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "job id required")
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal conversion job")
	}
	if err := s.kv.Set(ctx, s.kv.RenderJobKey(job.JobID), string(raw), s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store conversion job")
	}
	return nil
}

func (s *redisJobStore) Get(ctx context.Context, jobID string) (*Job, error) {
	if jobID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "job id required")
	}
	raw, err := s.kv.Get(ctx, s.kv.RenderJobKey(jobID))
	if err != nil {
		if err == redis.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "conversion job not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load conversion job")
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode conversion job")
	}
	return &job, nil
}
