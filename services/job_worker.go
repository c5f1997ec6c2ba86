package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/bulk"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/logger"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/models"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/repository"
	"go.uber.org/zap"
)

const defaultPollTimeout = 5 * time.Second

// JobWorker consumes queued bulk jobs and stores their rendered responses
type JobWorker struct {
	jobs        repository.JobRepository
	svc         *BulkService
	timeout     time.Duration
	pollTimeout time.Duration
	now         func() time.Time
}

// NewJobWorker returns a worker that runs each job under timeout
func NewJobWorker(jobs repository.JobRepository, svc *BulkService, timeout time.Duration) *JobWorker {
	return &JobWorker{
		jobs:        jobs,
		svc:         svc,
		timeout:     timeout,
		pollTimeout: defaultPollTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run processes jobs until ctx is cancelled
func (w *JobWorker) Run(ctx context.Context) {
	zap.L().Info("Bulk job worker started")
	for {
		if ctx.Err() != nil {
			zap.L().Info("Bulk job worker stopping")
			return
		}

		id, err := w.jobs.Dequeue(ctx, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			zap.L().Error("Failed to dequeue bulk job", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if id == "" {
			continue
		}

		if err := w.processOne(ctx, id); err != nil {
			zap.L().Error("Bulk job failed", zap.String("job", id), zap.Error(err))
		}
	}
}

func (w *JobWorker) processOne(parent context.Context, id string) error {
	ctx := logger.WithContext(parent, "job-"+id)

	job, err := w.jobs.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	job.Status = models.JobStatusProcessing
	job.UpdatedAt = w.now()
	if err := w.jobs.Save(ctx, job); err != nil {
		return err
	}

	runCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	res, err := w.execute(runCtx, job)
	switch {
	case errors.Is(err, bulk.ErrStoreUnavailable):
		job.Status = models.JobStatusFailed
		job.StatusCode = http.StatusServiceUnavailable
		job.Error = "Database connection error"
		if res.Total > 0 {
			job.Response = models.NewBulkResponse(res).WithError(job.Error)
		}
	case err != nil:
		job.Status = models.JobStatusFailed
		job.StatusCode = http.StatusInternalServerError
		job.Error = err.Error()
	default:
		job.Status = models.JobStatusDone
		job.StatusCode = bulk.Classify(res).Status
		job.Response = models.NewBulkResponse(res)
	}
	job.Payload = nil
	job.UpdatedAt = w.now()

	// the run may have used up the parent deadline; the final state must still land
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if saveErr := w.jobs.Save(saveCtx, job); saveErr != nil {
		return saveErr
	}
	return err
}

func (w *JobWorker) execute(ctx context.Context, job *models.BulkJob) (models.BulkResult, error) {
	switch job.Operation {
	case models.BulkOperationImport:
		var req models.BulkImportRequest
		if err := json.Unmarshal(job.Payload, &req); err != nil {
			return models.BulkResult{}, fmt.Errorf("invalid job payload: %w", err)
		}
		return w.svc.Import(ctx, job.Entity, req)
	case models.BulkOperationDelete:
		var req models.BulkDeleteRequest
		if err := json.Unmarshal(job.Payload, &req); err != nil {
			return models.BulkResult{}, fmt.Errorf("invalid job payload: %w", err)
		}
		return w.svc.Delete(ctx, job.Entity, req.IDs)
	default:
		return models.BulkResult{}, fmt.Errorf("unsupported job operation %q", job.Operation)
	}
}
