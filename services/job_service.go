package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/models"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/repository"
	"github.com/google/uuid"
)

// JobService queues bulk runs for the background worker
type JobService struct {
	jobs repository.JobRepository
	now  func() time.Time
}

func NewJobService(jobs repository.JobRepository) *JobService {
	return &JobService{jobs: jobs, now: func() time.Time { return time.Now().UTC() }}
}

// Submit persists a pending job carrying payload and pushes it on the queue
func (s *JobService) Submit(ctx context.Context, entity models.Entity, op models.BulkOperation, payload interface{}) (*models.BulkJob, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job payload: %w", err)
	}

	now := s.now()
	job := &models.BulkJob{
		ID:        uuid.NewString(),
		Entity:    entity,
		Operation: op,
		Status:    models.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Payload:   raw,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	if err := s.jobs.Enqueue(ctx, job.ID); err != nil {
		return nil, err
	}
	return job, nil
}

// Get returns a job without its payload
func (s *JobService) Get(ctx context.Context, id string) (*models.BulkJob, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Payload = nil
	return job, nil
}
