package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/models"
	"github.com/redis/go-redis/v9"
)

const (
	jobKeyPrefix = "bulk:job:"
	jobQueueKey  = "bulk:queue"
)

// RedisJobRepository stores bulk jobs as JSON values with a TTL and queues ids in a list
type RedisJobRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisJobRepository(rdb *redis.Client, ttl time.Duration) *RedisJobRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisJobRepository{rdb: rdb, ttl: ttl}
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

func (r *RedisJobRepository) Create(ctx context.Context, job *models.BulkJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	ok, err := r.rdb.SetNX(ctx, jobKey(job.ID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store job metadata: %w", err)
	}
	if !ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	return nil
}

func (r *RedisJobRepository) Get(ctx context.Context, id string) (*models.BulkJob, error) {
	val, err := r.rdb.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job %s: %w", id, err)
	}

	var job models.BulkJob
	if err := json.Unmarshal(val, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job %s: %w", id, err)
	}
	return &job, nil
}

func (r *RedisJobRepository) Save(ctx context.Context, job *models.BulkJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := r.rdb.Set(ctx, jobKey(job.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

func (r *RedisJobRepository) Enqueue(ctx context.Context, id string) error {
	if err := r.rdb.RPush(ctx, jobQueueKey, id).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job id. It returns "" with a nil
// error when the wait times out.
func (r *RedisJobRepository) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := r.rdb.BLPop(ctx, timeout, jobQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}
