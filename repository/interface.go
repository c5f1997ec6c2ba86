package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("duplicate key")
	ErrInvalidID       = errors.New("invalid record id")
	ErrInvalidDocument = errors.New("document failed store validation")
	ErrJobNotFound     = errors.New("bulk job not found")
)

// RecordStore is the document store contract used by the bulk engine.
// It uses plain Go types so the engine can be exercised without a driver.
type RecordStore interface {
	CreateOne(ctx context.Context, fields map[string]interface{}) (string, error)
	UpdateByID(ctx context.Context, id string, fields map[string]interface{}) error
	DeleteByID(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// StoreProvider resolves the record store for an entity
type StoreProvider interface {
	Store(entity models.Entity) (RecordStore, error)
}

// JobRepository persists async bulk jobs and their queue
type JobRepository interface {
	Create(ctx context.Context, job *models.BulkJob) error
	Get(ctx context.Context, id string) (*models.BulkJob, error)
	Save(ctx context.Context, job *models.BulkJob) error
	Enqueue(ctx context.Context, id string) error
	Dequeue(ctx context.Context, timeout time.Duration) (string, error)
}
