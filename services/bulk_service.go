package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/bulk"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/logger"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/models"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/repository"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/validation"
	"go.uber.org/zap"
)

// MetricsRecorder publishes the accounting of a finished bulk run
type MetricsRecorder interface {
	RecordBulkRun(ctx context.Context, entity, operation, outcome string, processed, failed int, elapsed time.Duration) error
}

// BulkService dispatches bulk runs to the engine of each entity
type BulkService struct {
	engines   map[models.Entity]*bulk.Engine
	validator *validation.RecordValidator
	metrics   MetricsRecorder
}

// NewBulkService builds one engine per entity that has both a schema and a store.
// metrics may be nil.
func NewBulkService(stores repository.StoreProvider, validator *validation.RecordValidator, metrics MetricsRecorder, opts bulk.Options) (*BulkService, error) {
	engines := make(map[models.Entity]*bulk.Engine, len(models.Entities))
	for _, entity := range models.Entities {
		if !validator.Supports(entity) {
			continue
		}
		store, err := stores.Store(entity)
		if err != nil {
			return nil, fmt.Errorf("resolve store for %s: %w", entity, err)
		}
		engines[entity] = bulk.NewEngine(entity, validator, store, opts)
	}
	return &BulkService{engines: engines, validator: validator, metrics: metrics}, nil
}

// Supports reports whether bulk routes are served for the entity
func (s *BulkService) Supports(entity models.Entity) bool {
	_, ok := s.engines[entity]
	return ok
}

func (s *BulkService) engine(entity models.Entity) (*bulk.Engine, error) {
	e, ok := s.engines[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", validation.ErrUnknownEntity, entity)
	}
	return e, nil
}

// Import runs a bulk upsert for entity
func (s *BulkService) Import(ctx context.Context, entity models.Entity, req models.BulkImportRequest) (models.BulkResult, error) {
	engine, err := s.engine(entity)
	if err != nil {
		return models.BulkResult{}, err
	}

	batchSize := 0
	if req.BatchSize != nil {
		batchSize = *req.BatchSize
	}

	logger.Info(ctx, "Bulk import started",
		zap.String("entity", string(entity)),
		zap.Int("records", len(req.Records)),
		zap.Int("batch_size", batchSize),
	)

	res, err := engine.Import(ctx, req.Records, batchSize)
	if err != nil {
		logger.Error(ctx, "Bulk import aborted", err, zap.String("entity", string(entity)))
		if res.Total > 0 {
			s.finish(ctx, entity, res)
		}
		return res, err
	}
	s.finish(ctx, entity, res)
	return res, nil
}

// Delete runs a bulk delete for entity
func (s *BulkService) Delete(ctx context.Context, entity models.Entity, ids []string) (models.BulkResult, error) {
	engine, err := s.engine(entity)
	if err != nil {
		return models.BulkResult{}, err
	}

	logger.Info(ctx, "Bulk delete started",
		zap.String("entity", string(entity)),
		zap.Int("ids", len(ids)),
	)

	res, err := engine.Delete(ctx, ids)
	if err != nil {
		logger.Error(ctx, "Bulk delete aborted", err, zap.String("entity", string(entity)))
		if res.Total > 0 {
			s.finish(ctx, entity, res)
		}
		return res, err
	}
	s.finish(ctx, entity, res)
	return res, nil
}

func (s *BulkService) finish(ctx context.Context, entity models.Entity, res models.BulkResult) {
	outcome := bulk.Classify(res)

	logger.Info(ctx, "Bulk run completed",
		zap.String("entity", string(entity)),
		zap.String("operation", string(res.Operation)),
		zap.String("outcome", string(outcome.Kind)),
		zap.Int("total", res.Total),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("deleted", res.Deleted),
		zap.Int("failed", res.Failed),
		zap.Duration("elapsed", res.ProcessingTime),
	)

	if s.metrics == nil {
		return
	}
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.metrics.RecordBulkRun(mctx, string(entity), string(res.Operation), string(outcome.Kind), res.Successful(), res.Failed, res.ProcessingTime); err != nil {
		logger.Warn(ctx, "Failed to publish bulk metrics", zap.Error(err))
	}
}

// ValidateImport checks every record against the entity schema without touching the store
func (s *BulkService) ValidateImport(ctx context.Context, entity models.Entity, records []map[string]interface{}) (models.BulkValidationReport, error) {
	if !s.validator.Supports(entity) {
		return models.BulkValidationReport{}, fmt.Errorf("%w: %s", validation.ErrUnknownEntity, entity)
	}

	report := models.BulkValidationReport{Total: len(records), Errors: []models.BulkError{}}
	for i, raw := range records {
		op := validation.OperationFor(raw)
		if _, err := s.validator.Validate(entity, raw, op); err != nil {
			report.Invalid++
			report.Errors = append(report.Errors, validationError(i, raw, err))
			continue
		}
		report.Valid++
		if op == models.OperationUpdate {
			report.Updates++
		} else {
			report.Creates++
		}
	}

	logger.Debug(ctx, "Bulk import validated",
		zap.String("entity", string(entity)),
		zap.Int("valid", report.Valid),
		zap.Int("invalid", report.Invalid),
	)
	return report, nil
}

func validationError(index int, raw map[string]interface{}, err error) models.BulkError {
	be := models.BulkError{Index: index, Reason: models.ReasonValidation, Message: err.Error()}
	if id := validation.RecordIdentifier(raw); id != "" {
		be.ID = id
	} else {
		be.Record = raw
	}
	return be
}
