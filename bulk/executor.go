package bulk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/logger"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/models"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/repository"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/validation"
	"go.uber.org/zap"
)

const internalFailureMessage = "internal error while processing record"

// RecordValidator turns a raw record into a store-ready document
type RecordValidator interface {
	Validate(entity models.Entity, raw map[string]interface{}, op models.Operation) (*validation.NormalizedRecord, error)
}

// UpsertExecutor creates or updates one record and classifies the result.
// It never returns an error; every failure becomes a failed outcome.
type UpsertExecutor struct {
	entity    models.Entity
	validator RecordValidator
	store     repository.RecordStore
}

func NewUpsertExecutor(entity models.Entity, validator RecordValidator, store repository.RecordStore) *UpsertExecutor {
	return &UpsertExecutor{entity: entity, validator: validator, store: store}
}

// Execute makes at most one store mutation for raw
func (e *UpsertExecutor) Execute(ctx context.Context, raw map[string]interface{}, index int) (out models.RecordOutcome) {
	id := validation.RecordIdentifier(raw)
	op := validation.OperationFor(raw)

	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "Panic while importing record", fmt.Errorf("%v", r),
				zap.String("entity", string(e.entity)),
				zap.Int("index", index),
			)
			out = failed(index, id, raw, models.ReasonInternal, internalFailureMessage)
		}
	}()

	rec, err := e.validator.Validate(e.entity, raw, op)
	if err != nil {
		return e.failure(ctx, index, id, raw, err)
	}

	switch op {
	case models.OperationUpdate:
		if err := e.store.UpdateByID(ctx, rec.ID, rec.Fields); err != nil {
			return e.failure(ctx, index, id, raw, err)
		}
		return models.RecordOutcome{Index: index, Status: models.StatusUpdated, ID: rec.ID}
	default:
		newID, err := e.store.CreateOne(ctx, rec.Fields)
		if err != nil {
			return e.failure(ctx, index, id, raw, err)
		}
		return models.RecordOutcome{Index: index, Status: models.StatusCreated, ID: newID}
	}
}

func (e *UpsertExecutor) failure(ctx context.Context, index int, id string, raw map[string]interface{}, err error) models.RecordOutcome {
	// Records that carry an id are reported by id; the rest echo the input
	record := raw
	if id != "" {
		record = nil
	}
	return classifyFailure(ctx, e.entity, index, id, record, err)
}

// DeleteExecutor removes one record by id and classifies the result
type DeleteExecutor struct {
	entity models.Entity
	store  repository.RecordStore
}

func NewDeleteExecutor(entity models.Entity, store repository.RecordStore) *DeleteExecutor {
	return &DeleteExecutor{entity: entity, store: store}
}

func (e *DeleteExecutor) Execute(ctx context.Context, id string, index int) (out models.RecordOutcome) {
	id = strings.TrimSpace(id)

	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "Panic while deleting record", fmt.Errorf("%v", r),
				zap.String("entity", string(e.entity)),
				zap.Int("index", index),
			)
			out = failed(index, id, nil, models.ReasonInternal, internalFailureMessage)
		}
	}()

	if id == "" {
		return failed(index, "", nil, models.ReasonValidation, "id must not be empty")
	}
	if err := e.store.DeleteByID(ctx, id); err != nil {
		return classifyFailure(ctx, e.entity, index, id, nil, err)
	}
	return models.RecordOutcome{Index: index, Status: models.StatusDeleted, ID: id}
}

const (
	cancelledMessage   = "request cancelled before the record was processed"
	unavailableMessage = "store unavailable"
)

// cancelledOutcome marks an item the run never attempted
func cancelledOutcome(index int, id string, record map[string]interface{}) models.RecordOutcome {
	return failed(index, id, record, models.ReasonCancelled, cancelledMessage)
}

func failed(index int, id string, record map[string]interface{}, reason models.ReasonCategory, msg string) models.RecordOutcome {
	return models.RecordOutcome{
		Index:   index,
		Status:  models.StatusFailed,
		ID:      id,
		Record:  record,
		Reason:  reason,
		Message: msg,
	}
}

func classifyFailure(ctx context.Context, entity models.Entity, index int, id string, record map[string]interface{}, err error) models.RecordOutcome {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		logger.Debug(ctx, "Record failed validation",
			zap.String("entity", string(entity)),
			zap.Int("index", index),
			zap.String("reason", verr.Error()),
		)
		return failed(index, id, record, models.ReasonValidation, verr.Error())
	case errors.Is(err, repository.ErrNotFound):
		return failed(index, id, record, models.ReasonNotFound, fmt.Sprintf("record %s not found", id))
	case errors.Is(err, repository.ErrDuplicate):
		return failed(index, id, record, models.ReasonConstraint, "a record with the same unique key already exists")
	case errors.Is(err, repository.ErrInvalidID):
		return failed(index, id, record, models.ReasonValidation, fmt.Sprintf("invalid id %q", id))
	case errors.Is(err, repository.ErrInvalidDocument):
		return failed(index, id, record, models.ReasonValidation, "record rejected by store validation")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return cancelledOutcome(index, id, record)
	default:
		logger.Error(ctx, "Unexpected error while processing bulk record", err,
			zap.String("entity", string(entity)),
			zap.Int("index", index),
			zap.String("id", id),
		)
		return failed(index, id, record, models.ReasonInternal, internalFailureMessage)
	}
}
