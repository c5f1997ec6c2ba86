package bulk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/models"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/repository"
	"golang.org/x/sync/errgroup"
)

// ErrStoreUnavailable aborts a run when the record store cannot be reached
var ErrStoreUnavailable = errors.New("record store unavailable")

// Options tunes an Engine. Zero values fall back to the package defaults.
type Options struct {
	DefaultBatchSize int
	DeleteBatchSize  int
	// MaxConcurrency bounds the goroutines working on one sub-batch; 1 is sequential
	MaxConcurrency int
}

// Engine runs bulk imports and deletes for one entity. It keeps no state
// between runs and is safe for concurrent use.
type Engine struct {
	entity models.Entity
	store  repository.RecordStore
	upsert *UpsertExecutor
	remove *DeleteExecutor
	opts   Options
}

func NewEngine(entity models.Entity, validator RecordValidator, store repository.RecordStore, opts Options) *Engine {
	if opts.DefaultBatchSize <= 0 {
		opts.DefaultBatchSize = models.DefaultBatchSize
	}
	opts.DefaultBatchSize = ClampBatchSize(opts.DefaultBatchSize, models.DefaultBatchSize)
	if opts.DeleteBatchSize <= 0 {
		opts.DeleteBatchSize = models.DefaultBatchSize
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}
	return &Engine{
		entity: entity,
		store:  store,
		upsert: NewUpsertExecutor(entity, validator, store),
		remove: NewDeleteExecutor(entity, store),
		opts:   opts,
	}
}

// Entity returns the entity this engine writes
func (e *Engine) Entity() models.Entity { return e.entity }

// ClampBatchSize maps a requested size into [MinBatchSize, MaxBatchSize], using def for 0
func ClampBatchSize(size, def int) int {
	switch {
	case size <= 0:
		return def
	case size > models.MaxBatchSize:
		return models.MaxBatchSize
	default:
		return size
	}
}

// Import upserts every record in sub-batches of batchSize. Per-record failures
// are reported in the result. ErrStoreUnavailable is returned with an empty
// result when the preflight ping fails, and with the partial accounting when the
// store is lost mid-run.
func (e *Engine) Import(ctx context.Context, records []map[string]interface{}, batchSize int) (models.BulkResult, error) {
	start := time.Now()
	size := ClampBatchSize(batchSize, e.opts.DefaultBatchSize)

	outcomes, err := run(ctx, e, records, size,
		e.upsert.Execute,
		func(raw map[string]interface{}, index int, reason models.ReasonCategory, msg string) models.RecordOutcome {
			return failed(index, "", raw, reason, msg)
		},
	)
	if outcomes == nil {
		return models.BulkResult{}, err
	}

	res := aggregate(models.BulkOperationImport, outcomes)
	res.ProcessingTime = time.Since(start)
	return res, err
}

// Delete removes every id in sub-batches of the configured delete batch size.
// Errors follow Import.
func (e *Engine) Delete(ctx context.Context, ids []string) (models.BulkResult, error) {
	start := time.Now()

	outcomes, err := run(ctx, e, ids, e.opts.DeleteBatchSize,
		e.remove.Execute,
		func(id string, index int, reason models.ReasonCategory, msg string) models.RecordOutcome {
			return failed(index, id, nil, reason, msg)
		},
	)
	if outcomes == nil {
		return models.BulkResult{}, err
	}

	res := aggregate(models.BulkOperationDelete, outcomes)
	res.ProcessingTime = time.Since(start)
	return res, err
}

type executeFunc[T any] func(ctx context.Context, item T, index int) models.RecordOutcome

// skipFunc builds the outcome of an item the run never attempted
type skipFunc[T any] func(item T, index int, reason models.ReasonCategory, msg string) models.RecordOutcome

// run processes items batch by batch and returns one outcome per item, indexed
// like items. Outcomes are nil only when the preflight ping fails.
func run[T any](ctx context.Context, e *Engine, items []T, size int, exec executeFunc[T], skip skipFunc[T]) ([]models.RecordOutcome, error) {
	outcomes := make([]models.RecordOutcome, len(items))
	if len(items) == 0 {
		return outcomes, nil
	}

	if ctx.Err() == nil {
		if err := e.store.Ping(ctx); err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	offset := 0
	for _, batch := range Split(items, size) {
		if ctx.Err() != nil {
			for i := offset; i < len(items); i++ {
				outcomes[i] = skip(items[i], i, models.ReasonCancelled, cancelledMessage)
			}
			break
		}

		runBatch(ctx, e.opts.MaxConcurrency, batch, offset, outcomes, exec, skip)
		offset += len(batch)

		if allInternal(outcomes[offset-len(batch):offset]) && ctx.Err() == nil {
			if err := e.store.Ping(ctx); err != nil {
				for i := offset; i < len(items); i++ {
					outcomes[i] = skip(items[i], i, models.ReasonInternal, unavailableMessage)
				}
				return outcomes, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
		}
	}
	return outcomes, nil
}

// runBatch fills outcomes[offset:offset+len(batch)]. With MaxConcurrency > 1
// records fan out over at most min(len(batch), MaxConcurrency) goroutines, each
// writing only its own slot; the call returns after all of them finish.
func runBatch[T any](ctx context.Context, workers int, batch []T, offset int, outcomes []models.RecordOutcome, exec executeFunc[T], skip skipFunc[T]) {
	one := func(i int) {
		index := offset + i
		if ctx.Err() != nil {
			outcomes[index] = skip(batch[i], index, models.ReasonCancelled, cancelledMessage)
			return
		}
		outcomes[index] = exec(ctx, batch[i], index)
	}

	workers = min(workers, len(batch))
	if workers <= 1 {
		for i := range batch {
			one(i)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range batch {
		g.Go(func() error {
			one(i)
			return nil
		})
	}
	_ = g.Wait()
}

func allInternal(outcomes []models.RecordOutcome) bool {
	if len(outcomes) == 0 {
		return false
	}
	for _, o := range outcomes {
		if o.Reason != models.ReasonInternal {
			return false
		}
	}
	return true
}

// aggregate folds outcomes, already in input order, into a BulkResult
func aggregate(op models.BulkOperation, outcomes []models.RecordOutcome) models.BulkResult {
	res := models.BulkResult{
		Operation: op,
		Total:     len(outcomes),
		Errors:    []models.BulkError{},
	}
	for _, o := range outcomes {
		if o.Failed() {
			res.Failed++
			res.Errors = append(res.Errors, models.BulkError{
				Index:   o.Index,
				ID:      o.ID,
				Record:  o.Record,
				Reason:  o.Reason,
				Message: o.Message,
			})
			continue
		}
		switch o.Status {
		case models.StatusCreated:
			res.Created++
		case models.StatusUpdated:
			res.Updated++
		case models.StatusDeleted:
			res.Deleted++
		}
	}
	return res
}
