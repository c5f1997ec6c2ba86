package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/apperrors"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/bulk"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/logger"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/models"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BulkServiceAPI runs bulk imports and deletes
type BulkServiceAPI interface {
	Supports(entity models.Entity) bool
	Import(ctx context.Context, entity models.Entity, req models.BulkImportRequest) (models.BulkResult, error)
	Delete(ctx context.Context, entity models.Entity, ids []string) (models.BulkResult, error)
	ValidateImport(ctx context.Context, entity models.Entity, records []map[string]interface{}) (models.BulkValidationReport, error)
}

// JobServiceAPI queues bulk runs for background processing
type JobServiceAPI interface {
	Submit(ctx context.Context, entity models.Entity, op models.BulkOperation, payload interface{}) (*models.BulkJob, error)
	Get(ctx context.Context, id string) (*models.BulkJob, error)
}

var (
	errUnknownEntity = apperrors.New(http.StatusNotFound, "Unknown entity", nil)
	errJobNotFound   = apperrors.New(http.StatusNotFound, "Job not found", nil)
	errAsyncDisabled = apperrors.New(http.StatusServiceUnavailable, "Async bulk processing is not available", nil)
)

// BulkController serves the bulk import, validate, delete and job routes
type BulkController struct {
	svc       BulkServiceAPI
	jobs      JobServiceAPI
	validator *RequestValidator
}

// NewBulkController wires the handlers. jobs may be nil, which disables ?async=true.
func NewBulkController(svc BulkServiceAPI, jobs JobServiceAPI, validator *RequestValidator) *BulkController {
	if validator == nil {
		validator = NewRequestValidator()
	}
	return &BulkController{svc: svc, jobs: jobs, validator: validator}
}

// ImportRecords handles POST /:entity/bulk-import
func (h *BulkController) ImportRecords(c *gin.Context) {
	entity, ok := h.entity(c)
	if !ok {
		return
	}
	var req models.BulkImportRequest
	if !h.bind(c, &req) {
		return
	}

	if isAsync(c) {
		h.enqueue(c, entity, models.BulkOperationImport, req)
		return
	}

	res, err := h.svc.Import(c.Request.Context(), entity, req)
	if err != nil {
		h.runError(c, res, err)
		return
	}
	c.JSON(bulk.Classify(res).Status, models.NewBulkResponse(res))
}

// ValidateImport handles POST /:entity/bulk-import/validate
func (h *BulkController) ValidateImport(c *gin.Context) {
	entity, ok := h.entity(c)
	if !ok {
		return
	}
	var req models.BulkImportRequest
	if !h.bind(c, &req) {
		return
	}

	report, err := h.svc.ValidateImport(c.Request.Context(), entity, req.Records)
	if err != nil {
		h.runError(c, models.BulkResult{}, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// DeleteRecords handles POST and DELETE /:entity/bulk-delete
func (h *BulkController) DeleteRecords(c *gin.Context) {
	entity, ok := h.entity(c)
	if !ok {
		return
	}
	var req models.BulkDeleteRequest
	if !h.bind(c, &req) {
		return
	}

	if isAsync(c) {
		h.enqueue(c, entity, models.BulkOperationDelete, req)
		return
	}

	res, err := h.svc.Delete(c.Request.Context(), entity, req.IDs)
	if err != nil {
		h.runError(c, res, err)
		return
	}
	c.JSON(bulk.Classify(res).Status, models.NewBulkResponse(res))
}

// GetJob handles GET /bulk-jobs/:id
func (h *BulkController) GetJob(c *gin.Context) {
	if h.jobs == nil {
		_ = c.Error(errAsyncDisabled)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		_ = c.Error(apperrors.ErrBadRequest.WithDetails("job id is required"))
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), id)
	if errors.Is(err, repository.ErrJobNotFound) {
		_ = c.Error(errJobNotFound)
		return
	}
	if err != nil {
		logger.Error(c, "Failed to get job status", err, zap.String("job", id))
		_ = c.Error(apperrors.ErrInternalServer.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *BulkController) entity(c *gin.Context) (models.Entity, bool) {
	entity, ok := models.ParseEntity(c.Param("entity"))
	if !ok || !h.svc.Supports(entity) {
		_ = c.Error(errUnknownEntity)
		return "", false
	}
	return entity, true
}

func (h *BulkController) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(apperrors.ErrInvalidInput.WithDetails("request body must be valid JSON: " + err.Error()))
		return false
	}
	if msgs := h.validator.Validate(req); len(msgs) > 0 {
		_ = c.Error(apperrors.ErrValidation.WithDetails(msgs))
		return false
	}
	return true
}

func (h *BulkController) enqueue(c *gin.Context, entity models.Entity, op models.BulkOperation, payload interface{}) {
	if h.jobs == nil {
		_ = c.Error(errAsyncDisabled)
		return
	}
	job, err := h.jobs.Submit(c.Request.Context(), entity, op, payload)
	if err != nil {
		logger.Error(c, "Failed to enqueue bulk job", err, zap.String("entity", string(entity)))
		_ = c.Error(apperrors.New(http.StatusInternalServerError, "Failed to queue bulk job", err))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  job.ID,
		"message": "Bulk " + string(op) + " queued for processing",
	})
}

// runError renders a failed run. A store lost mid-run still reports what was
// already written.
func (h *BulkController) runError(c *gin.Context, res models.BulkResult, err error) {
	switch {
	case errors.Is(err, bulk.ErrStoreUnavailable) && res.Total > 0:
		logger.Warn(c, "Bulk run aborted after partial processing", zap.Error(err))
		appErr := apperrors.ErrDatabaseConnection
		c.JSON(appErr.Code, models.NewBulkResponse(res).WithError(appErr.Message))
	case errors.Is(err, bulk.ErrStoreUnavailable):
		_ = c.Error(apperrors.ErrDatabaseConnection.Wrap(err))
	default:
		logger.Error(c, "Bulk run failed", err)
		_ = c.Error(apperrors.ErrInternalServer.Wrap(err))
	}
}

func isAsync(c *gin.Context) bool {
	return strings.EqualFold(strings.TrimSpace(c.Query("async")), "true")
}
