package models

import (
	"fmt"
	"time"
)

// Request limits for bulk endpoints
const (
	MaxBulkRecords   = 1000
	MinBatchSize     = 1
	MaxBatchSize     = 100
	DefaultBatchSize = 50
)

// BulkOperation names the kind of bulk run
type BulkOperation string

const (
	BulkOperationImport BulkOperation = "import"
	BulkOperationDelete BulkOperation = "delete"
)

// Operation tells the record validator which rules apply
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
)

// OutcomeStatus is the per-record result tag
type OutcomeStatus string

const (
	StatusCreated OutcomeStatus = "created"
	StatusUpdated OutcomeStatus = "updated"
	StatusDeleted OutcomeStatus = "deleted"
	StatusFailed  OutcomeStatus = "failed"
)

// ReasonCategory classifies why a record failed
type ReasonCategory string

const (
	ReasonValidation ReasonCategory = "validation"
	ReasonNotFound   ReasonCategory = "not_found"
	ReasonConstraint ReasonCategory = "constraint"
	ReasonInternal   ReasonCategory = "internal"
	ReasonCancelled  ReasonCategory = "cancelled"
)

// ServerSide reports whether the failure is attributable to the service rather than the input.
func (r ReasonCategory) ServerSide() bool {
	return r == ReasonInternal || r == ReasonCancelled
}

// BulkImportRequest is the body of POST /:entity/bulk-import
type BulkImportRequest struct {
	Records   []map[string]interface{} `json:"records" validate:"required,min=1,max=1000"`
	BatchSize *int                     `json:"batchSize,omitempty" validate:"omitempty,min=1,max=100"`
}

// BulkDeleteRequest is the body of /:entity/bulk-delete
type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=1000"`
}

// RecordOutcome is the classification of one input item. Produced once, never mutated.
type RecordOutcome struct {
	Index   int
	Status  OutcomeStatus
	ID      string
	Record  map[string]interface{}
	Reason  ReasonCategory
	Message string
}

// Failed reports whether the outcome is a failure
func (o RecordOutcome) Failed() bool {
	return o.Status == StatusFailed
}

// BulkError is one itemized failure in a bulk response
type BulkError struct {
	Index   int                    `json:"index"`
	ID      string                 `json:"id,omitempty"`
	Record  map[string]interface{} `json:"record,omitempty"`
	Reason  ReasonCategory         `json:"reason"`
	Message string                 `json:"message"`
}

// BulkResult is the aggregate accounting of one bulk run.
type BulkResult struct {
	Operation      BulkOperation `json:"operation"`
	Total          int           `json:"total"`
	Created        int           `json:"created"`
	Updated        int           `json:"updated"`
	Deleted        int           `json:"deleted"`
	Failed         int           `json:"failed"`
	Errors         []BulkError   `json:"errors"`
	ProcessingTime time.Duration `json:"-"`
}

// Successful is the number of records that reached the store successfully
func (r BulkResult) Successful() int {
	if r.Operation == BulkOperationDelete {
		return r.Deleted
	}
	return r.Created + r.Updated
}

// ProcessingTimeMs returns the elapsed time in whole milliseconds
func (r BulkResult) ProcessingTimeMs() int64 {
	return r.ProcessingTime.Milliseconds()
}

// SuccessRate formats Successful/Total as a percentage with two decimals, "0%" for an empty run.
func (r BulkResult) SuccessRate() string {
	if r.Total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", float64(r.Successful())/float64(r.Total)*100)
}

// BulkValidationReport is the dry-run result of validating an import batch
type BulkValidationReport struct {
	Total   int         `json:"total"`
	Valid   int         `json:"valid"`
	Invalid int         `json:"invalid"`
	Creates int         `json:"creates"`
	Updates int         `json:"updates"`
	Errors  []BulkError `json:"errors"`
}
