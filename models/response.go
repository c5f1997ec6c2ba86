package models

import "fmt"

// BulkSummary is the counts block of a bulk response. Only the counters
// relevant to the operation are rendered.
type BulkSummary struct {
	Total          int    `json:"total"`
	Created        *int   `json:"created,omitempty"`
	Updated        *int   `json:"updated,omitempty"`
	Deleted        *int   `json:"deleted,omitempty"`
	Failed         int    `json:"failed"`
	SuccessRate    string `json:"successRate"`
	ProcessingTime string `json:"processingTime"`
}

type BulkDetails struct {
	Successful int         `json:"successful"`
	Errors     []BulkError `json:"errors"`
}

// BulkResponse is the body returned for a completed bulk run. Error is set
// only when the run stopped early.
type BulkResponse struct {
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Summary BulkSummary `json:"summary"`
	Details BulkDetails `json:"details"`
}

// WithError returns a copy of r for a run that was aborted after records were processed
func (r BulkResponse) WithError(msg string) BulkResponse {
	r.Error = msg
	return r
}

// NewBulkResponse renders a result for clients
func NewBulkResponse(res BulkResult) BulkResponse {
	summary := BulkSummary{
		Total:          res.Total,
		Failed:         res.Failed,
		SuccessRate:    res.SuccessRate(),
		ProcessingTime: fmt.Sprintf("%dms", res.ProcessingTimeMs()),
	}

	message := "Bulk import completed"
	if res.Operation == BulkOperationDelete {
		message = "Bulk delete completed"
		deleted := res.Deleted
		summary.Deleted = &deleted
	} else {
		created, updated := res.Created, res.Updated
		summary.Created = &created
		summary.Updated = &updated
	}

	errs := res.Errors
	if errs == nil {
		errs = []BulkError{}
	}

	return BulkResponse{
		Message: message,
		Summary: summary,
		Details: BulkDetails{
			Successful: res.Successful(),
			Errors:     errs,
		},
	}
}
