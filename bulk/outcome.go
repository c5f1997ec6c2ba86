package bulk

import (
	"net/http"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/models"
)

// OutcomeKind summarizes a bulk run
type OutcomeKind string

const (
	FullSuccess    OutcomeKind = "full-success"
	PartialSuccess OutcomeKind = "partial-success"
	FullFailure    OutcomeKind = "full-failure"
)

// Outcome is the classification of a BulkResult and the HTTP status it maps to
type Outcome struct {
	Kind   OutcomeKind
	Status int
}

// Classify maps a result to its outcome. An empty run is a full success.
// A full failure is a client error unless every failure is server-side.
func Classify(res models.BulkResult) Outcome {
	switch {
	case res.Failed == 0:
		return Outcome{Kind: FullSuccess, Status: http.StatusOK}
	case res.Failed < res.Total:
		return Outcome{Kind: PartialSuccess, Status: http.StatusPartialContent}
	}

	if len(res.Errors) == 0 {
		return Outcome{Kind: FullFailure, Status: http.StatusBadRequest}
	}
	for _, e := range res.Errors {
		if !e.Reason.ServerSide() {
			return Outcome{Kind: FullFailure, Status: http.StatusBadRequest}
		}
	}
	return Outcome{Kind: FullFailure, Status: http.StatusInternalServerError}
}
