// Package jobstore persists import jobs as JSON documents in Redis, one per
// job id, and publishes every write on a per-job channel so the UI can
// follow progress live. It also owns the exclusive import lease: only the
// lease holder may drive rows for a deployment.
package jobstore

import (
	"time"

	"github.com/vendaops/console/internal/mapping"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// CanTransition enforces the job lifecycle: pending starts processing,
// processing ends in a terminal state, and error/cancelled jobs may be
// resumed. Processing may re-enter processing because a crashed run leaves
// the document there and a resume has to take it over. Completed is final.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusProcessing || to == StatusCancelled || to == StatusError
	case StatusProcessing:
		return to == StatusProcessing || to == StatusCompleted || to == StatusError || to == StatusCancelled
	case StatusError, StatusCancelled:
		return to == StatusProcessing
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// maxErrorDetails bounds the per-job error tail; older entries drop first.
const maxErrorDetails = 50

type ErrorDetail struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Job is the stored document for one import run. TotalRows counts rows after
// the paid filter; Filtered counts the rows the filter dropped.
// LastProcessedIndex is -1 until the first row finishes: resumption skips
// every row index at or below it. The resolved column mapping travels with
// the document so a resume only needs the file uploaded again.
type Job struct {
	ID                 string                 `json:"id"`
	Status             Status                 `json:"status"`
	Platform           string                 `json:"platform"`
	Filename           string                 `json:"filename"`
	StageID            string                 `json:"stageId"`
	Mapping            *mapping.ColumnMapping `json:"mapping,omitempty"`
	DelayMS            int                    `json:"delayMs,omitempty"`
	TotalRows          int                    `json:"totalRows"`
	Processed          int                    `json:"processed"`
	Created            int                    `json:"created"`
	Existing           int                    `json:"existing"`
	Errors             int                    `json:"errors"`
	Skipped            int                    `json:"skipped"`
	Filtered           int                    `json:"filtered"`
	LastProcessedIndex int                    `json:"lastProcessedIndex"`
	ErrorDetails       []ErrorDetail          `json:"errorDetails"`
	LastMessage        string                 `json:"lastMessage"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
}

// AppendError pushes one detail onto the bounded tail, dropping the oldest
// entries past the cap.
func (j *Job) AppendError(detail ErrorDetail) {
	j.ErrorDetails = append(j.ErrorDetails, detail)
	if len(j.ErrorDetails) > maxErrorDetails {
		j.ErrorDetails = j.ErrorDetails[len(j.ErrorDetails)-maxErrorDetails:]
	}
}
