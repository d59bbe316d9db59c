/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Records and runs are
  returned as the payroll types themselves (they already carry a stable
  JSON shape); requests get their own types with validation tags.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers

VALIDATION:
  Struct tags are checked with go-playground/validator in the handlers.
  Period ordering is checked by generic.Period.Validate so that the error
  is the same sentinel the engine returns.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rates.go: LocationJSON type
*/
package api

import (
	"time"

	"github.com/warp/compensation-engine/payroll"
)

// RecomputeRequest triggers an on-demand computation of one record.
type RecomputeRequest struct {
	TeacherID string    `json:"teacher_id" validate:"required"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

// RunRequest triggers a batch. Both times empty means the current circle.
type RunRequest struct {
	StartTime *time.Time `json:"start_time" validate:"required_with=EndTime"`
	EndTime   *time.Time `json:"end_time" validate:"required_with=StartTime"`
}

// RecordListResponse is one page of compensation records.
type RecordListResponse struct {
	Records []payroll.Record `json:"records"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// RunListResponse lists batch runs, newest first.
type RunListResponse struct {
	Runs []payroll.Run `json:"runs"`
}

// ErrorResponse is an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
