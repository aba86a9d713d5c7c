package review

import (
	"errors"
	"fmt"
)

// ErrNoCallLog matches any *NoCallLogError via errors.Is.
var ErrNoCallLog = errors.New("no call log recorded for this date")

// ValidationError is a failed client-side precondition. No request was sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NoCallLogError means a review operation targeted a patient/date with no
// call record. It is a user-facing condition. No request was sent.
type NoCallLogError struct {
	PatientID int64
	Day       string
}

func (e *NoCallLogError) Error() string {
	if e.Day != "" {
		return fmt.Sprintf("patient %d: no call log on %s", e.PatientID, e.Day)
	}
	return fmt.Sprintf("patient %d: %s", e.PatientID, ErrNoCallLog)
}

func (e *NoCallLogError) Is(target error) bool {
	return target == ErrNoCallLog
}

// BulkError reports a bulk disposition that stopped early. Completed
// dispositions were not rolled back.
type BulkError struct {
	Completed int
	Total     int
	Err       error
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("%d of %d completed: %v", e.Completed, e.Total, e.Err)
}

func (e *BulkError) Unwrap() error { return e.Err }
