package audit

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("audit recorder closed")

// ErrBufferFull is returned by Record when the queue is full and the trace was dropped.
var ErrBufferFull = errors.New("audit buffer full")

// RecorderError wraps a failure to record a trace.
type RecorderError struct {
	TraceID string
	Cause   error
}

// Error implements the error interface.
func (e *RecorderError) Error() string {
	return fmt.Sprintf("record trace %s: %v", e.TraceID, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *RecorderError) Unwrap() error {
	return e.Cause
}
