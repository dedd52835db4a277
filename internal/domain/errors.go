package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for pagination and position tracking
var (
	// ErrContentUnavailable indicates no cache tier or source could produce chapter text
	ErrContentUnavailable = errors.New("chapter content unavailable")

	// ErrInvalidParameter indicates a precondition violation such as zero lines per page
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrAggregationFailed indicates a chapter task failed during a page count
	ErrAggregationFailed = errors.New("page count aggregation failed")

	// ErrPositionLost indicates a saved position could not be mapped onto the current pagination
	ErrPositionLost = errors.New("reading position lost")

	// ErrPersistence indicates an I/O or parse failure in the persistent store
	ErrPersistence = errors.New("persistence failure")

	// ErrUnsupportedFormat indicates no registered format handles a file
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// AggregationError reports the chapter whose task failed a page count.
type AggregationError struct {
	Chapter int
	Err     error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("%v: chapter %d: %v", ErrAggregationFailed, e.Chapter, e.Err)
}

func (e *AggregationError) Unwrap() []error {
	return []error{ErrAggregationFailed, e.Err}
}
