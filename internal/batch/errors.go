package batch

import (
	"errors"
	"fmt"
)

// Sentinel errors for the batch package.
var (
	// ErrInputRead is returned when a job's input cannot be read.
	ErrInputRead = errors.New("failed to read input")

	// ErrOutputWrite is returned when a job's artifact cannot be written.
	ErrOutputWrite = errors.New("failed to write output")

	// ErrIndexWrite is returned when a job's index record cannot be stored.
	ErrIndexWrite = errors.New("failed to index document")

	// ErrAnnotation is returned when the pipeline fails or panics on a job.
	ErrAnnotation = errors.New("annotation failed")

	// ErrNoInputs is returned when discovery finds nothing to process.
	ErrNoInputs = errors.New("no input files")
)

// JobError attributes a failure to the job it happened in.
type JobError struct {
	JobID string
	Input string
	Kind  error // ErrInputRead, ErrOutputWrite, ErrIndexWrite or ErrAnnotation
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: job %s (%s): %v", e.Kind, e.JobID, e.Input, e.Err)
}

// Unwrap exposes both the sentinel kind and the underlying cause.
func (e *JobError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
