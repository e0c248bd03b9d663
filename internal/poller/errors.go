package poller

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned by Handle.Wait when the poll was cancelled before
// it reached a terminal state.
var ErrCancelled = errors.New("poll cancelled")

// JobFailedError means the backend explicitly reported the job as failed.
type JobFailedError struct {
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}

// JobTimedOutError means the attempt budget ran out without a terminal status.
// LastErr is the most recent transport failure, if any.
type JobTimedOutError struct {
	JobID    string
	Attempts int
	LastErr  error
}

func (e *JobTimedOutError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("job %s still not ready after %d attempts: %v", e.JobID, e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("job %s still not ready after %d attempts", e.JobID, e.Attempts)
}

func (e *JobTimedOutError) Unwrap() error {
	return e.LastErr
}
