package procurement

import (
	"errors"
	"fmt"
)

var (
	// ErrListUnits marks a failure to list organizational units; it is fatal to a run.
	ErrListUnits = errors.New("list organizational units")
	// ErrListPackages marks a failure to list one unit's packages.
	ErrListPackages = errors.New("list packages")
	// ErrInvalidParams is returned when run parameters are out of bounds.
	ErrInvalidParams = errors.New("invalid run parameters")
	// ErrRunNotFound is returned by run stores for unknown IDs.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunExists is returned when a run ID is reused.
	ErrRunExists = errors.New("run already exists")
	// ErrRunTerminal is returned when a status change targets a finished run.
	ErrRunTerminal = errors.New("run already finished")
	// ErrQueueClosed is returned by queues after shutdown.
	ErrQueueClosed = errors.New("queue closed")
)

// FetchError reports a request that failed after the retry policy gave up,
// or that returned a status the policy does not retry.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode > 0:
		return fmt.Sprintf("fetch %s: status %d after %d attempt(s): %v", e.URL, e.StatusCode, e.Attempts, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
	default:
		return fmt.Sprintf("fetch %s: status %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
