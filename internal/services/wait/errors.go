package wait

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotReady is returned by a check whose target is not yet in the
	// expected state. The waiter keeps polling.
	ErrNotReady = errors.New("condition not ready")

	// ErrNoSuchElement is returned when a locator matches nothing yet.
	// The waiter treats it like ErrNotReady.
	ErrNoSuchElement = errors.New("no such element")
)

// isNotReady reports whether err means "try again on the next poll"
func isNotReady(err error) bool {
	return errors.Is(err, ErrNotReady) || errors.Is(err, ErrNoSuchElement)
}

// TimeoutError is returned when a condition did not match before the deadline
type TimeoutError struct {
	Description  string
	LastObserved string
	LastErr      error
	Timeout      time.Duration
	Elapsed      time.Duration
	Attempts     int
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s (%d attempts)", e.Timeout, e.Description, e.Attempts)
	if e.LastObserved != "" {
		msg += ": last observed " + e.LastObserved
	}
	if e.LastErr != nil {
		msg += fmt.Sprintf(": last error: %v", e.LastErr)
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.LastErr }
