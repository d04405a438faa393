package ocr

import (
	"fmt"
	"strconv"
	"time"

	"docfields/internal/domain"
)

// UnavailableError reports an engine that cannot serve requests right now
// (missing runtime, overloaded service). It opens the engine's circuit in
// a FallbackBackend for RetryAfter.
type UnavailableError struct {
	Engine     string
	Err        error
	RetryAfter time.Duration
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable (retry after %s): %v", e.Engine, e.RetryAfter, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{domain.ErrBackendUnavailable, e.Err}
}

// NewUnavailableError creates an UnavailableError. A non-positive
// retryAfter leaves the cooldown to the FallbackBackend.
func NewUnavailableError(engine string, err error, retryAfter time.Duration) *UnavailableError {
	if err == nil {
		err = fmt.Errorf("%s unavailable", engine)
	}
	return &UnavailableError{Engine: engine, Err: err, RetryAfter: retryAfter}
}

// ParseRetryAfterHeader parses a Retry-After header value in seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) time.Duration {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
