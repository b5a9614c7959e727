package completion

import (
	"errors"
	"fmt"
	"strings"
)

// Transport implementations classify failures into these sentinels so the
// client can tell what is worth retrying.
var (
	// ErrRateLimited marks a throttled call. Retryable.
	ErrRateLimited = errors.New("completion rate limited")

	// ErrTransient marks a server-side or network failure. Retryable.
	ErrTransient = errors.New("completion transient failure")

	// ErrAuth marks rejected credentials. Terminal.
	ErrAuth = errors.New("completion authentication failed")

	// ErrInvalidRequest marks a request the service refuses. Terminal.
	ErrInvalidRequest = errors.New("completion invalid request")
)

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}

// ExhaustedError reports a call that failed after the full retry ladder on
// every candidate model.
type ExhaustedError struct {
	Attempts int
	Models   []string
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("completion exhausted after %d attempts across %s: %v",
		e.Attempts, strings.Join(e.Models, ", "), e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// IsExhausted reports whether err wraps an ExhaustedError.
func IsExhausted(err error) bool {
	var exhausted *ExhaustedError
	return errors.As(err, &exhausted)
}
