package dispatch

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"scheduled-dispatch/internal/queue"
)

var (
	// ErrValidation marks a malformed payload. It is never retried.
	ErrValidation = errors.New("invalid payload")
	// ErrNotConnected means the user has no active gateway session.
	ErrNotConnected = errors.New("user not connected")
	// ErrNoEndpointMapping means the session is not assigned to any gateway server.
	ErrNoEndpointMapping = errors.New("no server mapping found for session")
	// ErrSendFailed marks a failed gateway call.
	ErrSendFailed = errors.New("message send failed")
)

// ValidationError lists every reason a payload was rejected.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "invalid payload: " + strings.Join(e.Reasons, "; ")
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// SendError wraps the cause of a failed gateway call.
type SendError struct {
	Endpoint string
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Endpoint, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Is matches ErrSendFailed.
func (e *SendError) Is(target error) bool {
	return target == ErrSendFailed
}

// IsRetryable reports whether another attempt could succeed.
func IsRetryable(err error) bool {
	return err != nil && !errors.Is(err, ErrValidation)
}

// FailureReason is a low-cardinality label for err.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ErrNoEndpointMapping):
		return "no_endpoint"
	case errors.Is(err, ErrSendFailed):
		return "send"
	case errors.Is(err, queue.ErrStalledLimit):
		return "stalled"
	default:
		return "internal"
	}
}
