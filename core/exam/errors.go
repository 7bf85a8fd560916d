package exam

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrClassNotFound = errors.New("class not found")
	ErrExamNotFound  = errors.New("exam not found")

	// ErrNotConfirmed is returned when the user declined a submitting or destructive action.
	ErrNotConfirmed = errors.New("action not confirmed")
)

// RemoteError is a failure reported by the data service. Nothing is retried.
type RemoteError struct {
	Op         string
	StatusCode int // 0 when no response was received
	Message    string
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is caused by a missing class or exam.
func IsNotFound(err error) bool {
	switch errors.Cause(err) {
	case ErrClassNotFound, ErrExamNotFound:
		return true
	}
	return false
}
