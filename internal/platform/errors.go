package platform

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound        = errors.New("platform resource not found")
	ErrTimeout         = errors.New("platform operation timed out")
	ErrOperationFailed = errors.New("platform operation failed")
)

// Error is a non-success response from the platform API.
type Error struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: platform returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}
