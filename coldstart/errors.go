package coldstart

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for cold-start handling.
var (
	// ErrModelLoading is returned when a warm-up is detected and
	// auto-wait is disabled.
	ErrModelLoading = errors.New("coldstart: model is loading")

	// ErrWaitTimeout is returned when a wait session exceeds its budget.
	ErrWaitTimeout = errors.New("coldstart: timed out waiting for model")
)

// ModelLoadingError reports a warm-up response surfaced without waiting.
type ModelLoadingError struct {
	// Target is the routing key of the warming target.
	Target string

	// EstimatedTime is the backend's own estimate, when it reported one.
	EstimatedTime time.Duration
}

func (e *ModelLoadingError) Error() string {
	if e.EstimatedTime > 0 {
		return fmt.Sprintf("coldstart: %s is loading (estimated %v)", e.Target, e.EstimatedTime.Round(time.Second))
	}
	return fmt.Sprintf("coldstart: %s is loading", e.Target)
}

// Is allows ModelLoadingError to match ErrModelLoading.
func (e *ModelLoadingError) Is(target error) bool {
	return target == ErrModelLoading
}

// TimeoutError reports a wait session that exceeded its configured budget.
type TimeoutError struct {
	// Target is the routing key of the target that never warmed up.
	Target string

	// Waited is the total wait spent before giving up.
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("coldstart: %s still loading after %v", e.Target, e.Waited.Round(time.Second))
}

// Is allows TimeoutError to match ErrWaitTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrWaitTimeout
}
