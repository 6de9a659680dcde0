package route

import (
	"errors"
	"fmt"
)

// Sentinel errors for target resolution.
var (
	// ErrUnresolved is returned when an identifier matches no routing rule.
	ErrUnresolved = errors.New("route: target unresolved")

	// ErrNotReady is returned when the underlying resource exists but is
	// in a non-serviceable lifecycle state.
	ErrNotReady = errors.New("route: target not ready")
)

// UnresolvedError reports an identifier that matches no routing rule.
// Never retried by the orchestrator.
type UnresolvedError struct {
	Identifier string
	Provider   string // the provider that was consulted, if any
}

func (e *UnresolvedError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("route: no routing rule for %q via provider %q", e.Identifier, e.Provider)
	}
	return fmt.Sprintf("route: no routing rule for %q", e.Identifier)
}

// Is allows UnresolvedError to match ErrUnresolved.
func (e *UnresolvedError) Is(target error) bool {
	return target == ErrUnresolved
}

// NotReadyError reports a resource in a non-serviceable lifecycle state
// (paused, failed). Never retried by the orchestrator.
type NotReadyError struct {
	Identifier string
	State      LifecycleState
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("route: endpoint %q is %s", e.Identifier, e.State)
}

// Is allows NotReadyError to match ErrNotReady.
func (e *NotReadyError) Is(target error) bool {
	return target == ErrNotReady
}
