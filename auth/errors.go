package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for credential supply.
var (
	// ErrNoSource is returned when a Refresher has no token source.
	ErrNoSource = errors.New("auth: token source is required")

	// ErrRefreshFailed is returned when minting a fresh token fails.
	ErrRefreshFailed = errors.New("auth: token refresh failed")
)

// RefreshError reports a failed token refresh with its cause.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("auth: token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Is allows RefreshError to match ErrRefreshFailed.
func (e *RefreshError) Is(target error) bool {
	return target == ErrRefreshFailed
}
