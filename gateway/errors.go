package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Sentinel errors for the call execution path.
var (
	// ErrServer matches any 5xx response surfaced as an error.
	ErrServer = errors.New("gateway: server error")

	// ErrServiceUnavailable matches a 503 response.
	ErrServiceUnavailable = errors.New("gateway: service unavailable")

	// ErrGatewayTimeout matches an upstream timeout response.
	ErrGatewayTimeout = errors.New("gateway: gateway timeout")

	// ErrThrottled matches an upstream 429 response.
	ErrThrottled = errors.New("gateway: throttled by upstream")

	// ErrAuthentication matches a 401 or 403 response.
	ErrAuthentication = errors.New("gateway: authentication failed")

	// ErrValidation matches a 4xx response describing a bad request.
	ErrValidation = errors.New("gateway: request rejected")

	// ErrTransport matches a network-level failure before a response
	// was received.
	ErrTransport = errors.New("gateway: transport failure")

	// ErrPreSend marks a transport failure that happened before the
	// request left the client, e.g. a refused connection. Transport
	// implementations wrap dial-stage failures with it so that
	// non-idempotent operations can still be retried safely.
	ErrPreSend = errors.New("gateway: failure before request was sent")

	// ErrOperationTimedOut matches a call that ran out of its overall
	// deadline, from OperationContext.TimeoutOverride or the caller's
	// own context.
	ErrOperationTimedOut = errors.New("gateway: operation timed out")
)

// ServerError reports a 5xx response from the target.
type ServerError struct {
	// Key is the routing key of the failing target.
	Key string

	// Status is the HTTP status code.
	Status int

	// Body is the response body, truncated for reporting.
	Body []byte
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("gateway: %s returned %d: %s", e.Key, e.Status, truncateBody(e.Body))
}

// Is matches ErrServer for any status, and the more specific sentinels
// for their statuses.
func (e *ServerError) Is(target error) bool {
	switch target {
	case ErrServer:
		return true
	case ErrServiceUnavailable:
		return e.Status == http.StatusServiceUnavailable
	case ErrGatewayTimeout:
		return e.Status == http.StatusGatewayTimeout
	default:
		return false
	}
}

// ThrottledError reports an upstream 429 with its advertised wait.
type ThrottledError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("gateway: %s throttled upstream, retry after %v", e.Key, e.RetryAfter)
	}
	return fmt.Sprintf("gateway: %s throttled upstream", e.Key)
}

// Is allows ThrottledError to match ErrThrottled.
func (e *ThrottledError) Is(target error) bool {
	return target == ErrThrottled
}

// AuthenticationError reports a 401 or 403 response. Never retried.
type AuthenticationError struct {
	Key    string
	Status int
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("gateway: %s rejected credentials (%d)", e.Key, e.Status)
}

// Is allows AuthenticationError to match ErrAuthentication.
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

// ValidationError reports a 4xx response describing a bad request.
// Never retried.
type ValidationError struct {
	Key    string
	Status int
	Body   []byte
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("gateway: %s rejected request (%d): %s", e.Key, e.Status, truncateBody(e.Body))
}

// Is allows ValidationError to match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// OperationTimeoutError reports a call whose overall deadline fired
// before a response arrived.
type OperationTimeoutError struct {
	// Key is the routing key of the target.
	Key string

	// Elapsed is how long the call ran before the deadline fired.
	Elapsed time.Duration
}

func (e *OperationTimeoutError) Error() string {
	return fmt.Sprintf("gateway: %s call timed out after %v", e.Key, e.Elapsed.Round(time.Millisecond))
}

// Is allows OperationTimeoutError to match ErrOperationTimedOut and the
// context deadline it derives from.
func (e *OperationTimeoutError) Is(target error) bool {
	return target == ErrOperationTimedOut || target == context.DeadlineExceeded
}

// TransportError reports a network-level failure.
type TransportError struct {
	// Key is the routing key of the target.
	Key string

	// PreSend reports whether the failure happened before the request
	// could have reached the server. Pre-send failures are safe to
	// retry even for non-idempotent operations.
	PreSend bool

	// Err is the underlying transport error.
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway: %s transport failure: %v", e.Key, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is allows TransportError to match ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// preSend reports whether a transport failure happened before the request
// could have reached the server. Explicit ErrPreSend marks win; dial-stage
// net errors are recognized as a fallback.
func preSend(err error) bool {
	if errors.Is(err, ErrPreSend) {
		return true
	}
	var op *net.OpError
	return errors.As(err, &op) && op.Op == "dial"
}

// statusError converts a non-2xx response into the typed error for its
// class. A 2xx response returns nil.
func statusError(key string, res *Response) error {
	switch {
	case res.Status >= 200 && res.Status < 300:
		return nil
	case res.Status == http.StatusUnauthorized || res.Status == http.StatusForbidden:
		return &AuthenticationError{Key: key, Status: res.Status}
	case res.Status == http.StatusTooManyRequests:
		return &ThrottledError{Key: key, RetryAfter: retryAfterHint(res)}
	case res.Status >= 400 && res.Status < 500:
		return &ValidationError{Key: key, Status: res.Status, Body: res.Body}
	default:
		return &ServerError{Key: key, Status: res.Status, Body: res.Body}
	}
}

// retryAfterHint parses the Retry-After header, seconds form only.
func retryAfterHint(res *Response) time.Duration {
	if res.Header == nil {
		return 0
	}
	v := res.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncateBody(b []byte) string {
	const max = 160
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
