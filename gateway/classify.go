package gateway

import (
	"errors"

	"github.com/jonwraymond/inferops/coldstart"
	"github.com/jonwraymond/inferops/resilience"
)

// classifierFor builds the retry classifier for one call. Idempotency
// gating happens here: a non-idempotent operation is only retried for
// failures known to have happened before the request could have been
// processed server-side.
func classifierFor(call OperationContext) resilience.Classifier {
	return func(err error) resilience.Decision {
		switch {
		case errors.Is(err, resilience.ErrCircuitOpen):
			// The circuit opened mid-loop; further attempts are rejected
			// anyway.
			return resilience.Stop()

		case errors.Is(err, resilience.ErrTimeout):
			// Attempt timeouts are surfaced, never retried internally.
			return resilience.Stop()

		case errors.Is(err, coldstart.ErrModelLoading),
			errors.Is(err, coldstart.ErrWaitTimeout):
			// Warm-up handling owns its own loop.
			return resilience.Stop()

		case errors.Is(err, ErrThrottled):
			// Upstream throttling is safely retryable regardless of
			// idempotency; honor the advertised wait when present.
			var throttled *ThrottledError
			if errors.As(err, &throttled) && throttled.RetryAfter > 0 {
				return resilience.After(throttled.RetryAfter)
			}
			return resilience.Backoff()

		case errors.Is(err, ErrTransport):
			var transport *TransportError
			if errors.As(err, &transport) && transport.PreSend {
				return resilience.Backoff()
			}
			if call.Idempotent {
				return resilience.Backoff()
			}
			return resilience.Stop()

		case errors.Is(err, ErrServer):
			if call.Idempotent {
				return resilience.Backoff()
			}
			return resilience.Stop()

		default:
			// Validation, authentication, resolution failures and
			// anything unrecognized surface immediately.
			return resilience.Stop()
		}
	}
}

// breakerRelevant reports whether an error counts toward the circuit
// breaker's failure threshold. Client-side rejections say nothing about
// target health.
func breakerRelevant(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrAuthentication),
		errors.Is(err, ErrThrottled):
		return false
	}
	return true
}
