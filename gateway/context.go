package gateway

import (
	"time"

	"github.com/jonwraymond/inferops/resilience"
)

// OperationContext describes one logical call. Created per call, immutable,
// never persisted.
type OperationContext struct {
	// Operation is the logical operation name, used for telemetry.
	Operation string

	// Model is the model id or named endpoint to resolve.
	Model string

	// Task optionally selects a task-specific serverless route.
	Task string

	// Provider optionally pins an explicit provider; see route.Resolve
	// for the resolution order.
	Provider string

	// Idempotent gates whether server-error retries are attempted at
	// all. Non-idempotent operations are only retried for failures
	// known to have happened before the request reached the server.
	Idempotent bool

	// Priority selects the rate-limit tier.
	Priority resilience.Priority

	// TimeoutOverride bounds the whole call, overriding the client's
	// default; exceeding it surfaces *OperationTimeoutError. For a
	// streaming call the bound covers the stream's lifetime, released
	// when the decoder is closed. 0 means no override.
	TimeoutOverride time.Duration
}
