// Package gateway composes target resolution, rate limiting, circuit
// breaking, retry, cold-start handling and stream decoding into a single
// resilient client for HTTP inference APIs.
//
// Every call goes through the same path:
//
//  1. Resolve the logical destination to a concrete target and routing key.
//  2. Fail fast if the key's circuit is open; acquire a rate-limit token.
//  3. Run the attempt loop. Each attempt is classified per the call's
//     idempotency: non-idempotent operations are only retried for failures
//     known to have happened before the request reached the server.
//  4. A 503 recognized as a warm-up signal on a scale-to-zero target hands
//     the call to the cold-start handler, which polls with phased delays
//     until the model is ready or the wait budget runs out.
//
// Streaming calls share steps 1-4 for establishing the stream, then hand
// the open byte stream to a pull-based event decoder. Once the first event
// is consumed the sequence is non-restartable.
//
// Failures surface as typed, matchable errors: see ErrThrottled,
// ErrAuthentication, ErrValidation, ErrServer, ErrTransport,
// ErrOperationTimedOut, and the resilience and coldstart package
// sentinels.
package gateway
