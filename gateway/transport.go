package gateway

import (
	"context"
	"io"
	"net/http"
)

// Request is one outbound HTTP request, fully assembled by the client.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a fully-buffered HTTP response for single-shot calls.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// StreamResponse is the open byte stream of a streaming call. The caller
// owns Body and must close it.
type StreamResponse struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

// Transport is the network collaborator. Implementations are expected to
// be timeout-aware and TLS-terminated; the client never opens connections
// itself.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: both methods must honor cancellation/deadlines.
// - Errors: a non-2xx status is a valid response, not an error.
type Transport interface {
	// Send performs a single-shot request and buffers the response.
	Send(ctx context.Context, req *Request) (*Response, error)

	// SendStreaming performs a request whose response body is consumed
	// incrementally. On a non-2xx status the body holds the error
	// payload and is still owned by the caller.
	SendStreaming(ctx context.Context, req *Request) (*StreamResponse, error)
}

// CredentialProvider supplies an auth header value per call. Refresh is
// the provider's own concern.
type CredentialProvider interface {
	// Authorization returns the value for the Authorization header.
	// An empty value with nil error means the call goes out unsigned.
	Authorization(ctx context.Context) (string, error)
}
