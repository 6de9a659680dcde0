package gateway

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// HTTPTransport is the net/http-backed Transport used in production.
// Timeouts come from the per-call context; the underlying client carries no
// global timeout so long-lived streams are not cut off.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps an http.Client. A nil client uses a fresh one with
// default transport settings.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{client: client}
}

// Send performs a buffered request.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	hreq, err := t.build(ctx, req)
	if err != nil {
		return nil, err
	}

	res, err := t.client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	return &Response{Status: res.StatusCode, Header: res.Header, Body: body}, nil
}

// SendStreaming performs a request whose body is handed to the caller
// unconsumed.
func (t *HTTPTransport) SendStreaming(ctx context.Context, req *Request) (*StreamResponse, error) {
	hreq, err := t.build(ctx, req)
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Accept", "text/event-stream")

	res, err := t.client.Do(hreq)
	if err != nil {
		return nil, err
	}
	return &StreamResponse{Status: res.StatusCode, Header: res.Header, Body: res.Body}, nil
}

func (t *HTTPTransport) build(ctx context.Context, req *Request) (*http.Request, error) {
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	return hreq, nil
}
