package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonwraymond/inferops/coldstart"
	"github.com/jonwraymond/inferops/observe"
	"github.com/jonwraymond/inferops/resilience"
	"github.com/jonwraymond/inferops/route"
	"github.com/jonwraymond/inferops/stream"
)

// ErrNilTransport indicates Config.Transport was not provided.
var ErrNilTransport = errors.New("gateway: transport is required")

// errorBodyLimit bounds how much of a non-2xx streaming response body is
// buffered for classification.
const errorBodyLimit = 64 * 1024

// Config configures a Client.
type Config struct {
	// Resolver configures target resolution and the endpoint cache.
	Resolver route.ResolverConfig

	// Transport performs the actual network I/O. Required.
	Transport Transport

	// Credentials supplies the Authorization header value per call.
	// Optional; calls go out unsigned without it.
	Credentials CredentialProvider

	// Resilience configures the breaker, rate limiter, bulkhead and
	// retry policy shared by every call. Its AttemptTimeout bounds each
	// network send; a cold-start session keeps its own ColdStart.Timeout
	// budget, with every poll inside it bounded individually.
	Resilience resilience.OrchestratorConfig

	// ColdStart configures warm-up detection and the wait loop.
	ColdStart coldstart.Config

	// Stream configures the event decoder handed to streaming callers.
	Stream stream.DecoderConfig

	// Metrics receives structured counters. Default: no-op.
	Metrics observe.Metrics

	// Tracer opens one span per logical call. Default: no-op.
	Tracer observe.Tracer

	// Logger receives structured logs. Default: no-op.
	Logger observe.Logger
}

// Client is the resilient request-execution core. Every outbound call goes
// through resolution, rate limiting, circuit breaking, retry and cold-start
// handling; streaming calls additionally hand their byte stream to a
// pull-based decoder.
//
// All mutable shared state (breakers, buckets, endpoint cache) is owned by
// the Client instance and torn down with it.
type Client struct {
	config         Config
	resolver       *route.Resolver
	orch           *resilience.Orchestrator
	coldstart      *coldstart.Handler
	attemptTimeout time.Duration
	metrics        observe.Metrics
	tracer         observe.Tracer
	logger         observe.Logger
}

// NewClient creates a client.
func NewClient(config Config) (*Client, error) {
	if config.Transport == nil {
		return nil, ErrNilTransport
	}
	if config.Metrics == nil {
		config.Metrics = observe.NoopMetrics()
	}
	if config.Tracer == nil {
		config.Tracer = observe.NopTracer()
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}

	c := &Client{
		config:  config,
		metrics: config.Metrics,
		tracer:  config.Tracer,
		logger:  config.Logger,
	}

	// Breaker transitions feed the metrics sink before any user hook.
	userHook := config.Resilience.Breaker.OnStateChange
	config.Resilience.Breaker.OnStateChange = func(key string, from, to resilience.State) {
		c.metrics.RecordBreakerTransition(context.Background(), key, from.String(), to.String())
		c.logger.Warn(context.Background(), "circuit state change",
			observe.Field{Key: "target.key", Value: key},
			observe.Field{Key: "from", Value: from.String()},
			observe.Field{Key: "to", Value: to.String()},
		)
		if userHook != nil {
			userHook(key, from, to)
		}
	}
	if config.Resilience.Breaker.IsFailure == nil {
		config.Resilience.Breaker.IsFailure = breakerRelevant
	}

	// The resolver's management collaborator doubles as the cold-start
	// secondary signal unless one was set explicitly.
	if config.ColdStart.Manager == nil {
		config.ColdStart.Manager = config.Resolver.Endpoints
	}

	// The attempt timeout is applied around each network send rather
	// than by the orchestrator, so a cold-start session is never run
	// down by a single attempt's deadline.
	c.attemptTimeout = config.Resilience.AttemptTimeout
	config.Resilience.AttemptTimeout = 0

	c.resolver = route.NewResolver(config.Resolver)
	c.orch = resilience.NewOrchestrator(config.Resilience)
	c.coldstart = coldstart.NewHandler(config.ColdStart)
	return c, nil
}

// Execute performs a single-shot call: resolve, rate-limit, breaker-check,
// attempt(s) with retry, cold-start handling. The returned response has a
// 2xx status; every other outcome is a typed error.
func (c *Client) Execute(ctx context.Context, call OperationContext, body []byte) (*Response, error) {
	target, err := c.resolver.Resolve(ctx, call.Model, call.Task, call.Provider)
	if err != nil {
		return nil, err
	}

	meta := observe.CallMeta{
		Key:       target.Key(),
		Operation: call.Operation,
		Provider:  target.Provider,
	}

	if call.TimeoutOverride > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.TimeoutOverride)
		defer cancel()
	}

	ctx, span := c.tracer.StartSpan(ctx, meta)

	var res *Response
	start := time.Now()
	err = c.orch.ExecuteWith(ctx, target.Key(), call.Priority, classifierFor(call), func(ctx context.Context) error {
		r, aerr := c.attempt(ctx, meta, target, body)
		if aerr != nil {
			return aerr
		}
		res = r
		return nil
	})
	err = operationTimeout(ctx, meta.Key, start, err)
	c.tracer.EndSpan(span, err)
	c.finish(ctx, meta, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ExecuteStreaming performs a streaming call. Retry covers establishing the
// stream; once the decoder is handed to the caller, the sequence is
// non-restartable. The caller must close the decoder; with a
// TimeoutOverride set, Close also releases the override context.
func (c *Client) ExecuteStreaming(ctx context.Context, call OperationContext, body []byte) (*stream.Decoder, error) {
	target, err := c.resolver.Resolve(ctx, call.Model, call.Task, call.Provider)
	if err != nil {
		return nil, err
	}

	meta := observe.CallMeta{
		Key:       target.Key(),
		Operation: call.Operation,
		Provider:  target.Provider,
		Streaming: true,
	}

	// The override cannot be cancelled when ExecuteStreaming returns:
	// the stream it just established must stay consumable. Release
	// moves to the decoder's Close on success.
	var release context.CancelFunc
	if call.TimeoutOverride > 0 {
		ctx, release = context.WithTimeout(ctx, call.TimeoutOverride)
	}

	ctx, span := c.tracer.StartSpan(ctx, meta)

	var open *StreamResponse
	start := time.Now()
	err = c.orch.ExecuteWith(ctx, target.Key(), call.Priority, classifierFor(call), func(ctx context.Context) error {
		r, aerr := c.attemptStreaming(ctx, meta, target, body)
		if aerr != nil {
			return aerr
		}
		open = r
		return nil
	})
	err = operationTimeout(ctx, meta.Key, start, err)
	// The span covers establishing the stream; consumption is caller-paced.
	c.tracer.EndSpan(span, err)
	c.finish(ctx, meta, time.Since(start), err)
	if err != nil {
		if release != nil {
			release()
		}
		return nil, err
	}
	if release != nil {
		open.Body = &cancelOnClose{ReadCloser: open.Body, cancel: release}
	}

	cfg := c.config.Stream
	userOnMalformed := cfg.OnMalformed
	cfg.OnMalformed = func(frame []byte) {
		c.metrics.RecordMalformedFrame(context.Background(), meta.Key)
		c.logger.Warn(context.Background(), "malformed stream frame skipped",
			observe.Field{Key: "target.key", Value: meta.Key},
		)
		if userOnMalformed != nil {
			userOnMalformed(frame)
		}
	}
	return stream.NewDecoder(open.Body, cfg), nil
}

// attempt performs one network attempt, including cold-start takeover.
func (c *Client) attempt(ctx context.Context, meta observe.CallMeta, target route.Target, body []byte) (*Response, error) {
	res, err := c.sendOnce(ctx, meta, target, body)
	if err != nil {
		return nil, err
	}

	if target.RequiresWarmup() {
		det := c.coldstart.Warming(ctx, target, coldstart.Result{Status: res.Status, Body: res.Body})
		if det.Warming {
			waitStart := time.Now()
			result, werr := c.coldstart.Handle(ctx, target, det, func(ctx context.Context) (coldstart.Result, error) {
				r, err := c.sendOnce(ctx, meta, target, body)
				if err != nil {
					return coldstart.Result{}, err
				}
				return coldstart.Result{Status: r.Status, Body: r.Body}, nil
			})
			c.metrics.RecordColdStartWait(ctx, meta.Key, time.Since(waitStart))
			if werr != nil {
				return nil, werr
			}
			res = &Response{Status: result.Status, Body: result.Body}
		}
	}

	if serr := statusError(meta.Key, res); serr != nil {
		return nil, serr
	}
	return res, nil
}

// attemptStreaming establishes one stream, buffering and classifying the
// body of a non-2xx response. Cold-start polls re-send the original
// streaming request; a poll that comes back 2xx becomes the open stream.
func (c *Client) attemptStreaming(ctx context.Context, meta observe.CallMeta, target route.Target, body []byte) (*StreamResponse, error) {
	open, res, err := c.openOnce(ctx, meta, target, body)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return open, nil
	}

	if target.RequiresWarmup() {
		det := c.coldstart.Warming(ctx, target, coldstart.Result{Status: res.Status, Body: res.Body})
		if det.Warming {
			waitStart := time.Now()
			result, werr := c.coldstart.Handle(ctx, target, det, func(ctx context.Context) (coldstart.Result, error) {
				o, r, err := c.openOnce(ctx, meta, target, body)
				if err != nil {
					return coldstart.Result{}, err
				}
				if o != nil {
					open = o
					return coldstart.Result{Status: o.Status}, nil
				}
				return coldstart.Result{Status: r.Status, Body: r.Body}, nil
			})
			c.metrics.RecordColdStartWait(ctx, meta.Key, time.Since(waitStart))
			if werr != nil {
				return nil, werr
			}
			if open != nil {
				return open, nil
			}
			res = &Response{Status: result.Status, Body: result.Body}
		}
	}

	return nil, statusError(meta.Key, res)
}

// sendOnce performs one buffered send, bounded by the attempt timeout,
// and records the attempt.
func (c *Client) sendOnce(ctx context.Context, meta observe.CallMeta, target route.Target, body []byte) (*Response, error) {
	req, err := c.buildRequest(ctx, target, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var res *Response
	err = c.withAttemptTimeout(ctx, func(ctx context.Context) error {
		r, serr := c.config.Transport.Send(ctx, req)
		if serr != nil {
			return &TransportError{Key: meta.Key, PreSend: preSend(serr), Err: serr}
		}
		res = r
		return nil
	})
	if err != nil {
		c.metrics.RecordAttempt(ctx, meta, time.Since(start), err)
		return nil, err
	}
	c.metrics.RecordAttempt(ctx, meta, time.Since(start), statusError(meta.Key, res))
	return res, nil
}

// withAttemptTimeout bounds one network send. Cold-start polls go
// through here too, so each poll is bounded while the session keeps its
// own budget.
func (c *Client) withAttemptTimeout(ctx context.Context, op func(context.Context) error) error {
	if c.attemptTimeout <= 0 {
		return op(ctx)
	}
	return resilience.ExecuteWithTimeout(ctx, c.attemptTimeout, op)
}

// openOnce performs one streaming send. A 2xx status returns the open
// stream; any other status returns the buffered error body.
//
// The attempt timeout bounds establishing the stream only. An open
// stream must not inherit a deadline, so the bound is a timer that
// cancels a derived context, handed to the body's Close on success.
func (c *Client) openOnce(ctx context.Context, meta observe.CallMeta, target route.Target, body []byte) (*StreamResponse, *Response, error) {
	req, err := c.buildRequest(ctx, target, body)
	if err != nil {
		return nil, nil, err
	}

	sendCtx := ctx
	cancel := context.CancelFunc(func() {})
	var timer *time.Timer
	if c.attemptTimeout > 0 {
		sendCtx, cancel = context.WithCancel(ctx)
		timer = time.AfterFunc(c.attemptTimeout, cancel)
	}

	start := time.Now()
	r, err := c.config.Transport.SendStreaming(sendCtx, req)
	if err != nil {
		if timer != nil && !timer.Stop() && ctx.Err() == nil {
			err = resilience.ErrTimeout
		} else {
			err = &TransportError{Key: meta.Key, PreSend: preSend(err), Err: err}
		}
		cancel()
		c.metrics.RecordAttempt(ctx, meta, time.Since(start), err)
		return nil, nil, err
	}
	if timer != nil {
		timer.Stop()
	}

	if r.Status >= 200 && r.Status < 300 {
		c.metrics.RecordAttempt(ctx, meta, time.Since(start), nil)
		if c.attemptTimeout > 0 {
			r.Body = &cancelOnClose{ReadCloser: r.Body, cancel: cancel}
		}
		return r, nil, nil
	}

	c.metrics.RecordAttempt(ctx, meta, time.Since(start),
		statusError(meta.Key, &Response{Status: r.Status, Header: r.Header}))

	errBody, _ := io.ReadAll(io.LimitReader(r.Body, errorBodyLimit))
	r.Body.Close()
	cancel()
	return nil, &Response{Status: r.Status, Header: r.Header, Body: errBody}, nil
}

// cancelOnClose releases a context reserved for an open stream when the
// caller closes the decoder.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// operationTimeout converts a deadline-driven failure into the typed
// per-operation timeout error once the call's own deadline has fired.
func operationTimeout(ctx context.Context, key string, start time.Time, err error) error {
	if err == nil || ctx.Err() != context.DeadlineExceeded || !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &OperationTimeoutError{Key: key, Elapsed: time.Since(start)}
}

func (c *Client) buildRequest(ctx context.Context, target route.Target, body []byte) (*Request, error) {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	if c.config.Credentials != nil {
		v, err := c.config.Credentials.Authorization(ctx)
		if err != nil {
			return nil, fmt.Errorf("gateway: credentials: %w", err)
		}
		if v != "" {
			header.Set("Authorization", v)
		}
	}

	return &Request{
		Method: http.MethodPost,
		URL:    target.URL,
		Header: header,
		Body:   body,
	}, nil
}

// finish records the per-call outcome.
func (c *Client) finish(ctx context.Context, meta observe.CallMeta, duration time.Duration, err error) {
	var limited *resilience.RateLimitedError
	if errors.As(err, &limited) {
		c.metrics.RecordRateLimited(ctx, limited.Key, limited.Priority.String())
	}

	log := c.logger.WithCall(meta)
	fields := []observe.Field{
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}
	if err != nil {
		fields = append(fields, observe.Field{Key: "error", Value: err.Error()})
		log.Error(ctx, "call failed", fields...)
		return
	}
	log.Info(ctx, "call completed", fields...)
}

// Invalidate evicts a named endpoint from the resolver's cache, for use on
// lifecycle events (pause, resume, delete).
func (c *Client) Invalidate(identifier string) {
	c.resolver.Invalidate(identifier)
}

// BreakerSnapshot returns the state of every known circuit breaker.
func (c *Client) BreakerSnapshot() []resilience.CircuitBreakerMetrics {
	return c.orch.Breakers().Snapshot()
}

// CacheStats returns endpoint cache counters.
func (c *Client) CacheStats() route.CacheStats {
	return c.resolver.Cache().Stats()
}
