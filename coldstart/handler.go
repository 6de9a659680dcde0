package coldstart

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jonwraymond/inferops/route"
)

// Phase is the stage of a wait session. Each phase uses different poll
// delays: Fast backs off 2,4,8,16s over the first 30 seconds, Steady polls
// every 15s until three minutes, Slow every 30s after that.
type Phase int

const (
	// PhaseFast covers the first 30 seconds of a session.
	PhaseFast Phase = iota
	// PhaseSteady covers 30 seconds to 3 minutes.
	PhaseSteady
	// PhaseSlow covers everything after 3 minutes.
	PhaseSlow
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseFast:
		return "fast"
	case PhaseSteady:
		return "steady"
	case PhaseSlow:
		return "slow"
	default:
		return "unknown"
	}
}

const (
	fastWindow   = 30 * time.Second
	steadyWindow = 3 * time.Minute
	steadyDelay  = 15 * time.Second
	slowDelay    = 30 * time.Second
)

// warmupMarkers are body substrings that indicate a warming backend rather
// than a broken one. Detection is heuristic; lifecycle status from the
// management collaborator is the secondary signal.
var warmupMarkers = []string{
	"currently loading",
	"is loading",
	"loading model",
	"initializing",
	"warming up",
	"estimated_time",
}

// Detection is the outcome of inspecting a response for warm-up markers.
type Detection struct {
	// Warming reports whether the response means "warming up".
	Warming bool

	// EstimatedTime is the backend's own load estimate, when present.
	EstimatedTime time.Duration
}

// Detect inspects a 503-class response body for warm-up markers.
func Detect(status int, body []byte) Detection {
	if status != http.StatusServiceUnavailable {
		return Detection{}
	}

	// A structured estimate is the strongest signal.
	var payload struct {
		Error         string  `json:"error"`
		EstimatedTime float64 `json:"estimated_time"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.EstimatedTime > 0 {
		return Detection{
			Warming:       true,
			EstimatedTime: time.Duration(payload.EstimatedTime * float64(time.Second)),
		}
	}

	lower := strings.ToLower(string(body))
	for _, marker := range warmupMarkers {
		if strings.Contains(lower, marker) {
			return Detection{Warming: true}
		}
	}
	return Detection{}
}

// Result is one poll outcome handed back to the handler.
type Result struct {
	Status int
	Body   []byte
}

// Config configures the cold-start handler.
type Config struct {
	// Disabled turns the wait-and-retry loop off. When set, the first
	// warm-up detection returns *ModelLoadingError immediately.
	// Default: false (auto-wait enabled)
	Disabled bool

	// Timeout bounds the total wait per session.
	// Default: 5 minutes
	Timeout time.Duration

	// Manager is the optional management collaborator used as a
	// secondary warm-up signal for targets with lifecycle status.
	Manager route.ResourceManager

	// OnPoll is called before each poll sleep.
	OnPoll func(session Session, delay time.Duration)

	// Sleep waits for the given duration, honoring ctx cancellation.
	// Overridable in tests. Default: timer-based sleep.
	Sleep func(ctx context.Context, d time.Duration) error

	// Now returns the current time. Overridable in tests.
	// Default: time.Now
	Now func() time.Time
}

// Session tracks one wait-and-retry loop. Sessions are call-scoped and
// discarded on exit.
type Session struct {
	// Target is the routing key being waited on.
	Target string

	// StartedAt is when the session began.
	StartedAt time.Time

	// Retries is the number of polls issued so far.
	Retries int

	// Phase is the current stage of the session.
	Phase Phase

	// Waited is the accumulated wait budget spent.
	Waited time.Duration
}

// Handler manages cold-start recovery: a bounded, phased wait-and-retry
// loop distinct from ordinary retry in timing, trigger and terminal error.
type Handler struct {
	config Config
}

// NewHandler creates a cold-start handler.
func NewHandler(config Config) *Handler {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	if config.Sleep == nil {
		config.Sleep = sleepCtx
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Handler{config: config}
}

// Warming classifies a response, consulting the management collaborator as
// a secondary signal when body inspection alone is inconclusive.
func (h *Handler) Warming(ctx context.Context, target route.Target, res Result) Detection {
	det := Detect(res.Status, res.Body)
	if det.Warming || res.Status != http.StatusServiceUnavailable {
		return det
	}

	if h.config.Manager != nil && target.Kind == route.Dedicated {
		status, err := h.config.Manager.GetStatus(ctx, target.Model)
		if err == nil {
			switch status.State {
			case route.StateInitializing, route.StateScaledToZero:
				det.Warming = true
			}
		}
	}
	return det
}

// Handle runs the wait loop after a warm-up has been detected. poll
// resends the original request unmodified. It returns the first
// non-warm-up result as-is (success or error response), or a
// *TimeoutError when the wait budget is exhausted. With auto-wait
// disabled it returns *ModelLoadingError immediately.
func (h *Handler) Handle(ctx context.Context, target route.Target, first Detection, poll func(ctx context.Context) (Result, error)) (Result, error) {
	key := target.Key()

	if h.config.Disabled {
		return Result{}, &ModelLoadingError{Target: key, EstimatedTime: first.EstimatedTime}
	}

	session := Session{
		Target:    key,
		StartedAt: h.config.Now(),
	}

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		// The budget check covers both the issued sleep and the wall
		// clock, so slow polls cannot stretch the session past
		// Timeout plus one poll interval.
		delay := h.delayFor(&session)
		elapsed := h.config.Now().Sub(session.StartedAt)
		if elapsed < session.Waited {
			elapsed = session.Waited
		}
		if elapsed+delay > h.config.Timeout {
			return Result{}, &TimeoutError{Target: key, Waited: elapsed}
		}

		if h.config.OnPoll != nil {
			h.config.OnPoll(session, delay)
		}
		if err := h.config.Sleep(ctx, delay); err != nil {
			return Result{}, err
		}
		session.Waited += delay
		session.Retries++

		res, err := poll(ctx)
		if err != nil {
			// Transport failure ends the session; ordinary retry owns it.
			return Result{}, err
		}

		det := h.Warming(ctx, target, res)
		if !det.Warming {
			// Success and non-warm-up responses are returned as-is.
			return res, nil
		}
	}
}

// delayFor computes the next poll delay and updates the session phase.
// The phase is derived from the wait budget already spent, which keeps the
// session within Timeout plus at most one poll interval.
func (h *Handler) delayFor(s *Session) time.Duration {
	switch {
	case s.Waited < fastWindow:
		s.Phase = PhaseFast
		d := 2 * time.Second << s.Retries
		if d > 16*time.Second {
			d = 16 * time.Second
		}
		return d
	case s.Waited < steadyWindow:
		s.Phase = PhaseSteady
		return steadyDelay
	default:
		s.Phase = PhaseSlow
		return slowDelay
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
