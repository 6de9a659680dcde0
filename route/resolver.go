package route

import (
	"context"
	"strings"
)

// ProviderKind is the closed set of backend families. New providers are
// additional variants plus a switch arm, never a plugin interface.
type ProviderKind int

const (
	// Serverless routes to the shared, scale-to-zero inference fleet.
	Serverless ProviderKind = iota
	// Dedicated routes to a managed endpoint with an addressable lifecycle.
	Dedicated
	// ThirdParty routes to an external provider identified by name.
	ThirdParty
)

// String returns the string representation of the provider kind.
func (k ProviderKind) String() string {
	switch k {
	case Serverless:
		return "serverless"
	case Dedicated:
		return "dedicated"
	case ThirdParty:
		return "third-party"
	default:
		return "unknown"
	}
}

// Target is a concrete network destination for one call. It is produced by
// the resolver and consumed once; it holds no state beyond the call.
type Target struct {
	// URL is the fully resolved request URL.
	URL string

	// Kind is the backend family.
	Kind ProviderKind

	// Provider is the third-party provider name; empty otherwise.
	Provider string

	// Model is the logical model id or endpoint name.
	Model string
}

// Key returns the routing key partitioning breaker and rate-limit state:
// the provider family (or third-party name) joined with the logical model
// or endpoint id.
func (t Target) Key() string {
	if t.Kind == ThirdParty && t.Provider != "" {
		return t.Provider + ":" + t.Model
	}
	return t.Kind.String() + ":" + t.Model
}

// RequiresWarmup reports whether calls to this target may hit a cold start
// and should go through warm-up handling.
func (t Target) RequiresWarmup() bool {
	return t.Kind == Serverless || t.Kind == Dedicated
}

// LifecycleState is the lifecycle state of a managed endpoint.
type LifecycleState int

const (
	// StateUnknown means the manager reported no recognizable state.
	StateUnknown LifecycleState = iota
	// StateRunning means the endpoint is serving.
	StateRunning
	// StateInitializing means the endpoint is starting or scaling up.
	StateInitializing
	// StateScaledToZero means the endpoint will cold-start on first use.
	StateScaledToZero
	// StatePaused means the endpoint was administratively paused.
	StatePaused
	// StateFailed means the endpoint is broken and needs intervention.
	StateFailed
)

// String returns the string representation of the lifecycle state.
func (s LifecycleState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateInitializing:
		return "initializing"
	case StateScaledToZero:
		return "scaled-to-zero"
	case StatePaused:
		return "paused"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Serviceable reports whether calls may be routed to an endpoint in this
// state. Initializing and scaled-to-zero endpoints are serviceable; the
// cold-start handler absorbs their warm-up latency.
func (s LifecycleState) Serviceable() bool {
	switch s {
	case StateRunning, StateInitializing, StateScaledToZero:
		return true
	default:
		return false
	}
}

// EndpointStatus is what the management collaborator reports for an
// endpoint.
type EndpointStatus struct {
	State LifecycleState
	URL   string
}

// ResourceManager is the external management collaborator for targets with
// an addressable lifecycle. The resolver consults it on cache miss; the
// cold-start handler uses it as a secondary warm-up signal.
type ResourceManager interface {
	GetStatus(ctx context.Context, id string) (EndpointStatus, error)
}

// ProviderConfig describes one configured third-party provider.
type ProviderConfig struct {
	// BaseURL is the provider's API base URL.
	BaseURL string
}

// ResolverConfig configures the target resolver.
type ResolverConfig struct {
	// ServerlessBaseURL is the base URL of the serverless fleet.
	// Default: "https://api.inference.local"
	ServerlessBaseURL string

	// DefaultProvider is applied when no explicit provider is given.
	// Empty means the implicit serverless fallback.
	DefaultProvider string

	// Providers maps third-party provider names to their configuration.
	Providers map[string]ProviderConfig

	// Endpoints is the management collaborator for dedicated endpoints.
	// Nil disables dedicated routing.
	Endpoints ResourceManager

	// Cache configures the endpoint metadata cache.
	Cache CacheConfig
}

// Resolver maps a logical destination to a concrete target.
//
// Resolution order: explicit provider argument, then the configured default
// provider, then the implicit serverless fallback. Dedicated targets go
// through the endpoint cache; a miss or stale entry delegates to the
// management collaborator and repopulates the cache.
type Resolver struct {
	config ResolverConfig
	cache  *EndpointCache
}

// NewResolver creates a resolver with the given configuration.
func NewResolver(config ResolverConfig) *Resolver {
	if config.ServerlessBaseURL == "" {
		config.ServerlessBaseURL = "https://api.inference.local"
	}
	return &Resolver{
		config: config,
		cache:  NewEndpointCache(config.Cache),
	}
}

// Resolve maps identifier to a target. task optionally selects a serverless
// pipeline path; explicit forces a provider ("serverless", "dedicated", or
// a configured third-party name).
func (r *Resolver) Resolve(ctx context.Context, identifier, task, explicit string) (Target, error) {
	provider := explicit
	if provider == "" {
		provider = r.config.DefaultProvider
	}
	if provider == "" {
		provider = "serverless"
	}

	switch provider {
	case "serverless":
		return r.resolveServerless(identifier, task), nil
	case "dedicated":
		return r.resolveDedicated(ctx, identifier)
	default:
		pc, ok := r.config.Providers[provider]
		if !ok {
			return Target{}, &UnresolvedError{Identifier: identifier, Provider: provider}
		}
		return Target{
			URL:      pc.BaseURL,
			Kind:     ThirdParty,
			Provider: provider,
			Model:    identifier,
		}, nil
	}
}

// Invalidate drops cached metadata for an endpoint. Call on lifecycle
// events (pause, resume, delete) so stale URLs are never served.
func (r *Resolver) Invalidate(identifier string) {
	r.cache.Invalidate(identifier)
}

// Cache exposes the endpoint cache, primarily for stats.
func (r *Resolver) Cache() *EndpointCache {
	return r.cache
}

func (r *Resolver) resolveServerless(identifier, task string) Target {
	base := strings.TrimRight(r.config.ServerlessBaseURL, "/")
	url := base + "/models/" + identifier
	if task != "" {
		url = base + "/pipeline/" + task + "/" + identifier
	}
	return Target{
		URL:   url,
		Kind:  Serverless,
		Model: identifier,
	}
}

func (r *Resolver) resolveDedicated(ctx context.Context, identifier string) (Target, error) {
	if r.config.Endpoints == nil {
		return Target{}, &UnresolvedError{Identifier: identifier, Provider: "dedicated"}
	}

	return r.cache.GetOrResolve(ctx, identifier, func(ctx context.Context) (Target, error) {
		status, err := r.config.Endpoints.GetStatus(ctx, identifier)
		if err != nil {
			return Target{}, err
		}
		if !status.State.Serviceable() {
			return Target{}, &NotReadyError{Identifier: identifier, State: status.State}
		}
		return Target{
			URL:   status.URL,
			Kind:  Dedicated,
			Model: identifier,
		}, nil
	})
}
