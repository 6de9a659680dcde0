// Package route maps logical destinations (model ids, named endpoints,
// explicit providers) to concrete network targets.
//
// The Resolver applies a fixed resolution order: explicit provider
// argument, then the configured default provider, then the implicit
// serverless fallback. Backend families form a closed ProviderKind set;
// adding a provider means a new variant and a switch arm, not a plugin.
//
// Dedicated endpoints are resolved through a short-TTL EndpointCache
// backed by an expiring LRU. Cache misses delegate to the external
// ResourceManager collaborator, with concurrent misses for one endpoint
// collapsed into a single fetch.
//
// A Target's Key partitions all per-target resilience state (circuit
// breakers, rate-limit buckets) in the execution core.
package route
