package auth

import "context"

// Static is a fixed Authorization header value, for long-lived API keys.
type Static string

// Authorization returns the fixed value.
func (s Static) Authorization(_ context.Context) (string, error) {
	return string(s), nil
}

// Bearer formats a raw token as a bearer Authorization value.
func Bearer(token string) string {
	if token == "" {
		return ""
	}
	return "Bearer " + token
}

// ProviderFunc adapts a function to a credential provider.
type ProviderFunc func(ctx context.Context) (string, error)

// Authorization calls the wrapped function.
func (f ProviderFunc) Authorization(ctx context.Context) (string, error) {
	return f(ctx)
}
