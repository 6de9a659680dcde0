// Package auth supplies outbound credentials for gateway calls.
//
// Providers produce the Authorization header value per call; credential
// acquisition (key issuance, OAuth flows, vault access) stays outside this
// module and is plugged in as a TokenSource. The Refresher caches a minted
// bearer token and renews it ahead of expiry, reading the expiry from the
// token's own exp claim when it is a JWT.
package auth
