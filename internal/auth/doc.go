// Package auth implements token acquisition and lifetime management for the
// Mona backend.
//
// Four strategies cover the supported authentication modes:
//   - Mona credential exchange: API key + secret against the token endpoint,
//     with refresh-token renewal
//   - OIDC client credentials: standard form-encoded client_credentials grant
//   - Manual token: a caller-supplied bearer token, never refreshed
//   - No auth: for backends that enforce no credential
//
// A Manager sits on top of one strategy and owns the token lifecycle: it
// collapses concurrent authentication attempts for the same principal into a
// single request, refreshes tokens ahead of their expiry, and falls back to a
// full re-authentication when a refresh exchange is rejected.
//
// Token state is cached per principal (ordinarily the API key) in a Store.
// The default store is process wide, so client instances sharing an API key
// also share its token.
package auth
