package auth

import (
	"errors"
	"strings"
)

// ErrRefreshUnsupported is returned by strategies that have no refresh-token
// exchange; the Manager falls back to a full re-authentication.
var ErrRefreshUnsupported = errors.New("auth: refresh token exchange not supported")

// InitializationError reports missing or inconsistent construction
// parameters, such as a manual-token mode without a token. It is returned
// eagerly at client construction, never during operation.
type InitializationError struct {
	Message string
}

func (e *InitializationError) Error() string {
	return "auth: " + e.Message
}

// AuthenticationError reports a failed token acquisition or refresh.
// Reasons carries the backend-reported error strings verbatim.
type AuthenticationError struct {
	Message string
	Reasons []string
}

func (e *AuthenticationError) Error() string {
	if len(e.Reasons) == 0 {
		return "auth: " + e.Message
	}
	return "auth: " + e.Message + ": " + strings.Join(e.Reasons, ", ")
}
