package mona

import "github.com/monalabs/mona-go/internal/auth"

// Error types of the authentication core, re-exported so callers can use
// errors.As without importing internal packages.
type (
	// InitializationError reports missing or inconsistent construction
	// parameters. Returned by New, never by operations.
	InitializationError = auth.InitializationError

	// AuthenticationError reports a failed token acquisition or refresh,
	// carrying the backend-reported error strings.
	AuthenticationError = auth.AuthenticationError
)

// ExportError reports a failed export operation. A failed export never
// invalidates the cached token.
type ExportError struct {
	Message string
}

func (e *ExportError) Error() string {
	return "mona: " + e.Message
}

// ConfigError reports a failed configuration upload or retrieval.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "mona: " + e.Message
}
