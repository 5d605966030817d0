package auth

import (
	"context"
	"net/http"
)

// noAuthStrategy is used when the backend endpoint enforces no credential.
// It exists so request-building code works uniformly whether or not
// authentication is in play: the auth header then carries only the content
// type, no bearer segment.
type noAuthStrategy struct{}

var _ Strategy = (*noAuthStrategy)(nil)

func newNoAuthStrategy(st Settings) (*noAuthStrategy, error) {
	if st.UserID == "" {
		return nil, &InitializationError{Message: "NO_AUTH mode requires a user id"}
	}
	if !st.HasHostOverride {
		return nil, &InitializationError{Message: "NO_AUTH mode requires a backend host or full URL override"}
	}
	return &noAuthStrategy{}, nil
}

func (s *noAuthStrategy) Mode() Mode               { return ModeNone }
func (s *noAuthStrategy) Principal() string        { return noAuthPrincipal }
func (s *noAuthStrategy) SupportsRefresh() bool    { return false }
func (s *noAuthStrategy) Static() bool             { return true }
func (s *noAuthStrategy) UsesAuthentication() bool { return false }

func (s *noAuthStrategy) AcquireToken(ctx context.Context) (*TokenReply, error) {
	return &TokenReply{OK: true, StatusCode: http.StatusOK}, nil
}

func (s *noAuthStrategy) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenReply, error) {
	return nil, ErrRefreshUnsupported
}
