package auth

import (
	"context"
	"net/http"
)

// manualStrategy serves a caller-supplied, pre-obtained bearer token. It
// never talks to a token endpoint and its token never expires from the
// client's point of view.
type manualStrategy struct {
	token string
}

var _ Strategy = (*manualStrategy)(nil)

func newManualStrategy(st Settings) (*manualStrategy, error) {
	if st.AccessToken == "" {
		return nil, &InitializationError{Message: "MANUAL_TOKEN mode requires an access token"}
	}
	if st.UserID == "" {
		return nil, &InitializationError{Message: "MANUAL_TOKEN mode requires a user id"}
	}
	return &manualStrategy{token: st.AccessToken}, nil
}

func (s *manualStrategy) Mode() Mode               { return ModeManual }
func (s *manualStrategy) Principal() string        { return manualTokenPrincipal }
func (s *manualStrategy) SupportsRefresh() bool    { return false }
func (s *manualStrategy) Static() bool             { return true }
func (s *manualStrategy) UsesAuthentication() bool { return true }

// AcquireToken is a pure local write: the supplied token is handed to the
// store as-is.
func (s *manualStrategy) AcquireToken(ctx context.Context) (*TokenReply, error) {
	return &TokenReply{
		OK:          true,
		StatusCode:  http.StatusOK,
		AccessToken: s.token,
	}, nil
}

func (s *manualStrategy) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenReply, error) {
	return nil, ErrRefreshUnsupported
}
