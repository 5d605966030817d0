package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// oidcStrategy authenticates through a standard OIDC client_credentials
// grant: client id, secret and grant type are posted form-encoded to the
// token endpoint. The grant has no refresh-token leg, so renewal is always a
// fresh authentication.
type oidcStrategy struct {
	conf      *clientcredentials.Config
	principal string
	client    *http.Client
}

var _ Strategy = (*oidcStrategy)(nil)

func newOIDCStrategy(st Settings) (*oidcStrategy, error) {
	if st.APIKey == "" || st.Secret == "" || st.TokenURL == "" {
		return nil, &InitializationError{Message: "OIDC mode requires an api key, a secret and a token URL"}
	}
	if st.UserID == "" {
		return nil, &InitializationError{Message: "OIDC mode requires a user id"}
	}
	if !st.HasHostOverride {
		return nil, &InitializationError{Message: "OIDC mode requires a backend host or full URL override"}
	}

	conf := &clientcredentials.Config{
		ClientID:     st.APIKey,
		ClientSecret: st.Secret,
		TokenURL:     st.TokenURL,
		// Credentials go in the form body, not a basic-auth header.
		AuthStyle: oauth2.AuthStyleInParams,
	}
	// Scope is omitted from the request entirely when not configured.
	if st.OIDCScope != "" {
		conf.Scopes = []string{st.OIDCScope}
	}

	return &oidcStrategy{
		conf:      conf,
		principal: st.APIKey,
		client:    st.HTTPClient,
	}, nil
}

func (s *oidcStrategy) Mode() Mode               { return ModeOIDC }
func (s *oidcStrategy) Principal() string        { return s.principal }
func (s *oidcStrategy) SupportsRefresh() bool    { return false }
func (s *oidcStrategy) Static() bool             { return false }
func (s *oidcStrategy) UsesAuthentication() bool { return true }

func (s *oidcStrategy) AcquireToken(ctx context.Context) (*TokenReply, error) {
	// conf.Token caches nothing when called directly, so every invocation is
	// a real network request; caching is the Manager's job.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	tok, err := s.conf.Token(ctx)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return oidcRejectionReply(re)
		}
		return nil, err
	}

	var expiresIn int64
	if !tok.Expiry.IsZero() {
		expiresIn = int64(time.Until(tok.Expiry).Round(time.Second).Seconds())
	}

	return &TokenReply{
		OK:          true,
		StatusCode:  http.StatusOK,
		AccessToken: tok.AccessToken,
		ExpiresIn:   expiresIn,
	}, nil
}

func (s *oidcStrategy) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenReply, error) {
	return nil, ErrRefreshUnsupported
}

// oidcRejectionReply converts a token-endpoint rejection into a reply. The
// body must parse as JSON to count as a response; anything else is handed
// back as an error so the executor retries it.
func oidcRejectionReply(re *oauth2.RetrieveError) (*TokenReply, error) {
	var wire struct {
		Error            string   `json:"error"`
		ErrorDescription string   `json:"error_description"`
		Errors           []string `json:"errors"`
	}
	if err := json.Unmarshal(re.Body, &wire); err != nil {
		return nil, fmt.Errorf("parsing token rejection: %w", err)
	}

	reasons := wire.Errors
	if wire.Error != "" {
		reason := wire.Error
		if wire.ErrorDescription != "" {
			reason += ": " + wire.ErrorDescription
		}
		reasons = append(reasons, reason)
	}

	status := http.StatusBadRequest
	if re.Response != nil {
		status = re.Response.StatusCode
	}

	return &TokenReply{
		StatusCode: status,
		Errors:     reasons,
	}, nil
}
