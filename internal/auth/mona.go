package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// monaStrategy is the primary backend auth mode: it exchanges an API key and
// secret for a bearer token at the Mona token endpoint, and renews it
// through a refresh-token exchange. Both endpoints speak JSON.
type monaStrategy struct {
	apiKey     string
	secret     string
	tokenURL   string
	refreshURL string
	client     *http.Client
}

var _ Strategy = (*monaStrategy)(nil)

func newMonaStrategy(st Settings) (*monaStrategy, error) {
	if st.APIKey == "" || st.Secret == "" {
		return nil, &InitializationError{Message: "MONA mode requires an api key and a secret"}
	}

	s := &monaStrategy{
		apiKey:     st.APIKey,
		secret:     st.Secret,
		tokenURL:   st.TokenURL,
		refreshURL: st.RefreshURL,
		client:     st.HTTPClient,
	}
	if s.tokenURL == "" {
		s.tokenURL = DefaultTokenURL
	}
	if s.refreshURL == "" {
		s.refreshURL = DefaultRefreshURL
	}
	return s, nil
}

func (s *monaStrategy) Mode() Mode               { return ModeMona }
func (s *monaStrategy) Principal() string        { return s.apiKey }
func (s *monaStrategy) SupportsRefresh() bool    { return true }
func (s *monaStrategy) Static() bool             { return false }
func (s *monaStrategy) UsesAuthentication() bool { return true }

func (s *monaStrategy) AcquireToken(ctx context.Context) (*TokenReply, error) {
	return s.post(ctx, s.tokenURL, map[string]string{
		"clientId": s.apiKey,
		"secret":   s.secret,
	})
}

func (s *monaStrategy) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenReply, error) {
	return s.post(ctx, s.refreshURL, map[string]string{
		"refreshToken": refreshToken,
	})
}

// monaTokenWire is the token endpoint's reply body. The errors list is
// present only on rejection.
type monaTokenWire struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresIn    int64    `json:"expiresIn"`
	Errors       []string `json:"errors"`
}

func (s *monaStrategy) post(ctx context.Context, url string, payload map[string]string) (*TokenReply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	// An unparseable body does not count as a response; the caller retries.
	var wire monaTokenWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}

	return &TokenReply{
		OK:           resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode:   resp.StatusCode,
		AccessToken:  wire.AccessToken,
		RefreshToken: wire.RefreshToken,
		ExpiresIn:    wire.ExpiresIn,
		Errors:       wire.Errors,
	}, nil
}
