package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newOIDCForTest(t *testing.T, tokenURL, scope string) *oidcStrategy {
	t.Helper()
	s, err := newOIDCStrategy(Settings{
		APIKey:          "client-1",
		Secret:          "hunter2",
		TokenURL:        tokenURL,
		UserID:          "tenant-42",
		OIDCScope:       scope,
		HasHostOverride: true,
		HTTPClient:      http.DefaultClient,
	})
	if err != nil {
		t.Fatalf("newOIDCStrategy: %v", err)
	}
	return s
}

func TestOIDCAcquireTokenPostsClientCredentialsForm(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"T","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	s := newOIDCForTest(t, srv.URL, "export:write")

	reply, err := s.AcquireToken(context.Background())
	if err != nil {
		t.Fatalf("AcquireToken: %v", err)
	}

	if form.Get("client_id") != "client-1" {
		t.Errorf("client_id = %q", form.Get("client_id"))
	}
	if form.Get("client_secret") != "hunter2" {
		t.Errorf("client_secret = %q", form.Get("client_secret"))
	}
	if form.Get("grant_type") != "client_credentials" {
		t.Errorf("grant_type = %q", form.Get("grant_type"))
	}
	if form.Get("scope") != "export:write" {
		t.Errorf("scope = %q", form.Get("scope"))
	}

	if !reply.OK || reply.AccessToken != "T" {
		t.Errorf("unexpected reply: %+v", reply)
	}
	// oauth2 derives the expiry from expires_in; allow a little clock slack.
	if reply.ExpiresIn < 3595 || reply.ExpiresIn > 3600 {
		t.Errorf("expiresIn = %d, want ~3600", reply.ExpiresIn)
	}
}

func TestOIDCOmitsScopeKeyWhenUnset(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"T","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	s := newOIDCForTest(t, srv.URL, "")

	if _, err := s.AcquireToken(context.Background()); err != nil {
		t.Fatalf("AcquireToken: %v", err)
	}

	// The key must be absent entirely, not present with an empty value.
	if _, present := form["scope"]; present {
		t.Errorf("scope key present in form: %v", form)
	}
}

func TestOIDCRejectionIsAReplyNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"unknown client"}`))
	}))
	defer srv.Close()

	s := newOIDCForTest(t, srv.URL, "")

	reply, err := s.AcquireToken(context.Background())
	if err != nil {
		t.Fatalf("AcquireToken: %v", err)
	}
	if reply.OK {
		t.Fatal("expected rejection")
	}
	if reply.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d", reply.StatusCode)
	}
	if len(reply.Errors) != 1 || reply.Errors[0] != "invalid_client: unknown client" {
		t.Errorf("errors = %v", reply.Errors)
	}
}

func TestOIDCDoesNotSupportRefresh(t *testing.T) {
	s := newOIDCForTest(t, "https://idp.example.com/token", "")

	if s.SupportsRefresh() {
		t.Error("SupportsRefresh() = true")
	}
	if _, err := s.ExchangeRefreshToken(context.Background(), "R"); err != ErrRefreshUnsupported {
		t.Errorf("err = %v, want ErrRefreshUnsupported", err)
	}
}
