package mona

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/monalabs/mona-go/internal/auth"
)

const testTokenBody = `{"accessToken":"T","refreshToken":"R","expiresIn":3600}`

// newTestServers starts a token endpoint and a backend endpoint and returns
// a client wired to both, with an isolated token store.
func newTestServers(t *testing.T, backend http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, testTokenBody)
	}))
	t.Cleanup(tokenServer.Close)

	backendServer := httptest.NewServer(backend)
	t.Cleanup(backendServer.Close)

	client, err := New(Config{
		APIKey:        "key-1",
		Secret:        "secret-1",
		AuthMode:      AuthModeMona,
		UserID:        "tenant-1",
		AuthTokenURL:  tokenServer.URL,
		RestAPIURL:    backendServer.URL,
		AppServerURL:  backendServer.URL,
		AuthRetryWait: time.Millisecond,
	},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		withTokenStore(auth.NewStore()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client, backendServer
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{
		APIKey:       "k",
		Secret:       "s",
		AuthTokenURL: "not a url",
	})
	var initErr *InitializationError
	if !errors.As(err, &initErr) {
		t.Fatalf("err = %v, want InitializationError", err)
	}
}

func TestNewRejectsIncompleteManualMode(t *testing.T) {
	_, err := New(Config{AuthMode: AuthModeManual, AccessToken: "tok"})
	var initErr *InitializationError
	if !errors.As(err, &initErr) {
		t.Fatalf("err = %v, want InitializationError", err)
	}
}

func TestBackendURLDerivation(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		wantExport string
		wantApp    string
	}{
		{
			name:       "derived from tenant",
			cfg:        Config{},
			wantExport: "https://incomingtenant-1.monalabs.io/export",
			wantApp:    "https://apitenant-1.monalabs.io",
		},
		{
			name:       "host overrides",
			cfg:        Config{RestAPIHost: "in.example.com", AppServerHost: "app.example.com"},
			wantExport: "https://in.example.com/export",
			wantApp:    "https://app.example.com",
		},
		{
			name:       "full URLs win over hosts",
			cfg:        Config{RestAPIHost: "in.example.com", RestAPIURL: "http://localhost:9000/in", AppServerURL: "http://localhost:9001"},
			wantExport: "http://localhost:9000/in",
			wantApp:    "http://localhost:9001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{cfg: tt.cfg}
			if got := c.exportURL("tenant-1"); got != tt.wantExport {
				t.Errorf("exportURL = %q, want %q", got, tt.wantExport)
			}
			if got := c.appServerURL("tenant-1"); got != tt.wantApp {
				t.Errorf("appServerURL = %q, want %q", got, tt.wantApp)
			}
		})
	}
}

func TestIsActiveAfterAuthenticate(t *testing.T) {
	client, _ := newTestServers(t, func(w http.ResponseWriter, r *http.Request) {})

	if client.IsActive() {
		t.Fatal("IsActive = true before any authentication")
	}
	if err := client.Authenticate(t.Context()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !client.IsActive() {
		t.Fatal("IsActive = false after successful authentication")
	}
}

func TestTenantIDPrefersConfiguredUser(t *testing.T) {
	client, _ := newTestServers(t, func(w http.ResponseWriter, r *http.Request) {})

	tenant, err := client.tenantID()
	if err != nil {
		t.Fatalf("tenantID: %v", err)
	}
	if tenant != "tenant-1" {
		t.Errorf("tenant = %q, want %q", tenant, "tenant-1")
	}
}

func decodeBody(t *testing.T, r *http.Request, v any) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		t.Fatalf("decoding request body: %v", err)
	}
}
