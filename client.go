package mona

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/monalabs/mona-go/internal/auth"
)

// clientOptions holds the optional collaborators of a Client.
type clientOptions struct {
	httpClient *http.Client
	logger     *slog.Logger
	store      *auth.Store
}

// Option configures a Client.
type Option func(*clientOptions)

// WithHTTPClient sets the HTTP client used for token requests and REST
// calls. Defaults to http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// withTokenStore replaces the process-wide token store, so tests can run
// against isolated token state.
func withTokenStore(store *auth.Store) Option {
	return func(o *clientOptions) {
		o.store = store
	}
}

// Client talks to Mona's REST API. It is lightweight and safe for
// concurrent use; token state is shared process wide per API key.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	auth       *auth.Manager
}

// New creates a Client. No network I/O is performed: authentication is
// deferred to the first operation (or an explicit Authenticate call).
// Missing mode-specific parameters surface as an InitializationError.
func New(cfg Config, opts ...Option) (*Client, error) {
	o := &clientOptions{
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	strategy, err := auth.NewStrategy(cfg.strategySettings(o.httpClient))
	if err != nil {
		return nil, err
	}

	managerOpts := []auth.ManagerOption{auth.WithLogger(o.logger)}
	if o.store != nil {
		managerOpts = append(managerOpts, auth.WithStore(o.store))
	}
	manager := auth.NewManager(strategy, auth.ManagerConfig{
		Retries:             cfg.AuthRetries,
		RetryWait:           cfg.AuthRetryWait,
		RefreshSafetyMargin: cfg.RefreshSafetyMargin,
	}, managerOpts...)

	return &Client{
		cfg:        cfg,
		httpClient: o.httpClient,
		logger:     o.logger,
		auth:       manager,
	}, nil
}

// Authenticate eagerly performs the initial authentication. Calling it is
// optional; every operation authenticates lazily through the same path.
// It is idempotent and collapses concurrent calls into one token request.
func (c *Client) Authenticate(ctx context.Context) error {
	return c.auth.Authenticate(ctx)
}

// IsActive reports whether the client holds a usable token and can
// communicate with the backend. Use it to check client status instead of
// inspecting errors on every call.
func (c *Client) IsActive() bool {
	return c.auth.IsAuthenticated()
}

// tenantID resolves the tenant: the configured user id when present,
// otherwise the tenantId claim of the current access token (MONA mode).
func (c *Client) tenantID() (string, error) {
	if c.cfg.UserID != "" {
		return c.cfg.UserID, nil
	}
	return auth.TenantIDFromToken(c.auth.AccessToken())
}

// exportURL returns the rest-api endpoint receiving message batches.
func (c *Client) exportURL(tenant string) string {
	if c.cfg.RestAPIURL != "" {
		return c.cfg.RestAPIURL
	}
	if c.cfg.RestAPIHost != "" {
		return "https://" + c.cfg.RestAPIHost + "/export"
	}
	return fmt.Sprintf("https://incoming%s.monalabs.io/export", tenant)
}

// appServerURL returns the app-server base URL serving configuration and
// query endpoints.
func (c *Client) appServerURL(tenant string) string {
	if c.cfg.AppServerURL != "" {
		return c.cfg.AppServerURL
	}
	if c.cfg.AppServerHost != "" {
		return "https://" + c.cfg.AppServerHost
	}
	return fmt.Sprintf("https://api%s.monalabs.io", tenant)
}

// postJSON issues an authenticated POST and returns the response status and
// body. Transport errors are returned raw; callers wrap them into their
// operation's error type.
func (c *Client) postJSON(ctx context.Context, url string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header = c.auth.Header()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response body: %w", err)
	}
	return resp.StatusCode, raw, nil
}
