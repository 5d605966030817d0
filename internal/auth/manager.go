package auth

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"
)

// Default lifecycle tuning, matching the backend's documented expectations.
const (
	DefaultRetries             = 3
	DefaultRetryWait           = 2 * time.Second
	DefaultRefreshSafetyMargin = 30 * time.Minute
)

// ManagerConfig tunes the token lifecycle.
type ManagerConfig struct {
	// Retries is the number of additional attempts against the token
	// endpoint after a transport failure.
	Retries int

	// RetryWait is the fixed pause between attempts.
	RetryWait time.Duration

	// RefreshSafetyMargin is subtracted from a token's declared lifetime to
	// force proactive renewal before actual expiry.
	RefreshSafetyMargin time.Duration
}

func (c *ManagerConfig) applyDefaults() {
	if c.Retries == 0 {
		c.Retries = DefaultRetries
	}
	if c.RetryWait == 0 {
		c.RetryWait = DefaultRetryWait
	}
	if c.RefreshSafetyMargin == 0 {
		c.RefreshSafetyMargin = DefaultRefreshSafetyMargin
	}
}

// Manager owns the token lifecycle for one strategy: initial
// authentication, proactive refresh ahead of expiry, and fallback to full
// re-authentication when a refresh exchange is rejected.
//
// Concurrent (re)authentication attempts for the same principal are
// collapsed into a single in-flight token request; every waiter observes
// that request's outcome instead of issuing its own. The gate lives on the
// Store so the collapse spans every Manager sharing it, not just callers of
// one Manager instance. The check-run-recheck inside the flight covers
// callers that queued up behind a finished flight.
type Manager struct {
	strategy Strategy
	store    *Store
	cfg      ManagerConfig
	logger   *slog.Logger
	now      func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStore replaces the process-wide DefaultStore, so tests can run against
// isolated token state.
func WithStore(s *Store) ManagerOption {
	return func(m *Manager) {
		if s != nil {
			m.store = s
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source for deadline checks in tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a Manager for the given strategy.
func NewManager(strategy Strategy, cfg ManagerConfig, opts ...ManagerOption) *Manager {
	cfg.applyDefaults()

	m := &Manager{
		strategy: strategy,
		store:    DefaultStore,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mode reports the active auth mode.
func (m *Manager) Mode() Mode { return m.strategy.Mode() }

// Principal returns the key under which this manager's token state is
// cached.
func (m *Manager) Principal() string { return m.strategy.Principal() }

// UsesAuthentication reports whether downstream requests carry a bearer
// token at all.
func (m *Manager) UsesAuthentication() bool { return m.strategy.UsesAuthentication() }

// IsAuthenticated reports whether the principal holds a usable token.
// Static modes (manual token, no auth) are always authenticated.
func (m *Manager) IsAuthenticated() bool {
	return m.strategy.Static() || m.authenticated()
}

// authenticated reports whether the store holds a successful record. Unlike
// IsAuthenticated it is false for static modes before their initial local
// write, which is what Authenticate needs to decide whether to run.
func (m *Manager) authenticated() bool {
	rec, ok := m.store.Get(m.strategy.Principal())
	return ok && rec.Authenticated
}

// Authenticate performs the initial authentication. It is idempotent: once
// the principal is authenticated it returns without network I/O, and
// concurrent first-time calls collapse into one token request.
//
// On rejection the failed record, including the backend's error strings, is
// stored and an AuthenticationError returned.
func (m *Manager) Authenticate(ctx context.Context) error {
	if m.authenticated() {
		return nil
	}

	return m.store.Flight("auth:"+m.strategy.Principal(), func() error {
		if m.authenticated() {
			return nil
		}

		reply := m.acquire(ctx)
		m.storeReply(reply)
		if !reply.OK {
			return &AuthenticationError{
				Message: "could not authenticate",
				Reasons: reply.Errors,
			}
		}

		m.logger.InfoContext(ctx, "authenticated",
			"mode", m.strategy.Mode(),
			"expires_in", reply.ExpiresIn,
		)
		return nil
	})
}

// ShouldRefresh reports whether the cached token passed its refresh
// deadline. A missing record or deadline counts as needing refresh, failing
// safe toward renewal. Static modes never refresh.
func (m *Manager) ShouldRefresh() bool {
	if m.strategy.Static() {
		return false
	}

	rec, ok := m.store.Get(m.strategy.Principal())
	if !ok || rec.TimeToRefresh.IsZero() {
		return true
	}
	return m.now().After(rec.TimeToRefresh)
}

// RefreshIfNeeded renews the token when its deadline passed. Concurrent
// callers collapse into one renewal. A refresh-exchange rejection falls back
// to a full re-authentication; if that fails too, the old record is
// deliberately left untouched so the next call retries the refresh instead
// of losing the refresh token.
func (m *Manager) RefreshIfNeeded(ctx context.Context) error {
	if !m.ShouldRefresh() {
		return nil
	}

	return m.store.Flight("refresh:"+m.strategy.Principal(), func() error {
		if !m.ShouldRefresh() {
			return nil
		}

		reply := m.refreshWithFallback(ctx)
		if !reply.OK {
			return &AuthenticationError{
				Message: "could not refresh token",
				Reasons: reply.Errors,
			}
		}

		m.storeReply(reply)
		m.logger.InfoContext(ctx, "access token refreshed",
			"mode", m.strategy.Mode(),
			"expires_in", reply.ExpiresIn,
		)
		return nil
	})
}

// Guard ensures a usable token before an authenticated operation: initial
// authentication when none happened yet, then a refresh check. No-auth
// clients pass through untouched.
func (m *Manager) Guard(ctx context.Context) error {
	if !m.strategy.UsesAuthentication() {
		return nil
	}
	if err := m.Authenticate(ctx); err != nil {
		return err
	}
	return m.RefreshIfNeeded(ctx)
}

// AccessToken returns the cached access token, or "" when the principal is
// not authenticated.
func (m *Manager) AccessToken() string {
	rec, _ := m.store.Get(m.strategy.Principal())
	return rec.AccessToken
}

// Errors returns the backend-reported error strings of the last failed
// acquisition. The slice is a copy; mutating it cannot corrupt the cached
// record.
func (m *Manager) Errors() []string {
	rec, _ := m.store.Get(m.strategy.Principal())
	return slices.Clone(rec.Errors)
}

// Header returns the headers carried by downstream REST calls: the JSON
// content type always, plus the bearer token when authentication is used.
func (m *Manager) Header() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	if !m.strategy.UsesAuthentication() {
		return h
	}
	if token := m.AccessToken(); token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// acquire runs a full authentication. Static strategies produce their reply
// locally and skip the retry executor.
func (m *Manager) acquire(ctx context.Context) *TokenReply {
	if m.strategy.Static() {
		reply, _ := m.strategy.AcquireToken(ctx)
		return reply
	}
	return requestWithRetries(ctx, m.strategy.AcquireToken, m.cfg.Retries, m.cfg.RetryWait, m.logger)
}

// refreshWithFallback tries the refresh-token exchange when the mode
// supports one and a refresh token is on record, then falls back to a full
// authentication.
func (m *Manager) refreshWithFallback(ctx context.Context) *TokenReply {
	rec, _ := m.store.Get(m.strategy.Principal())

	if m.strategy.SupportsRefresh() && rec.RefreshToken != "" {
		reply := requestWithRetries(ctx, func(ctx context.Context) (*TokenReply, error) {
			return m.strategy.ExchangeRefreshToken(ctx, rec.RefreshToken)
		}, m.cfg.Retries, m.cfg.RetryWait, m.logger)
		if reply.OK {
			return reply
		}
		m.logger.WarnContext(ctx, "refresh token exchange failed, requesting a new access token",
			"errors", reply.Errors,
		)
	}

	return m.acquire(ctx)
}

// storeReply overwrites the principal's record with the reply's outcome and
// computes the refresh deadline from the declared lifetime.
func (m *Manager) storeReply(reply *TokenReply) {
	rec := Record{
		AccessToken:   reply.AccessToken,
		RefreshToken:  reply.RefreshToken,
		Authenticated: reply.OK,
		ExpiresIn:     reply.ExpiresIn,
		Errors:        reply.Errors,
	}
	if reply.OK && reply.ExpiresIn > 0 && !m.strategy.Static() {
		lifetime := time.Duration(reply.ExpiresIn) * time.Second
		rec.TimeToRefresh = m.now().Add(lifetime - m.cfg.RefreshSafetyMargin)
	}
	m.store.Put(m.strategy.Principal(), rec)
}
