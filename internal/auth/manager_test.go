package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingTransport is a concurrency-safe mock transport that counts the
// requests routed to each token endpoint.
type countingTransport struct {
	mu       sync.Mutex
	tokenRes []*http.Response // consumed in order; last one repeats
	refresh  *http.Response
	delay    time.Duration

	tokenCalls   atomic.Int64
	refreshCalls atomic.Int64
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if req.Body != nil {
		_ = req.Body.Close()
	}

	if req.URL.String() == DefaultRefreshURL {
		c.refreshCalls.Add(1)
		return cloneResponse(c.refresh), nil
	}

	c.tokenCalls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	res := c.tokenRes[0]
	if len(c.tokenRes) > 1 {
		c.tokenRes = c.tokenRes[1:]
	}
	return cloneResponse(res), nil
}

// cloneResponse rebuilds the response so each caller gets a readable body.
func cloneResponse(res *http.Response) *http.Response {
	if res == nil {
		return nil
	}
	return jsonResponse(res.StatusCode, res.Header.Get("X-Test-Body"))
}

// testResponse builds a response whose body survives cloning.
func testResponse(status int, body string) *http.Response {
	res := jsonResponse(status, body)
	res.Header.Set("X-Test-Body", body)
	return res
}

func newManagerForTest(t *testing.T, transport http.RoundTripper, opts ...ManagerOption) (*Manager, *Store) {
	t.Helper()
	strategy, err := NewStrategy(Settings{
		APIKey:     "k",
		Secret:     "s",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}

	store := NewStore()
	base := []ManagerOption{WithStore(store), WithLogger(discardLogger())}
	m := NewManager(strategy, ManagerConfig{RetryWait: time.Millisecond}, append(base, opts...)...)
	return m, store
}

const okTokenBody = `{"accessToken":"T","refreshToken":"R","expiresIn":3600}`

func TestAuthenticateCredentialExchangeSuccess(t *testing.T) {
	transport := &countingTransport{
		tokenRes: []*http.Response{testResponse(http.StatusOK, okTokenBody)},
	}
	m, store := newManagerForTest(t, transport)

	if err := m.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if !m.IsAuthenticated() {
		t.Error("IsAuthenticated() = false after successful auth")
	}
	if got := m.Header().Get("Authorization"); got != "Bearer T" {
		t.Errorf("Authorization = %q, want Bearer T", got)
	}
	if got := m.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	rec, ok := store.Get("k")
	if !ok || !rec.Authenticated || rec.RefreshToken != "R" || rec.ExpiresIn != 3600 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.TimeToRefresh.IsZero() {
		t.Error("TimeToRefresh not computed")
	}
}

func TestAuthenticateIsIdempotent(t *testing.T) {
	transport := &countingTransport{
		tokenRes: []*http.Response{testResponse(http.StatusOK, okTokenBody)},
	}
	m, _ := newManagerForTest(t, transport)

	for range 3 {
		if err := m.Authenticate(context.Background()); err != nil {
			t.Fatalf("Authenticate: %v", err)
		}
	}

	if n := transport.tokenCalls.Load(); n != 1 {
		t.Errorf("token requests = %d, want 1", n)
	}
}

func TestAuthenticateCollapsesConcurrentCallers(t *testing.T) {
	transport := &countingTransport{
		tokenRes: []*http.Response{testResponse(http.StatusOK, okTokenBody)},
		delay:    20 * time.Millisecond, // widen the race window
	}
	m, _ := newManagerForTest(t, transport)

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = m.Authenticate(context.Background())
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if n := transport.tokenCalls.Load(); n != 1 {
		t.Errorf("token requests = %d, want 1", n)
	}
}

func TestAuthenticateCollapsesAcrossManagers(t *testing.T) {
	transport := &countingTransport{
		tokenRes: []*http.Response{testResponse(http.StatusOK, okTokenBody)},
		delay:    50 * time.Millisecond, // widen the race window
	}
	first, store := newManagerForTest(t, transport)

	// A second client instance built with the same API key shares the store
	// and therefore the same in-flight gate.
	strategy, err := NewStrategy(Settings{
		APIKey:     "k",
		Secret:     "s",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}
	second := NewManager(strategy, ManagerConfig{RetryWait: time.Millisecond},
		WithStore(store), WithLogger(discardLogger()))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, m := range []*Manager{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = m.Authenticate(context.Background())
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("manager %d: %v", i, err)
		}
	}
	if n := transport.tokenCalls.Load(); n != 1 {
		t.Errorf("token requests = %d, want 1 across managers sharing a principal", n)
	}
	if !first.IsAuthenticated() || !second.IsAuthenticated() {
		t.Error("both managers must observe the shared token")
	}
}

func TestAuthenticateFailureStoresBackendErrors(t *testing.T) {
	transport := &countingTransport{
		tokenRes: []*http.Response{testResponse(http.StatusUnauthorized, `{"errors":["invalid api key","unknown tenant"]}`)},
	}
	m, store := newManagerForTest(t, transport)

	err := m.Authenticate(context.Background())
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if len(authErr.Reasons) != 2 {
		t.Errorf("reasons = %v", authErr.Reasons)
	}

	if m.IsAuthenticated() {
		t.Error("IsAuthenticated() = true after rejection")
	}
	rec, ok := store.Get("k")
	if !ok {
		t.Fatal("failed attempt must still store a record")
	}
	if rec.Authenticated {
		t.Error("record marked authenticated after rejection")
	}
	if len(rec.Errors) != 2 || rec.Errors[0] != "invalid api key" || rec.Errors[1] != "unknown tenant" {
		t.Errorf("stored errors = %v", rec.Errors)
	}
}

func TestErrorsReturnsACopy(t *testing.T) {
	transport := &countingTransport{
		tokenRes: []*http.Response{testResponse(http.StatusUnauthorized, `{"errors":["invalid api key"]}`)},
	}
	m, store := newManagerForTest(t, transport)

	_ = m.Authenticate(context.Background())

	errs := m.Errors()
	if len(errs) != 1 {
		t.Fatalf("Errors() = %v", errs)
	}
	errs[0] = "mutated"

	rec, _ := store.Get("k")
	if rec.Errors[0] != "invalid api key" {
		t.Errorf("cached record corrupted through Errors(): %v", rec.Errors)
	}
}

func TestShouldRefreshFailsSafe(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	transport := &countingTransport{
		tokenRes: []*http.Response{testResponse(http.StatusOK, okTokenBody)},
	}
	m, store := newManagerForTest(t, transport, WithClock(clock))

	// Never authenticated: refresh needed.
	if !m.ShouldRefresh() {
		t.Error("ShouldRefresh() = false with no record")
	}

	// Record without a deadline: refresh needed.
	store.Put("k", Record{AccessToken: "T", Authenticated: true})
	if !m.ShouldRefresh() {
		t.Error("ShouldRefresh() = false with no deadline")
	}

	// Fresh token: no refresh.
	store.Put("k", Record{AccessToken: "T", Authenticated: true, TimeToRefresh: now.Add(time.Hour)})
	if m.ShouldRefresh() {
		t.Error("ShouldRefresh() = true before the deadline")
	}

	// Past the deadline: refresh needed.
	store.Put("k", Record{AccessToken: "T", Authenticated: true, TimeToRefresh: now.Add(-time.Second)})
	if !m.ShouldRefresh() {
		t.Error("ShouldRefresh() = false past the deadline")
	}
}

func TestRefreshFallsBackToFullAuthentication(t *testing.T) {
	transport := &countingTransport{
		refresh:  testResponse(http.StatusUnauthorized, `{"errors":["refresh token expired"]}`),
		tokenRes: []*http.Response{testResponse(http.StatusOK, `{"accessToken":"T2","refreshToken":"R2","expiresIn":3600}`)},
	}
	m, store := newManagerForTest(t, transport)

	// Authenticated long ago; the deadline has passed.
	store.Put("k", Record{
		AccessToken:   "T",
		RefreshToken:  "R",
		Authenticated: true,
		TimeToRefresh: time.Now().Add(-time.Minute),
	})

	if err := m.RefreshIfNeeded(context.Background()); err != nil {
		t.Fatalf("RefreshIfNeeded: %v", err)
	}

	if n := transport.refreshCalls.Load(); n != 1 {
		t.Errorf("refresh requests = %d, want 1", n)
	}
	if n := transport.tokenCalls.Load(); n != 1 {
		t.Errorf("token requests = %d, want 1", n)
	}

	rec, _ := store.Get("k")
	if rec.AccessToken != "T2" || rec.RefreshToken != "R2" {
		t.Errorf("record not updated: %+v", rec)
	}
}

func TestRefreshTotalFailureLeavesOldRecord(t *testing.T) {
	transport := &countingTransport{
		refresh:  testResponse(http.StatusUnauthorized, `{"errors":["refresh token expired"]}`),
		tokenRes: []*http.Response{testResponse(http.StatusUnauthorized, `{"errors":["invalid api key"]}`)},
	}
	m, store := newManagerForTest(t, transport)

	old := Record{
		AccessToken:   "T",
		RefreshToken:  "R",
		Authenticated: true,
		TimeToRefresh: time.Now().Add(-time.Minute),
	}
	store.Put("k", old)

	err := m.RefreshIfNeeded(context.Background())
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}

	// The stale record must survive so the next call retries the refresh.
	rec, _ := store.Get("k")
	if rec.AccessToken != "T" || rec.RefreshToken != "R" || !rec.Authenticated {
		t.Errorf("old record was clobbered: %+v", rec)
	}
}

func TestRefreshSkippedWhileTokenFresh(t *testing.T) {
	transport := &countingTransport{
		tokenRes: []*http.Response{testResponse(http.StatusOK, okTokenBody)},
	}
	m, store := newManagerForTest(t, transport)

	store.Put("k", Record{
		AccessToken:   "T",
		Authenticated: true,
		TimeToRefresh: time.Now().Add(time.Hour),
	})

	if err := m.RefreshIfNeeded(context.Background()); err != nil {
		t.Fatalf("RefreshIfNeeded: %v", err)
	}
	if n := transport.tokenCalls.Load() + transport.refreshCalls.Load(); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

// failingTransport fails the test on any network use.
type failingTransport struct{ t *testing.T }

func (f *failingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.t.Errorf("unexpected network request to %s", req.URL)
	return nil, errors.New("network use in static mode")
}

func TestManualTokenModeNeverTouchesTheNetwork(t *testing.T) {
	strategy, err := NewStrategy(Settings{
		AccessToken: "manual-T",
		UserID:      "tenant-42",
		HTTPClient:  &http.Client{Transport: &failingTransport{t: t}},
	})
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}
	m := NewManager(strategy, ManagerConfig{}, WithStore(NewStore()), WithLogger(discardLogger()))

	if !m.IsAuthenticated() {
		t.Error("manual mode must always be authenticated")
	}
	if err := m.Guard(context.Background()); err != nil {
		t.Fatalf("Guard: %v", err)
	}
	if m.ShouldRefresh() {
		t.Error("manual mode must never refresh")
	}
	if got := m.Header().Get("Authorization"); got != "Bearer manual-T" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestNoAuthModeCarriesNoBearer(t *testing.T) {
	strategy, err := NewStrategy(Settings{
		Disabled:        true,
		UserID:          "tenant-42",
		HasHostOverride: true,
		HTTPClient:      &http.Client{Transport: &failingTransport{t: t}},
	})
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}
	m := NewManager(strategy, ManagerConfig{}, WithStore(NewStore()), WithLogger(discardLogger()))

	if err := m.Guard(context.Background()); err != nil {
		t.Fatalf("Guard: %v", err)
	}

	h := m.Header()
	if got := h.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if _, present := h["Authorization"]; present {
		t.Error("no-auth header must carry no Authorization segment")
	}
}

func TestGuardRefreshesExpiredToken(t *testing.T) {
	transport := &countingTransport{
		refresh: testResponse(http.StatusOK, `{"accessToken":"T2","refreshToken":"R2","expiresIn":3600}`),
	}
	m, store := newManagerForTest(t, transport)

	store.Put("k", Record{
		AccessToken:   "T",
		RefreshToken:  "R",
		Authenticated: true,
		TimeToRefresh: time.Now().Add(-time.Minute),
	})

	if err := m.Guard(context.Background()); err != nil {
		t.Fatalf("Guard: %v", err)
	}

	if n := transport.refreshCalls.Load(); n != 1 {
		t.Errorf("refresh requests = %d, want 1", n)
	}
	if got := m.Header().Get("Authorization"); got != "Bearer T2" {
		t.Errorf("Authorization = %q, want Bearer T2", got)
	}
}
