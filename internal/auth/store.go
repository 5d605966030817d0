package auth

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Sentinel principal keys for modes that carry no real credential. They let
// the manual-token and no-auth modes share the same storage shape as the
// credential-backed modes.
const (
	manualTokenPrincipal = "manual_token_mode"
	noAuthPrincipal      = "no_auth_mode"
)

// Record is the cached outcome of the most recent token acquisition for one
// principal. It is overwritten wholesale on every (re)authentication and
// never deleted; absence simply means the principal never authenticated.
type Record struct {
	AccessToken  string
	RefreshToken string

	// Authenticated is true iff the last acquisition attempt produced a
	// usable access token.
	Authenticated bool

	// ExpiresIn is the server-declared token lifetime in seconds.
	ExpiresIn int64

	// TimeToRefresh is the deadline after which the token must be renewed:
	// acquisition time plus ExpiresIn minus the refresh safety margin.
	// Zero when the token never expires or acquisition failed.
	TimeToRefresh time.Time

	// Errors holds the backend-reported error strings of a failed
	// acquisition. Empty on success.
	Errors []string
}

// Store maps principal keys to token records. It is safe for concurrent use.
//
// The single-flight gate lives here rather than on the Manager: token state
// is shared per store, so mutual exclusion must share the same scope. Every
// Manager using this store, including separate client instances built with
// the same API key, collapses into one in-flight request per principal.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
	flights singleflight.Group
}

// DefaultStore is the process-wide token store shared by all clients that do
// not inject their own. Sharing it means client instances created with the
// same API key reuse one token instead of authenticating separately.
var DefaultStore = NewStore()

// NewStore creates an empty token store.
func NewStore() *Store {
	return &Store{records: make(map[string]Record)}
}

// Get returns the record for key. The second return value is false when the
// principal never authenticated.
func (s *Store) Get(key string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	return rec, ok
}

// Put overwrites the record for key in its entirety.
func (s *Store) Put(key string, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = rec
}

// Flight runs fn under the store-wide single-flight gate for key. Concurrent
// callers with the same key, from any Manager sharing this store, wait for
// the one in-flight invocation instead of starting their own.
func (s *Store) Flight(key string, fn func() error) error {
	_, err, _ := s.flights.Do(key, func() (any, error) {
		return nil, fn()
	})
	return err
}
