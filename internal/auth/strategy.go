package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// Mode identifies an authentication strategy.
type Mode string

const (
	ModeMona   Mode = "MONA"
	ModeOIDC   Mode = "OIDC"
	ModeManual Mode = "MANUAL_TOKEN"
	ModeNone   Mode = "NO_AUTH"
)

// Default Mona token endpoints, overridable per Settings.
const (
	DefaultTokenURL   = "https://monalabs.frontegg.com/identity/resources/auth/v1/api-token"
	DefaultRefreshURL = "https://monalabs.frontegg.com/identity/resources/auth/v1/api-token/token/refresh"
)

// Strategy implements the token-acquisition protocol for one auth mode.
// Implementations are stateless with respect to tokens; cached token state
// lives in the Store and is managed by the Manager.
type Strategy interface {
	// Mode reports which auth mode this strategy implements.
	Mode() Mode

	// Principal returns the key partitioning cached token state, ordinarily
	// the API key. Modes without a real credential return a sentinel.
	Principal() string

	// AcquireToken performs a single full-authentication attempt.
	AcquireToken(ctx context.Context) (*TokenReply, error)

	// ExchangeRefreshToken performs a single refresh-token exchange, or
	// returns ErrRefreshUnsupported.
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenReply, error)

	// SupportsRefresh reports whether ExchangeRefreshToken is usable.
	SupportsRefresh() bool

	// Static reports whether tokens from this strategy never expire and
	// acquisition performs no network I/O.
	Static() bool

	// UsesAuthentication reports whether downstream requests carry a bearer
	// token at all. Only the no-auth mode returns false.
	UsesAuthentication() bool
}

// Settings carries the construction parameters the strategies may need.
// Which fields are required depends on the resolved mode; missing required
// fields surface as an InitializationError.
type Settings struct {
	// Mode forces a specific strategy. When empty the mode is inferred from
	// the other fields, see ResolveMode.
	Mode Mode

	// Disabled forces the no-auth mode regardless of everything else.
	Disabled bool

	APIKey string
	Secret string

	// AccessToken is a pre-obtained bearer token for the manual mode.
	AccessToken string

	// UserID is the tenant identifier. Required by modes whose tokens carry
	// no tenant claim the client can decode.
	UserID string

	// TokenURL and RefreshURL override the default token endpoints. The
	// OIDC mode has no default and requires TokenURL.
	TokenURL   string
	RefreshURL string

	// OIDCScope is the optional scope of the client_credentials grant. When
	// empty the scope parameter is omitted from the request entirely.
	OIDCScope string

	// HasHostOverride reports whether any backend host or full-URL override
	// was supplied. Used both for mode inference and for validating modes
	// that cannot derive backend hosts from a token.
	HasHostOverride bool

	// HTTPClient issues the token requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// ResolveMode picks the strategy for the given settings. An explicitly
// disabled client always resolves to no-auth; an explicit mode wins next;
// otherwise the mode is inferred: a manual token means manual mode, a host
// override means OIDC, and the default is the Mona credential exchange.
func ResolveMode(st Settings) Mode {
	if st.Disabled {
		return ModeNone
	}
	if st.Mode != "" {
		return st.Mode
	}
	if st.AccessToken != "" {
		return ModeManual
	}
	if st.HasHostOverride {
		return ModeOIDC
	}
	return ModeMona
}

// NewStrategy constructs the strategy for the resolved mode, validating the
// mode's required parameters.
func NewStrategy(st Settings) (Strategy, error) {
	if st.HTTPClient == nil {
		st.HTTPClient = http.DefaultClient
	}

	switch mode := ResolveMode(st); mode {
	case ModeMona:
		return newMonaStrategy(st)
	case ModeOIDC:
		return newOIDCStrategy(st)
	case ModeManual:
		return newManualStrategy(st)
	case ModeNone:
		return newNoAuthStrategy(st)
	default:
		return nil, &InitializationError{Message: fmt.Sprintf("unknown auth mode %q", mode)}
	}
}

// TenantIDFromToken extracts the tenant identifier from an access token's
// claims. The signature is deliberately not verified: the token was just
// received from the backend over TLS, so signature trust is delegated there,
// and the client only needs the claim to derive per-tenant hosts.
func TenantIDFromToken(accessToken string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return "", fmt.Errorf("decoding access token: %w", err)
	}
	tenant, ok := claims["tenantId"].(string)
	if !ok || tenant == "" {
		return "", fmt.Errorf("access token carries no tenantId claim")
	}
	return tenant, nil
}
