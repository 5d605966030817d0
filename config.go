package mona

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"

	"github.com/monalabs/mona-go/internal/auth"
)

// AuthMode selects the authentication strategy. When empty the mode is
// inferred from the other configuration fields.
type AuthMode = auth.Mode

const (
	AuthModeMona   = auth.ModeMona
	AuthModeOIDC   = auth.ModeOIDC
	AuthModeManual = auth.ModeManual
	AuthModeNone   = auth.ModeNone
)

// envPrefix is stripped from environment variables during config loading
// (e.g. MONA_SDK_API_KEY → api_key).
const envPrefix = "MONA_SDK_"

// Config holds the client's construction parameters. The zero value plus an
// API key and secret is a working credential-exchange configuration.
type Config struct {
	// APIKey and Secret are the credentials exchanged for an access token.
	// In OIDC mode they double as the client id and client secret.
	APIKey string `json:"api_key"`
	Secret string `json:"secret"`

	// AuthMode forces a specific strategy; empty means infer (manual token
	// present → MANUAL_TOKEN, host override present → OIDC, else MONA).
	AuthMode AuthMode `json:"auth_mode" validate:"omitempty,oneof=MONA OIDC MANUAL_TOKEN NO_AUTH"`

	// DisableAuth forces the NO_AUTH mode regardless of everything else.
	DisableAuth bool `json:"disable_auth"`

	// AccessToken is a pre-obtained bearer token for the MANUAL_TOKEN mode.
	AccessToken string `json:"access_token"`

	// UserID is the tenant identifier. Required by every mode except MONA,
	// whose access tokens carry the tenant as a claim.
	UserID string `json:"user_id"`

	// OIDCScope is the optional scope of the client_credentials grant.
	OIDCScope string `json:"oidc_scope"`

	// Token endpoint overrides. OIDC mode has no default and requires
	// AuthTokenURL.
	AuthTokenURL    string `json:"auth_api_token_url" validate:"omitempty,url"`
	RefreshTokenURL string `json:"refresh_token_url" validate:"omitempty,url"`

	// Backend overrides. Hosts take the form "api.example.com"; full URLs
	// win over hosts. Without overrides the hosts are derived from the
	// tenant id.
	AppServerHost string `json:"app_server_host" validate:"omitempty,hostname_rfc1123"`
	AppServerURL  string `json:"app_server_url" validate:"omitempty,url"`
	RestAPIHost   string `json:"rest_api_host" validate:"omitempty,hostname_rfc1123"`
	RestAPIURL    string `json:"rest_api_url" validate:"omitempty,url"`

	// Token endpoint retry policy: AuthRetries additional attempts after a
	// transport failure, AuthRetryWait apart.
	AuthRetries   int           `json:"auth_retries" validate:"min=0"`
	AuthRetryWait time.Duration `json:"auth_retry_wait"`

	// RefreshSafetyMargin is subtracted from a token's declared lifetime to
	// renew it proactively before actual expiry.
	RefreshSafetyMargin time.Duration `json:"refresh_safety_margin"`
}

// ApplyDefaults fills unset lifecycle fields with the backend's documented
// defaults. Endpoint defaults are mode-specific and live in the strategies.
func (c *Config) ApplyDefaults() {
	if c.AuthRetries == 0 {
		c.AuthRetries = auth.DefaultRetries
	}
	if c.AuthRetryWait == 0 {
		c.AuthRetryWait = auth.DefaultRetryWait
	}
	if c.RefreshSafetyMargin == 0 {
		c.RefreshSafetyMargin = auth.DefaultRefreshSafetyMargin
	}
}

// Validate validates the configuration using struct tags. Mode-specific
// requirements (e.g. MANUAL_TOKEN without a token) are validated by the
// strategy constructors in New.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return &InitializationError{Message: fmt.Sprintf("invalid configuration: %v", err)}
	}
	return nil
}

// hasHostOverride reports whether any backend host or full URL was supplied.
// Used for auth-mode inference and for modes that cannot derive hosts from a
// token.
func (c *Config) hasHostOverride() bool {
	return c.AppServerHost != "" || c.AppServerURL != "" ||
		c.RestAPIHost != "" || c.RestAPIURL != ""
}

// strategySettings maps the public configuration onto the auth core's
// settings.
func (c *Config) strategySettings(client *http.Client) auth.Settings {
	return auth.Settings{
		Mode:            c.AuthMode,
		Disabled:        c.DisableAuth,
		APIKey:          c.APIKey,
		Secret:          c.Secret,
		AccessToken:     c.AccessToken,
		UserID:          c.UserID,
		TokenURL:        c.AuthTokenURL,
		RefreshURL:      c.RefreshTokenURL,
		OIDCScope:       c.OIDCScope,
		HasHostOverride: c.hasHostOverride(),
		HTTPClient:      client,
	}
}

// FromEnv builds a Config from MONA_SDK_-prefixed environment variables,
// e.g. MONA_SDK_API_KEY, MONA_SDK_SECRET, MONA_SDK_AUTH_MODE,
// MONA_SDK_REFRESH_SAFETY_MARGIN=30m.
func FromEnv() (*Config, error) {
	return fromEnviron(nil)
}

// fromEnviron is FromEnv with an injectable environment for tests.
func fromEnviron(environFunc func() []string) (*Config, error) {
	k := koanf.New(".")

	provider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}
