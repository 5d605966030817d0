package secrets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringSource stores credentials in the OS-native credential manager.
type KeyringSource struct {
	service string
	user    string
}

var _ Source = (*KeyringSource)(nil)

// NewKeyringSource creates a KeyringSource under the given service and user
// identifiers.
func NewKeyringSource(service, user string) (*KeyringSource, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}
	return &KeyringSource{service: service, user: user}, nil
}

func (k *KeyringSource) Read(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	raw, err := keyring.Get(k.service, k.user)
	if err != nil {
		return Credentials{}, err
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return Credentials{}, fmt.Errorf("parsing keyring entry for %s/%s: %w", k.service, k.user, err)
	}
	if err := creds.validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

func (k *KeyringSource) Write(ctx context.Context, creds Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := creds.validate(); err != nil {
		return err
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return keyring.Set(k.service, k.user, string(data))
}
