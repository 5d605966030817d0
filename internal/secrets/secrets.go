package secrets

import (
	"context"
	"errors"
)

// Credentials is an API key and its secret, as issued by Mona.
type Credentials struct {
	APIKey string `json:"api_key"`
	Secret string `json:"secret"`
}

// ErrReadOnly is returned by Write on backends that cannot persist.
var ErrReadOnly = errors.New("secrets: storage backend is read-only")

// Source reads and writes credentials to persistent storage.
type Source interface {
	// Read returns the stored credentials. Returns an error if they are
	// missing or incomplete.
	Read(ctx context.Context) (Credentials, error)

	// Write persists the credentials. Returns ErrReadOnly on backends that
	// cannot store them.
	Write(ctx context.Context, creds Credentials) error
}

func (c Credentials) validate() error {
	if c.APIKey == "" {
		return errors.New("secrets: missing api key")
	}
	if c.Secret == "" {
		return errors.New("secrets: missing secret")
	}
	return nil
}
