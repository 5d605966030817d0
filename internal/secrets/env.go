package secrets

import (
	"context"
	"fmt"
	"os"
)

// EnvSource reads credentials from a pair of environment variables. It is
// read-only; the login flow needs a file or keyring backend.
type EnvSource struct {
	keyVar    string
	secretVar string
}

var _ Source = (*EnvSource)(nil)

// NewEnvSource creates an EnvSource reading the given variables, typically
// MONA_SDK_API_KEY and MONA_SDK_SECRET.
func NewEnvSource(keyVar, secretVar string) (*EnvSource, error) {
	if keyVar == "" || secretVar == "" {
		return nil, fmt.Errorf("environment variable names cannot be empty")
	}
	return &EnvSource{keyVar: keyVar, secretVar: secretVar}, nil
}

func (e *EnvSource) Read(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	creds := Credentials{
		APIKey: os.Getenv(e.keyVar),
		Secret: os.Getenv(e.secretVar),
	}
	if err := creds.validate(); err != nil {
		return Credentials{}, fmt.Errorf("%w (from %s/%s)", err, e.keyVar, e.secretVar)
	}
	return creds, nil
}

func (e *EnvSource) Write(ctx context.Context, _ Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrReadOnly
}
