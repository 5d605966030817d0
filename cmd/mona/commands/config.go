package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	mona "github.com/monalabs/mona-go"
	"github.com/monalabs/mona-go/internal/secrets"
)

// envPrefix is stripped from environment variables during config loading
// (e.g. MONA_SDK_API_KEY → api_key).
const envPrefix = "MONA_SDK_"

const (
	keyringService = "mona-sdk"
	keyringUser    = "default"
)

// loadConfig loads the client configuration from various sources with
// precedence: config file → environment variables → CLI flags. Credentials
// missing from all three fall back to the stored login.
func loadConfig(ctx context.Context, configPath string, cmd *cli.Command, environFunc func() []string) (*mona.Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	if cmd != nil {
		if err := k.Load(confmap.Provider(extractAndTransformFlags(cmd), "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &mona.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.APIKey == "" || config.Secret == "" {
		if creds, err := storedCredentials(ctx); err == nil {
			if config.APIKey == "" {
				config.APIKey = creds.APIKey
			}
			if config.Secret == "" {
				config.Secret = creds.Secret
			}
		}
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// extractAndTransformFlags transforms CLI flag names to match the config's
// json tags, e.g. --rest-api-host → rest_api_host. Includes parent flags.
func extractAndTransformFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	for _, name := range cmd.FlagNames() {
		// Skip unset flags to preserve precedence from earlier sources.
		if !cmd.IsSet(name) {
			continue
		}
		if value := cmd.Value(name); value != nil {
			values[strings.ReplaceAll(name, "-", "_")] = value
		}
	}
	return values
}

// storedCredentials tries the keyring first and the credentials file second,
// mirroring the order `mona login` offers for saving.
func storedCredentials(ctx context.Context) (secrets.Credentials, error) {
	if source, err := secrets.NewKeyringSource(keyringService, keyringUser); err == nil {
		if creds, err := source.Read(ctx); err == nil {
			return creds, nil
		}
	}

	path, err := credentialsFilePath()
	if err != nil {
		return secrets.Credentials{}, err
	}
	source, err := secrets.NewFileSource(path)
	if err != nil {
		return secrets.Credentials{}, err
	}
	return source.Read(ctx)
}

func credentialsFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mona", "credentials.json"), nil
}
