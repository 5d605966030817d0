package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	mona "github.com/monalabs/mona-go"
	"github.com/monalabs/mona-go/internal/observability"
	"github.com/monalabs/mona-go/internal/secrets"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "mona",
		Usage: "Mona monitoring platform client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json|otel)",
				Value: "text",
			},
			&cli.StringFlag{Name: "api-key", Usage: "Mona api key"},
			&cli.StringFlag{Name: "secret", Usage: "Mona api secret"},
			&cli.StringFlag{Name: "user-id", Usage: "tenant id"},
			&cli.StringFlag{Name: "auth-mode", Usage: "auth mode (MONA|OIDC|MANUAL_TOKEN|NO_AUTH)"},
			&cli.StringFlag{Name: "rest-api-host", Usage: "rest-api host override"},
			&cli.StringFlag{Name: "app-server-host", Usage: "app-server host override"},
		},
		Commands: []*cli.Command{
			exportCommand(),
			configCommand(),
			loginCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

func newClient(ctx context.Context, cmd *cli.Command) (*mona.Client, error) {
	if err := observability.Instrument(cmd.String("log-level"), cmd.String("log-format")); err != nil {
		return nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	cfg, err := loadConfig(ctx, cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return mona.New(*cfg)
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "export messages from a JSON-lines file (or stdin) to Mona",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "context-class",
				Usage: "context class for messages that do not carry one",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "messages per export request",
				Value: 128,
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "concurrent export requests",
				Value: 4,
			},
		},
		Action: exportAction,
	}
}

func exportAction(ctx context.Context, cmd *cli.Command) error {
	client, err := newClient(ctx, cmd)
	if err != nil {
		return err
	}

	input := os.Stdin
	if path := cmd.Args().First(); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		input = f
	}

	exporter := mona.NewExporter(client, mona.ExporterConfig{
		BatchSize: cmd.Int("batch-size"),
		Workers:   cmd.Int("workers"),
	})

	total := 0
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var message mona.SingleMessage
		if err := json.Unmarshal([]byte(line), &message); err != nil {
			_ = exporter.Close()
			return fmt.Errorf("line %d: %w", total+1, err)
		}
		if message.ContextClass == "" {
			message.ContextClass = cmd.String("context-class")
		}
		for !exporter.Enqueue(message) {
			time.Sleep(10 * time.Millisecond)
		}
		total++
	}
	if err := scanner.Err(); err != nil {
		_ = exporter.Close()
		return err
	}

	if err := exporter.Close(); err != nil {
		return err
	}
	slog.InfoContext(ctx, "export finished", "total", total, "dropped", exporter.Dropped())
	return nil
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "inspect and change the monitoring configuration",
		Commands: []*cli.Command{
			{
				Name:   "get",
				Usage:  "print the current configuration as JSON",
				Action: configGetAction,
			},
			{
				Name:      "upload",
				Usage:     "upload a configuration from a JSON file",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "message",
						Aliases:  []string{"m"},
						Usage:    "commit message",
						Required: true,
					},
				},
				Action: configUploadAction,
			},
		},
	}
}

func configGetAction(ctx context.Context, cmd *cli.Command) error {
	client, err := newClient(ctx, cmd)
	if err != nil {
		return err
	}

	cfg, err := client.GetConfig(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cfg)
}

func configUploadAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("missing configuration file argument")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var config map[string]any
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	client, err := newClient(ctx, cmd)
	if err != nil {
		return err
	}

	result, err := client.UploadConfig(ctx, config, cmd.String("message"))
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "configuration uploaded", "new_config_id", result.NewConfigID)
	return nil
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "store api credentials in the OS keyring (or a credentials file)",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "file",
				Usage: "store in the credentials file instead of the OS keyring",
			},
		},
		Action: loginAction,
	}
}

func loginAction(ctx context.Context, cmd *cli.Command) error {
	creds, err := promptCredentials()
	if err != nil {
		return err
	}

	var source secrets.Source
	if cmd.Bool("file") {
		path, err := credentialsFilePath()
		if err != nil {
			return err
		}
		if source, err = secrets.NewFileSource(path); err != nil {
			return err
		}
	} else {
		if source, err = secrets.NewKeyringSource(keyringService, keyringUser); err != nil {
			return err
		}
	}

	if err := source.Write(ctx, creds); err != nil {
		return fmt.Errorf("storing credentials: %w", err)
	}
	fmt.Println("credentials stored")
	return nil
}

func promptCredentials() (secrets.Credentials, error) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("api key: ")
	apiKey, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return secrets.Credentials{}, err
	}

	fmt.Print("secret: ")
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return secrets.Credentials{}, err
	}

	return secrets.Credentials{
		APIKey: strings.TrimSpace(apiKey),
		Secret: strings.TrimSpace(string(secret)),
	}, nil
}
