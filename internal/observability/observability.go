// Package observability wires the process-wide logging stack. Text and JSON
// formats log straight to stderr; the otel format bridges slog into an
// OpenTelemetry logger provider so records can be shipped via OTLP.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Instrument installs the default slog logger according to the configured
// level and format ("text", "json" or "otel").
func Instrument(logLevel, logFormat string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("parsing log level %q: %w", logLevel, err)
	}

	switch logFormat {
	case "text":
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	case "json":
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	case "otel":
		provider, err := newLoggerProvider(level)
		if err != nil {
			return err
		}
		global.SetLoggerProvider(provider)
		slog.SetDefault(otelslog.NewLogger("mona", otelslog.WithLoggerProvider(provider)))
	default:
		return fmt.Errorf("unknown log format %q", logFormat)
	}

	return nil
}

// newLoggerProvider builds an sdk logger provider whose exporter follows the
// standard OTEL_EXPORTER_OTLP_* environment variables. Without an endpoint
// the records go to stdout.
func newLoggerProvider(level slog.Level) (*sdklog.LoggerProvider, error) {
	exporter, err := newExporter(context.Background())
	if err != nil {
		return nil, fmt.Errorf("creating log exporter: %w", err)
	}

	processor := minsev.NewLogProcessor(
		sdklog.NewBatchProcessor(exporter),
		minSeverity(level),
	)
	return sdklog.NewLoggerProvider(sdklog.WithProcessor(processor)), nil
}

func newExporter(ctx context.Context) (sdklog.Exporter, error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" &&
		os.Getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT") == "" {
		return stdoutlog.New()
	}
	if os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL") == "grpc" {
		return otlploggrpc.New(ctx)
	}
	return otlploghttp.New(ctx)
}

func minSeverity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
