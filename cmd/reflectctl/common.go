package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"reflectledger/config"
	"reflectledger/core/events"
	"reflectledger/integrations/webhooks"
	"reflectledger/observability/logging"
	telemetry "reflectledger/observability/otel"
)

const (
	serviceName    = "reflectctl"
	adminSecretEnv = "REFLECT_ADMIN_SECRET"
)

func setupLogging(cfg *config.Config) (*slog.Logger, io.Closer) {
	return logging.SetupWithOptions(logging.Options{
		Service: serviceName,
		Env:     cfg.Logging.Env,
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
	})
}

func initTelemetry(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	return telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Logging.Env,
		Endpoint:    strings.TrimSpace(cfg.Telemetry.Endpoint),
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
}

// webhookSink returns the configured webhook dispatcher, or nil when none is
// configured.
func webhookSink(cfg *config.Config, logger *slog.Logger) (*webhooks.Dispatcher, error) {
	url := strings.TrimSpace(cfg.Webhook.URL)
	if url == "" {
		return nil, nil
	}
	logger.Info("webhook delivery enabled",
		slog.String("endpoint", url),
		logging.MaskField("secret", cfg.Webhook.Secret))
	return webhooks.NewDispatcher(url, []byte(cfg.Webhook.Secret),
		webhooks.WithEventTypes(cfg.Webhook.Types...),
		webhooks.WithLogger(logger))
}

// sinks builds the engine emitter from the non-nil sinks.
func sinks(primary events.Emitter, hooks *webhooks.Dispatcher) events.Emitter {
	out := events.Fanout{primary}
	if hooks != nil {
		out = append(out, hooks)
	}
	return out
}

// isFileDSN reports whether dsn names a plain sqlite file on disk.
func isFileDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	return !strings.Contains(lower, "://") && !strings.HasPrefix(lower, "file:")
}

func removeIfExists(path string) error {
	if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
