package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reflectledger/cmd/internal/secret"
	"reflectledger/config"
	"reflectledger/gateway/middleware"
	"reflectledger/gateway/routes"
	"reflectledger/integrations/indexer"
	"reflectledger/native/token"
)

const shutdownTimeout = 10 * time.Second

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the ledger configuration")
	listen := fs.String("listen", "", "Override the listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.ListenAddress = *listen
	}

	logger, logCloser := setupLogging(cfg)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := initTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTelemetry(flushCtx)
	}()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	engine, restored, err := loadEngine(cfg, store)
	if err != nil {
		return err
	}
	if !restored {
		logger.Warn("no snapshot found, serving genesis state", slog.String("config", *configPath))
	}

	ix, err := indexer.Open(cfg.EventsDSN())
	if err != nil {
		return err
	}
	defer ix.Close()
	ix.SetLogger(logger)
	hooks, err := webhookSink(cfg, logger)
	if err != nil {
		return err
	}
	defer hooks.Close()
	engine.SetEmitter(sinks(ix, hooks))
	engine.SetLogger(logger)

	auth, err := adminAuthenticator(cfg, logger)
	if err != nil {
		return err
	}
	handler, err := routes.New(routes.Config{
		Host:          token.NewHost(engine),
		Indexer:       ix,
		Authenticator: auth,
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimit{
			RatePerSecond: cfg.Gateway.RateLimitPerSecond,
			Burst:         cfg.Gateway.Burst,
		}, logger),
		Observability: middleware.NewObservability(logger, cfg.Gateway.LogRequests),
		CORS:          middleware.CORSConfig{AllowedOrigins: cfg.Gateway.AllowedOrigins},
		OnCommit: func(e *token.Engine) error {
			return e.Save(store)
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening",
			slog.String("listen", cfg.ListenAddress),
			slog.Bool("admin", auth.Enabled()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("gateway: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway shutdown: %w", err)
	}
	return nil
}

// adminAuthenticator returns an authenticator for the admin routes. Without a
// secret in the environment or configuration the routes stay closed.
func adminAuthenticator(cfg *config.Config, logger *slog.Logger) (*middleware.Authenticator, error) {
	value, ok, err := secret.NewSource("gateway admin secret", adminSecretEnv, cfg.Gateway.AdminSecret).Lookup()
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.Warn("admin routes disabled; no admin secret configured")
	}
	return middleware.NewAuthenticator(authConfig(cfg, value), logger), nil
}

func authConfig(cfg *config.Config, hmacSecret string) middleware.AuthConfig {
	return middleware.AuthConfig{
		HMACSecret: hmacSecret,
		Issuer:     cfg.Gateway.Issuer,
		Audience:   cfg.Gateway.Audience,
	}
}

func runAdminToken(args []string) error {
	fs := flag.NewFlagSet("admin-token", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the ledger configuration")
	subject := fs.String("subject", "operator", "Token subject")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	value, err := secret.NewSource("gateway admin secret", adminSecretEnv, cfg.Gateway.AdminSecret).Get()
	if err != nil {
		return err
	}
	signed, err := middleware.IssueToken(authConfig(cfg, value), *subject, []string{middleware.ScopeAdmin}, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(signed)
	return nil
}
