package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"reflectledger/gateway/middleware"
	"reflectledger/integrations/indexer"
	"reflectledger/native/token"
)

// Config wires the gateway to a ledger.
type Config struct {
	Host          *token.Host
	Indexer       *indexer.Indexer
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	// OnCommit runs inside the write lock after a successful admin call,
	// typically to persist a snapshot.
	OnCommit func(*token.Engine) error
	Logger   *slog.Logger
}

// New builds the HTTP handler. Read routes are public and rate limited; admin
// routes require a bearer token with the admin scope.
func New(cfg Config) (http.Handler, error) {
	if cfg.Host == nil {
		return nil, errors.New("gateway: ledger host required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observability == nil {
		cfg.Observability = middleware.NewObservability(cfg.Logger, false)
	}
	api := &ledgerAPI{host: cfg.Host, indexer: cfg.Indexer, onCommit: cfg.OnCommit, logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	route := func(name string, register func(chi.Router)) {
		r.Group(func(sr chi.Router) {
			if cfg.RateLimiter != nil {
				sr.Use(cfg.RateLimiter.Middleware(name))
			}
			sr.Use(cfg.Observability.Middleware(name))
			register(sr)
		})
	}
	route("token", func(sr chi.Router) { sr.Get("/v1/token", api.token) })
	route("accounts", func(sr chi.Router) {
		sr.Get("/v1/accounts/{address}", api.account)
		sr.Get("/v1/accounts/{address}/allowances/{spender}", api.allowance)
	})
	route("dividends", func(sr chi.Router) { sr.Get("/v1/dividends", api.dividends) })
	if cfg.Indexer != nil {
		route("events", func(sr chi.Router) { sr.Get("/v1/events", api.events) })
	}
	route("admin", func(sr chi.Router) {
		sr.Use(cfg.Authenticator.Middleware(middleware.ScopeAdmin))
		sr.Post("/v1/admin/dividends/process", api.processDividends)
		sr.Post("/v1/admin/swap", api.swapAndLiquify)
		sr.Put("/v1/admin/half-tax", api.halfTax)
	})

	return otelhttp.NewHandler(r, "reflect-gateway"), nil
}
