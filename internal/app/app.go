package app

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/taylorpnl/config"
	"github.com/guttosm/taylorpnl/internal/api"
	"github.com/guttosm/taylorpnl/internal/calendar"
	"github.com/guttosm/taylorpnl/internal/service"
	"github.com/guttosm/taylorpnl/internal/storage"
)

// InitializeApp sets up all application dependencies and returns
// a fully configured Gin router, a cleanup function for graceful shutdown,
// and any error encountered during initialization.
//
// Responsibilities:
//   - Connects to PostgreSQL using InitPostgres() when a host is configured.
//   - Initializes the dated market resolver on top of MarketLevelsRepository.
//   - Creates the HTTP handler layer to handle requests.
//   - Configures the Gin router with all API routes.
//   - Registers health and readiness probes.
//   - Provides a cleanup function to close resources (e.g., DB connection).
func InitializeApp(cfg config.Config) (*gin.Engine, func(), error) {
	settings := service.NewSettings(cfg)
	svc := service.NewExpansionService(settings)

	opts := api.HandlerOptions{
		Market:         settings.Market,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}
	var ping func() error
	cleanup := func() {}

	if cfg.Postgres.Enabled() {
		// indirection for unit testing
		db, err := postgresOpener(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		opts.Dated = service.DatedMarket{
			Levels:   storage.NewMarketLevelsRepository(db),
			Calendar: calendar.New(cfg.Market.Holidays...),
		}
		ping = db.Ping
		cleanup = func() { _ = db.Close() }
	}

	handler := api.NewHandler(svc, opts)
	router := api.NewRouter(handler, api.RouterOptions{
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimit:      cfg.Server.RateLimit,
	})

	healthHandler := api.NewHealthHandler(ping)
	healthHandler.Register(router)

	return router, cleanup, nil
}
