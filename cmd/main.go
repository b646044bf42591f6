package main

//
//  @title           taylorpnl API
//  @version         1.0
//  @description     Taylor-series P&L explain of risk sensitivities against day-over-day market moves.
//  @termsOfService  https://github.com/guttosm/taylorpnl
//  @contact.name    API Support
//  @contact.url     https://github.com/guttosm/taylorpnl
//  @contact.email   support@example.com
//  @license.name    MIT
//  @license.url     https://opensource.org/licenses/MIT
//  @host            localhost:8080
//  @BasePath        /
//  @schemes         http
//
//  @tag.name        expansions
//  @tag.description Delta and Gamma P&L expansion of uploaded risk files
//
//  @tag.name        health
//  @tag.description Liveness and readiness probes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guttosm/taylorpnl/config"
	_ "github.com/guttosm/taylorpnl/docs" // swagger docs
	"github.com/guttosm/taylorpnl/internal/app"
	"github.com/guttosm/taylorpnl/internal/expansion"
	"github.com/guttosm/taylorpnl/internal/logger"
)

// Process exit codes.
const (
	exitOK      = 0
	exitFatal   = 1
	exitAborted = 2
)

const shutdownTimeout = 10 * time.Second

// main is the entry point of the taylorpnl application.
//
// Modes (selected via --mode flag):
//   - expand: Reads the market snapshots and the risk file, writes the P&L file.
//   - api:    Starts the REST API that expands uploaded risk files.
//
// Run with --help for the full flag list.
func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	// Initialize JSON logger
	logger.Init()

	cfg, err := config.Load(args)
	if config.IsHelp(err) {
		_, _ = fmt.Fprintf(stderr, "Usage of taylorpnl:\n%s", config.NewFlagSet("taylorpnl").FlagUsages())
		return exitOK
	}
	if err != nil {
		logger.L().Error().Err(err).Msg("invalid configuration")
		return exitFatal
	}

	switch cfg.Mode {
	case config.ModeAPI:
		return serve(cfg)
	default:
		return expand(cfg)
	}
}

// expand runs one expansion and maps its final status to the exit code.
func expand(cfg config.Config) int {
	sum, err := app.RunExpansion(context.Background(), cfg)
	if err != nil {
		logger.L().Error().Err(err).Str("risk", cfg.Files.Risk).Str("status", string(sum.Status)).Msg("run failed")
		return exitFatal
	}
	return exitCode(sum.Status)
}

func exitCode(s expansion.Status) int {
	switch s {
	case expansion.StatusCompleted, expansion.StatusCompletedWithErrors:
		return exitOK
	case expansion.StatusAborted:
		return exitAborted
	default:
		return exitFatal
	}
}

func serve(cfg config.Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.L().Info().Msg("starting API server")
	router, cleanup, err := app.InitializeApp(cfg)
	if err != nil {
		logger.L().Error().Err(err).Msg("app init error")
		return exitFatal
	}
	defer cleanup()

	if err := runServer(ctx, newServer(router, cfg.Server)); err != nil {
		logger.L().Error().Err(err).Msg("server stopped with error")
		return exitFatal
	}
	logger.L().Info().Msg("server exited gracefully")
	return exitOK
}

// newServer builds the HTTP server. The write timeout leaves room for a
// streamed response that uses the whole request timeout.
func newServer(router http.Handler, cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       cfg.RequestTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// runServer serves until ctx is done, then shuts the server down gracefully.
// A listen failure is returned as is.
func runServer(ctx context.Context, server *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.L().Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.L().Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
