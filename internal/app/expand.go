package app

import (
	"context"
	"fmt"

	"github.com/guttosm/taylorpnl/config"
	"github.com/guttosm/taylorpnl/internal/calendar"
	"github.com/guttosm/taylorpnl/internal/expansion"
	"github.com/guttosm/taylorpnl/internal/logger"
	"github.com/guttosm/taylorpnl/internal/market"
	"github.com/guttosm/taylorpnl/internal/service"
	"github.com/guttosm/taylorpnl/internal/storage"
)

// RunExpansion performs one expand-mode run: market snapshots from files or
// Postgres, risk from cfg.Files.Risk, P&L rows to cfg.Files.Output.
func RunExpansion(ctx context.Context, cfg config.Config) (expansion.Summary, error) {
	settings := service.NewSettings(cfg)

	today, yesterday, release, err := marketSources(ctx, cfg, settings.Market)
	if err != nil {
		return expansion.Summary{Source: cfg.Files.Risk, Status: expansion.StatusFailed}, err
	}
	defer release()

	return service.NewExpansionService(settings).ExpandFiles(ctx, today, yesterday, cfg.Files.Risk, cfg.Files.Output)
}

func marketSources(ctx context.Context, cfg config.Config, opts market.SnapshotOptions) (today, yesterday market.SnapshotSource, release func(), err error) {
	release = func() {}

	switch cfg.Market.Source {
	case config.SourcePostgres:
		db, err := postgresOpener(cfg)
		if err != nil {
			return nil, nil, release, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		dated := service.DatedMarket{
			Levels:   storage.NewMarketLevelsRepository(db),
			Calendar: calendar.New(cfg.Market.Holidays...),
		}
		today, yesterday, err = dated.Sources(ctx, cfg.Market.TodayDate, cfg.Market.YesterdayDate)
		if err != nil {
			_ = db.Close()
			return nil, nil, release, err
		}
		return today, yesterday, func() { _ = db.Close() }, nil

	default:
		log := logger.Component("app")
		log.Debug().Str("today", cfg.Files.Today).Str("yesterday", cfg.Files.Yesterday).Msg("reading market files")
		return market.FileSource{Path: cfg.Files.Today, Options: opts},
			market.FileSource{Path: cfg.Files.Yesterday, Options: opts},
			release, nil
	}
}
