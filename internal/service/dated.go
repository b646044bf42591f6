package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guttosm/taylorpnl/internal/calendar"
	"github.com/guttosm/taylorpnl/internal/logger"
	"github.com/guttosm/taylorpnl/internal/market"
)

// ErrSnapshotNotFound is returned when no level is recorded for a date.
var ErrSnapshotNotFound = errors.New("no market levels recorded")

// LevelsRepository is the storage view needed to resolve dated snapshots.
// storage.MarketLevelsRepository implements it.
type LevelsRepository interface {
	market.LevelsLoader
	HasSnapshot(ctx context.Context, asOf time.Time) (bool, error)
}

// DatedMarket resolves today's and yesterday's snapshots from recorded levels.
type DatedMarket struct {
	Levels   LevelsRepository
	Calendar calendar.Calendar
}

// Sources returns the snapshot sources for today and yesterday. A zero
// yesterday resolves to the business day before today. Both dates must have
// recorded levels.
func (d DatedMarket) Sources(ctx context.Context, today, yesterday time.Time) (market.SnapshotSource, market.SnapshotSource, error) {
	if today.IsZero() {
		return nil, nil, errors.New("today date is required")
	}
	if yesterday.IsZero() {
		yesterday = d.Calendar.PreviousBusinessDay(today)
	}
	if !yesterday.Before(today) {
		return nil, nil, fmt.Errorf("yesterday %s must be before today %s",
			yesterday.Format(time.DateOnly), today.Format(time.DateOnly))
	}

	for _, day := range []time.Time{today, yesterday} {
		ok, err := d.Levels.HasSnapshot(ctx, day)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w for %s", ErrSnapshotNotFound, day.Format(time.DateOnly))
		}
	}

	log := logger.Component("service")
	log.Info().
		Str("today", today.Format(time.DateOnly)).
		Str("yesterday", yesterday.Format(time.DateOnly)).
		Msg("market dates resolved")
	return market.RepositorySource{Levels: d.Levels, AsOf: today},
		market.RepositorySource{Levels: d.Levels, AsOf: yesterday}, nil
}
