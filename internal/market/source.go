package market

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/guttosm/taylorpnl/internal/domain/models"
	"github.com/guttosm/taylorpnl/internal/logger"
)

// SnapshotSource produces one day of market levels.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (models.Snapshot, error)
	Name() string
}

// FileSource reads levels from a delimited file on disk.
type FileSource struct {
	Path    string
	Options SnapshotOptions
}

func (s FileSource) Snapshot(ctx context.Context) (models.Snapshot, error) {
	snap, _, err := LoadSnapshotFile(ctx, s.Path, s.Options)
	return snap, err
}

func (s FileSource) Name() string { return s.Path }

// ReaderSource reads levels from an already opened stream, e.g. an upload.
type ReaderSource struct {
	Label   string
	Reader  io.Reader
	Options SnapshotOptions
}

func (s ReaderSource) Snapshot(ctx context.Context) (models.Snapshot, error) {
	snap, _, err := LoadSnapshot(ctx, s.Reader, s.Label, s.Options)
	return snap, err
}

func (s ReaderSource) Name() string { return s.Label }

// LevelsLoader fetches the levels recorded for a business date.
type LevelsLoader interface {
	LoadSnapshot(ctx context.Context, asOf time.Time) (models.Snapshot, error)
}

// RepositorySource reads the levels of one date from a LevelsLoader.
type RepositorySource struct {
	Levels LevelsLoader
	AsOf   time.Time
}

func (s RepositorySource) Snapshot(ctx context.Context) (models.Snapshot, error) {
	return s.Levels.LoadSnapshot(ctx, s.AsOf)
}

func (s RepositorySource) Name() string { return "market_levels@" + s.AsOf.Format(time.DateOnly) }

// Load builds the catalog from today's and yesterday's sources, in that order.
func Load(ctx context.Context, today, yesterday SnapshotSource) (*Catalog, error) {
	t, err := today.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("today %s: %w", today.Name(), err)
	}
	y, err := yesterday.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("yesterday %s: %w", yesterday.Name(), err)
	}

	cat, err := NewCatalog(t, y)
	if err != nil {
		return nil, err
	}

	log := logger.Component("market")
	if cat.Len() == 0 {
		log.Warn().Str("today", today.Name()).Msg("catalog is empty; every risk row will fail lookup")
	}
	log.Info().Int("factors", cat.Len()).Str("today", today.Name()).Str("yesterday", yesterday.Name()).Msg("catalog built")
	return cat, nil
}
