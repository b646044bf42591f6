package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/guttosm/taylorpnl/internal/delimited"
	"github.com/guttosm/taylorpnl/internal/domain/models"
	"github.com/guttosm/taylorpnl/internal/logger"
)

// SnapshotOptions describes the layout of a market level file.
type SnapshotOptions struct {
	Dialect     delimited.Dialect
	KeyColumns  []string
	ValueColumn string
}

// DefaultSnapshotOptions reads "Factor|Tenor|Value" files.
func DefaultSnapshotOptions() SnapshotOptions {
	return SnapshotOptions{
		Dialect:     delimited.PipeDialect,
		KeyColumns:  append([]string(nil), DefaultKeyColumns...),
		ValueColumn: "Value",
	}
}

// LoadStats counts the rows seen while loading one snapshot.
type LoadStats struct {
	Rows   int
	Errors int
}

// LoadSnapshotFile opens path and reads it with LoadSnapshot.
func LoadSnapshotFile(ctx context.Context, path string, opts SnapshotOptions) (models.Snapshot, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	return LoadSnapshot(ctx, f, path, opts)
}

// LoadSnapshot reads one day of market levels.
//
// It fails on:
//   - a header without the key or value columns
//   - unrecoverable read errors and context cancellation
//
// It tolerates, logging the row number and skipping the row:
//   - values that are not finite numbers
//   - short or malformed rows
//
// Duplicate keys keep the last level read.
func LoadSnapshot(ctx context.Context, r io.Reader, name string, opts SnapshotOptions) (models.Snapshot, LoadStats, error) {
	log := logger.Component("market")
	log.Info().Str("file", name).Msg("reading market data")

	var stats LoadStats
	dr, err := delimited.NewReader(r, opts.Dialect)
	if err != nil {
		return nil, stats, err
	}
	header, err := dr.ReadHeader()
	if err != nil {
		return nil, stats, err
	}
	keyOf, err := NewKeyFunc(header, opts.KeyColumns)
	if err != nil {
		return nil, stats, err
	}
	if err := header.Require(opts.ValueColumn); err != nil {
		return nil, stats, fmt.Errorf("value column: %w", err)
	}
	valueAt, _ := header.Index(opts.ValueColumn)

	snap := make(models.Snapshot)
	for {
		select {
		case <-ctx.Done():
			return nil, stats, ctx.Err()
		default:
		}

		rec, err := dr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !delimited.IsRowError(err) {
			return nil, stats, fmt.Errorf("read row after %d: %w", dr.Row(), err)
		}
		stats.Rows++
		if err == nil {
			err = addLevel(snap, header, rec, keyOf, valueAt, opts.ValueColumn)
		}
		if err != nil {
			stats.Errors++
			log.Warn().Str("file", name).Int("row", dr.Row()).Int("line", dr.Line()).Err(err).Msg("market row skipped")
		}
	}

	log.Info().Str("file", name).Int("records", len(snap)).Int("errors", stats.Errors).Msg("market data loaded")
	return snap, stats, nil
}

func addLevel(snap models.Snapshot, h delimited.Header, rec []string, keyOf KeyFunc, valueAt int, valueColumn string) error {
	key, err := keyOf(rec)
	if err != nil {
		return err
	}
	cell, err := h.Field(rec, valueAt)
	if err != nil {
		return err
	}
	v, err := delimited.ParseFloat(valueColumn, cell)
	if err != nil {
		return err
	}
	snap[key] = v
	return nil
}
