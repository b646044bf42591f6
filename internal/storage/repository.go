package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	pq "github.com/lib/pq"

	"github.com/guttosm/taylorpnl/internal/domain/models"
)

// ErrUnavailable wraps every failure to read market_levels (connection,
// query, scan, missing table).
var ErrUnavailable = errors.New("market levels storage unavailable")

// undefinedTable is the Postgres SQLSTATE for a missing relation.
const undefinedTable = "42P01"

// MarketLevelsRepository defines the read operations on recorded market levels.
type MarketLevelsRepository interface {
	LoadSnapshot(ctx context.Context, asOf time.Time) (models.Snapshot, error)
	HasSnapshot(ctx context.Context, asOf time.Time) (bool, error)
}

type marketLevelsRepository struct {
	db *sql.DB
}

func NewMarketLevelsRepository(db *sql.DB) MarketLevelsRepository {
	return &marketLevelsRepository{db: db}
}

// LoadSnapshot returns every level recorded for asOf keyed "factor/tenor".
// A date without rows yields an empty snapshot and no error.
func (r *marketLevelsRepository) LoadSnapshot(ctx context.Context, asOf time.Time) (models.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT factor, tenor, value FROM market_levels WHERE as_of = $1`,
		dateOnly(asOf))
	if err != nil {
		return nil, wrapQueryErr(err)
	}
	defer func() { _ = rows.Close() }()

	snap := make(models.Snapshot)
	for rows.Next() {
		var factor, tenor string
		var value float64
		if err := rows.Scan(&factor, &tenor, &value); err != nil {
			return nil, fmt.Errorf("%w: scan market level: %w", ErrUnavailable, err)
		}
		snap[models.NewFactorKey(factor, tenor)] = value
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryErr(err)
	}
	return snap, nil
}

// HasSnapshot checks if any level was recorded for asOf.
func (r *marketLevelsRepository) HasSnapshot(ctx context.Context, asOf time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM market_levels WHERE as_of = $1)`,
		dateOnly(asOf)).Scan(&exists)
	if err != nil {
		return false, wrapQueryErr(err)
	}
	return exists, nil
}

func wrapQueryErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
		return fmt.Errorf("%w: market_levels table not found, run the db/migrations first: %w", ErrUnavailable, err)
	}
	return fmt.Errorf("%w: query market_levels: %w", ErrUnavailable, err)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
