package expansion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/guttosm/taylorpnl/internal/delimited"
	"github.com/guttosm/taylorpnl/internal/domain/models"
	"github.com/guttosm/taylorpnl/internal/logger"
	"github.com/guttosm/taylorpnl/internal/market"
)

// Lookuper resolves the market terms of a factor. *market.Catalog implements it.
type Lookuper interface {
	FirstOrder(key models.FactorKey) (float64, error)
	SecondOrder(key models.FactorKey) (float64, error)
}

// RowReader streams the rows of the risk file. *delimited.Reader implements it.
type RowReader interface {
	ReadHeader() (delimited.Header, error)
	Read() ([]string, error)
	Row() int
}

// RowWriter receives output rows. *delimited.Writer implements it.
type RowWriter interface {
	Write(row []string) error
	Flush() error
}

// Engine expands Delta and Gamma sensitivities into P&L rows.
type Engine struct {
	factors Lookuper
	cfg     Config
	now     func() time.Time
}

// New creates an Engine reading factors from the given catalog.
func New(factors Lookuper, cfg Config) *Engine {
	return &Engine{factors: factors, cfg: cfg, now: time.Now}
}

// Run streams the risk rows of in and writes one P&L row per Delta or Gamma
// row to out, header first.
//
// Behavior:
//   - Rows whose risk type is neither Delta nor Gamma are skipped silently.
//   - A row that cannot be expanded (bad number, unknown factor, short row)
//     is logged with its row number, counted and skipped.
//   - A row error arriving once the count already exceeds MaxErrors stops the
//     stream; the summary status is StatusAborted and err is nil.
//   - Output already written is kept and flushed on every return path.
//
// Returns a non-nil error only for fatal conditions: a header missing a
// configured column, a failing reader or writer, or context cancellation.
func (e *Engine) Run(ctx context.Context, in RowReader, out RowWriter) (sum Summary, err error) {
	log := logger.Component("expansion")
	sum.Source = e.cfg.Source
	start := e.now()
	log.Info().Str("file", e.cfg.Source).Msg("expanding")

	defer func() {
		sum.Elapsed = e.now().Sub(start)
		if ferr := out.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("flush output: %w", ferr)
		}
		if err != nil {
			sum.Status = StatusFailed
		}
		log.Info().
			Str("file", sum.Source).
			Str("status", string(sum.Status)).
			Int("rows", sum.RowsRead).
			Int("written", sum.RowsWritten).
			Int("skipped", sum.RowsSkipped).
			Int("errors", sum.RowErrors).
			Dur("elapsed", sum.Elapsed).
			Float64("rows_per_sec", sum.RowsPerSecond()).
			Msg("expansion finished")
	}()

	header, err := in.ReadHeader()
	if err != nil {
		return sum, err
	}
	p, err := e.newPlan(header)
	if err != nil {
		return sum, err
	}
	if err := out.Write(e.cfg.OutputHeaders); err != nil {
		return sum, fmt.Errorf("write header: %w", err)
	}

	aborted := false
	for !aborted {
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		default:
		}

		rec, rerr := in.Read()
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil && !delimited.IsRowError(rerr) {
			return sum, fmt.Errorf("read row after %d: %w", in.Row(), rerr)
		}
		sum.RowsRead++

		var row []string
		if rerr == nil {
			row, rerr = p.expand(rec)
		}
		switch {
		case rerr != nil:
			aborted = e.rowFailed(&log, &sum, in.Row(), rerr)
		case row == nil:
			sum.RowsSkipped++
		default:
			if err := out.Write(row); err != nil {
				return sum, fmt.Errorf("write row %d: %w", in.Row(), err)
			}
			sum.RowsWritten++
		}
	}

	switch {
	case aborted:
		sum.Status = StatusAborted
	case sum.RowErrors > 0:
		sum.Status = StatusCompletedWithErrors
	default:
		sum.Status = StatusCompleted
	}
	return sum, nil
}

// rowFailed records a row error and reports whether the run must stop.
func (e *Engine) rowFailed(log *zerolog.Logger, sum *Summary, row int, err error) bool {
	log.Error().Str("file", sum.Source).Int("row", row).Err(err).Msg("row failed")

	exhausted := sum.RowErrors > e.cfg.MaxErrors
	sum.RowErrors++
	if exhausted {
		log.Warn().
			Str("file", sum.Source).
			Int("errors", sum.RowErrors).
			Int("max_errors", e.cfg.MaxErrors).
			Msg("too many errors, processing aborted")
	}
	return exhausted
}

type columnKind int

const (
	passThrough columnKind = iota
	expandedValue
	measureLabel
)

type outputColumn struct {
	kind columnKind
	at   int
}

// plan is the per-file resolution of every configured column to a position.
type plan struct {
	header      delimited.Header
	factors     Lookuper
	typeAt      int
	valueAt     int
	valueColumn string
	keyOf       market.KeyFunc
	columns     []outputColumn
}

func (e *Engine) newPlan(h delimited.Header) (*plan, error) {
	if len(e.cfg.OutputHeaders) == 0 {
		return nil, errors.New("no output headers configured")
	}

	required := []string{e.cfg.TypeColumn, e.cfg.ValueColumn}
	columns := make([]outputColumn, len(e.cfg.OutputHeaders))
	for i, name := range e.cfg.OutputHeaders {
		switch name {
		case e.cfg.OutputValueColumn:
			columns[i] = outputColumn{kind: expandedValue}
		case e.cfg.OutputMeasureColumn:
			columns[i] = outputColumn{kind: measureLabel}
		default:
			required = append(required, name)
		}
	}
	if err := h.Require(required...); err != nil {
		return nil, fmt.Errorf("risk header: %w", err)
	}
	keyOf, err := market.NewKeyFunc(h, e.cfg.KeyColumns)
	if err != nil {
		return nil, fmt.Errorf("risk header: %w", err)
	}

	for i, name := range e.cfg.OutputHeaders {
		if columns[i].kind == passThrough {
			columns[i].at, _ = h.Index(name)
		}
	}
	typeAt, _ := h.Index(e.cfg.TypeColumn)
	valueAt, _ := h.Index(e.cfg.ValueColumn)

	return &plan{
		header:      h,
		factors:     e.factors,
		typeAt:      typeAt,
		valueAt:     valueAt,
		valueColumn: e.cfg.ValueColumn,
		keyOf:       keyOf,
		columns:     columns,
	}, nil
}

// expand turns one risk row into an output row. It returns a nil row and a
// nil error for rows that are neither Delta nor Gamma.
func (p *plan) expand(rec []string) ([]string, error) {
	cell, err := p.header.Field(rec, p.typeAt)
	if err != nil {
		return nil, err
	}
	rt := models.ParseRiskType(cell)
	if rt == models.RiskOther {
		return nil, nil
	}

	cell, err = p.header.Field(rec, p.valueAt)
	if err != nil {
		return nil, err
	}
	sensitivity, err := delimited.ParseFloat(p.valueColumn, cell)
	if err != nil {
		return nil, err
	}

	key, err := p.keyOf(rec)
	if err != nil {
		return nil, err
	}
	var factor float64
	if rt == models.RiskDelta {
		factor, err = p.factors.FirstOrder(key)
	} else {
		factor, err = p.factors.SecondOrder(key)
	}
	if err != nil {
		return nil, err
	}

	product := sensitivity * factor
	if math.IsInf(product, 0) || math.IsNaN(product) {
		return nil, fmt.Errorf("%w: %s for %s (sensitivity %g, factor %g)", ErrNonFiniteValue, rt.Measure(), key, sensitivity, factor)
	}
	value := FormatValue(product)
	row := make([]string, len(p.columns))
	for i, c := range p.columns {
		switch c.kind {
		case expandedValue:
			row[i] = value
		case measureLabel:
			row[i] = rt.Measure()
		default:
			if row[i], err = p.header.Field(rec, c.at); err != nil {
				return nil, err
			}
		}
	}
	return row, nil
}
