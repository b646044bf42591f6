package service

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/guttosm/taylorpnl/config"
	"github.com/guttosm/taylorpnl/internal/delimited"
	"github.com/guttosm/taylorpnl/internal/expansion"
	"github.com/guttosm/taylorpnl/internal/logger"
	"github.com/guttosm/taylorpnl/internal/market"
)

// DefaultMaxErrors tells Expand to use the configured error budget.
const DefaultMaxErrors = -1

// Settings is the file layout shared by every run.
type Settings struct {
	Market          market.SnapshotOptions
	RiskDialect     delimited.Dialect
	Engine          expansion.Config
	OutputDelimiter rune
}

// NewSettings maps the application configuration onto the run layout.
func NewSettings(cfg config.Config) Settings {
	return Settings{
		Market: market.SnapshotOptions{
			Dialect:     cfg.Market.Dialect,
			KeyColumns:  cfg.Market.KeyColumns,
			ValueColumn: cfg.Market.ValueColumn,
		},
		RiskDialect: cfg.Risk.Dialect,
		Engine: expansion.Config{
			TypeColumn:          cfg.Risk.TypeColumn,
			ValueColumn:         cfg.Risk.ValueColumn,
			KeyColumns:          cfg.Risk.KeyColumns,
			OutputHeaders:       cfg.Output.Headers,
			OutputValueColumn:   cfg.Output.ValueColumn,
			OutputMeasureColumn: cfg.Output.MeasureColumn,
			MaxErrors:           cfg.MaxErrors,
		},
		OutputDelimiter: cfg.Output.Delimiter,
	}
}

// ExpansionService runs Taylor-series expansions.
type ExpansionService interface {
	// BuildCatalog reads both snapshots and derives the market factors.
	BuildCatalog(ctx context.Context, today, yesterday market.SnapshotSource) (*market.Catalog, error)
	// Expand streams risk into out using factors from cat. A negative
	// maxErrors keeps the configured budget.
	Expand(ctx context.Context, cat *market.Catalog, risk io.Reader, name string, out io.Writer, maxErrors int) (expansion.Summary, error)
	// ExpandFiles runs one complete file-to-file expansion.
	ExpandFiles(ctx context.Context, today, yesterday market.SnapshotSource, riskPath, outputPath string) (expansion.Summary, error)
}

type expansionService struct {
	settings Settings
}

func NewExpansionService(settings Settings) ExpansionService {
	return &expansionService{settings: settings}
}

func (s *expansionService) BuildCatalog(ctx context.Context, today, yesterday market.SnapshotSource) (*market.Catalog, error) {
	return market.Load(ctx, today, yesterday)
}

func (s *expansionService) Expand(ctx context.Context, cat *market.Catalog, risk io.Reader, name string, out io.Writer, maxErrors int) (expansion.Summary, error) {
	in, err := delimited.NewReader(risk, s.settings.RiskDialect)
	if err != nil {
		return expansion.Summary{Source: name, Status: expansion.StatusFailed}, fmt.Errorf("risk dialect: %w", err)
	}
	w, err := delimited.NewWriter(out, s.settings.OutputDelimiter)
	if err != nil {
		return expansion.Summary{Source: name, Status: expansion.StatusFailed}, err
	}

	cfg := s.settings.Engine
	cfg.Source = name
	if maxErrors >= 0 {
		cfg.MaxErrors = maxErrors
	}
	return expansion.New(cat, cfg).Run(ctx, in, w)
}

// ExpandFiles acquires its resources in order (risk input, catalog, output)
// and releases each one on every return path. The output file is only
// created once the catalog is built, so a failed catalog leaves no file.
func (s *expansionService) ExpandFiles(ctx context.Context, today, yesterday market.SnapshotSource, riskPath, outputPath string) (sum expansion.Summary, err error) {
	log := logger.Component("service")
	sum = expansion.Summary{Source: riskPath, Status: expansion.StatusFailed}

	risk, err := os.Open(riskPath)
	if err != nil {
		return sum, fmt.Errorf("open risk file: %w", err)
	}
	defer func() { _ = risk.Close() }()

	cat, err := s.BuildCatalog(ctx, today, yesterday)
	if err != nil {
		return sum, err
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return sum, fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
			sum.Status = expansion.StatusFailed
		}
	}()

	log.Info().Str("risk", riskPath).Str("output", outputPath).Int("factors", cat.Len()).Msg("run started")
	return s.Expand(ctx, cat, risk, riskPath, out, DefaultMaxErrors)
}
