package expansion

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guttosm/taylorpnl/internal/delimited"
	"github.com/guttosm/taylorpnl/internal/domain/models"
	"github.com/guttosm/taylorpnl/internal/market"
)

const riskHeader = "Risk Type|Factor|Tenor|Currency|Value\n"

var (
	today     = models.Snapshot{"USD-OIS/10Y": 3.10, "EUR-ESTR/5Y": 2.00, "GBP-SONIA/1Y": 4.25}
	yesterday = models.Snapshot{"USD-OIS/10Y": 3.00, "EUR-ESTR/5Y": 2.50, "GBP-SONIA/1Y": 4.00}
)

func newCatalog(t *testing.T, today, yesterday models.Snapshot) *market.Catalog {
	t.Helper()
	cat, err := market.NewCatalog(today, yesterday)
	require.NoError(t, err)
	return cat
}

// run expands content and returns the summary plus the output rows without the header.
func run(t *testing.T, cat Lookuper, cfg Config, content string) (Summary, [][]string, error) {
	t.Helper()
	r, err := delimited.NewReader(strings.NewReader(content), delimited.PipeDialect)
	require.NoError(t, err)

	var buf bytes.Buffer
	w, err := delimited.NewWriter(&buf, ',')
	require.NoError(t, err)

	sum, runErr := New(cat, cfg).Run(context.Background(), r, w)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	if len(rows) > 0 {
		assert.Equal(t, cfg.OutputHeaders, rows[0])
		rows = rows[1:]
	}
	return sum, rows, runErr
}

func TestRun_DeltaAndGammaValues(t *testing.T) {
	cat := newCatalog(t, today, yesterday)
	content := riskHeader +
		"Delta|USD-OIS|10Y|USD|1000\n" +
		"Gamma|EUR-ESTR|5Y|EUR|200\n" +
		"Delta|GBP-SONIA|1Y|GBP|-3\n" +
		"Gamma|GBP-SONIA|1Y|GBP|7\n"

	sum, rows, err := run(t, cat, DefaultConfig(), content)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, StatusCompleted, sum.Status)
	assert.Equal(t, 4, sum.RowsRead)
	assert.Equal(t, 4, sum.RowsWritten)

	assert.Equal(t, []string{"10Y", "USD", "USD-OIS", "100", "Delta P&L"}, rows[0])
	assert.Equal(t, []string{"5Y", "EUR", "EUR-ESTR", "25", "Gamma P&L"}, rows[1])

	want := []float64{
		1000 * (3.10 - 3.00),
		200 * (2.00 - 2.50) * (2.00 - 2.50) / 2,
		-3 * (4.25 - 4.00),
		7 * (4.25 - 4.00) * (4.25 - 4.00) / 2,
	}
	for i, w := range want {
		got, err := strconv.ParseFloat(rows[i][3], 64)
		require.NoError(t, err)
		assert.InDelta(t, w, got, 1e-6, "row %d", i)
	}
}

func TestRun_UnchangedMarketGivesZero(t *testing.T) {
	cat := newCatalog(t, today, today)
	content := riskHeader +
		"Delta|USD-OIS|10Y|USD|1000\n" +
		"Gamma|EUR-ESTR|5Y|EUR|-200\n" +
		"Delta|GBP-SONIA|1Y|GBP|0.5\n"

	_, rows, err := run(t, cat, DefaultConfig(), content)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, "0", r[3])
	}
}

func TestRun_PreservesOrderAndSkipsOtherRiskTypes(t *testing.T) {
	cat := newCatalog(t, today, yesterday)
	content := riskHeader +
		"Delta|USD-OIS|10Y|USD|1\n" +
		"Vega|USD-OIS|10Y|USD|1\n" +
		"Gamma|EUR-ESTR|5Y|EUR|1\n" +
		"Delta|GBP-SONIA|1Y|GBP|1\n"

	sum, rows, err := run(t, cat, DefaultConfig(), content)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Delta P&L", rows[0][4])
	assert.Equal(t, "Gamma P&L", rows[1][4])
	assert.Equal(t, "Delta P&L", rows[2][4])
	assert.Equal(t, "GBP-SONIA", rows[2][2])
	assert.Equal(t, 1, sum.RowsSkipped)
	assert.Zero(t, sum.RowErrors)
}

func TestRun_UnknownFactorCountsOneError(t *testing.T) {
	cat := newCatalog(t, today, yesterday)
	content := riskHeader +
		"Delta|USD-OIS|10Y|USD|1\n" +
		"Delta|JPY-TONA|2Y|JPY|1\n" +
		"Gamma|USD-OIS|10Y|USD|1\n"

	sum, rows, err := run(t, cat, DefaultConfig(), content)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Delta P&L", rows[0][4])
	assert.Equal(t, "Gamma P&L", rows[1][4])
	assert.Equal(t, 1, sum.RowErrors)
	assert.Equal(t, StatusCompletedWithErrors, sum.Status)
	assert.NoError(t, sum.Err())
}

func TestRun_RowErrorsAreRecoverable(t *testing.T) {
	cat := newCatalog(t, today, yesterday)
	content := riskHeader +
		"Delta|USD-OIS|10Y|USD|abc\n" +
		"Delta|USD-OIS\n" +
		"Gamma|EUR-ESTR|5Y|EUR|NaN\n" +
		"Delta|USD-OIS|10Y|USD|2\n"

	sum, rows, err := run(t, cat, DefaultConfig(), content)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "0.2", rows[0][3])
	assert.Equal(t, 3, sum.RowErrors)
	assert.Equal(t, 4, sum.RowsRead)
}

func TestRun_OverflowingValueIsRowError(t *testing.T) {
	cat := newCatalog(t,
		models.Snapshot{"A/1Y": 1e300, "B/2Y": 2},
		models.Snapshot{"A/1Y": -1e300, "B/2Y": 1})
	content := riskHeader +
		"Gamma|A|1Y|USD|1\n" +
		"Delta|A|1Y|USD|1e10\n" +
		"Delta|B|2Y|USD|3\n"

	sum, rows, err := run(t, cat, DefaultConfig(), content)
	require.NoError(t, err)
	assert.Equal(t, StatusCompletedWithErrors, sum.Status)
	assert.Equal(t, 2, sum.RowErrors)
	assert.Equal(t, [][]string{{"2Y", "USD", "B", "3", "Delta P&L"}}, rows)
}

func TestPlanExpand_NonFiniteValue(t *testing.T) {
	cat := newCatalog(t, models.Snapshot{"A/1Y": 1e300}, models.Snapshot{"A/1Y": -1e300})
	h := delimited.NewHeader([]string{"Risk Type", "Factor", "Tenor", "Currency", "Value"})
	p, err := New(cat, DefaultConfig()).newPlan(h)
	require.NoError(t, err)
	_, err = p.expand([]string{"Gamma", "A", "1Y", "USD", "1"})
	assert.ErrorIs(t, err, ErrNonFiniteValue)
}

func TestRun_ErrorBudget(t *testing.T) {
	cat := newCatalog(t, today, yesterday)
	good := "Delta|USD-OIS|10Y|USD|1\n"
	bad := "Delta|JPY-TONA|2Y|JPY|1\n"

	cases := []struct {
		name        string
		maxErrors   int
		rows        []string
		wantWritten int
		wantErrors  int
		wantStatus  Status
	}{
		{
			name:        "budget of two halts on fourth error",
			maxErrors:   2,
			rows:        []string{good, bad, bad, good, bad, good, bad, good, good},
			wantWritten: 3,
			wantErrors:  4,
			wantStatus:  StatusAborted,
		},
		{
			name:        "budget of zero halts on second error",
			maxErrors:   0,
			rows:        []string{bad, good, bad, good},
			wantWritten: 1,
			wantErrors:  2,
			wantStatus:  StatusAborted,
		},
		{
			name:        "errors within budget complete",
			maxErrors:   2,
			rows:        []string{bad, good, bad, bad, good},
			wantWritten: 2,
			wantErrors:  3,
			wantStatus:  StatusCompletedWithErrors,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MaxErrors = tc.maxErrors

			sum, rows, err := run(t, cat, cfg, riskHeader+strings.Join(tc.rows, ""))
			require.NoError(t, err)
			assert.Len(t, rows, tc.wantWritten)
			assert.Equal(t, tc.wantWritten, sum.RowsWritten)
			assert.Equal(t, tc.wantErrors, sum.RowErrors)
			assert.Equal(t, tc.wantStatus, sum.Status)
			if tc.wantStatus == StatusAborted {
				assert.ErrorIs(t, sum.Err(), ErrErrorBudgetExceeded)
			}
		})
	}
}

func TestRun_HaltsAfterTheExhaustingRow(t *testing.T) {
	cat := newCatalog(t, today, yesterday)
	cfg := DefaultConfig()
	cfg.MaxErrors = 1
	content := riskHeader +
		"Delta|USD-OIS|10Y|USD|1\n" +
		"Delta|X|1Y|USD|1\n" +
		"Gamma|EUR-ESTR|5Y|EUR|1\n" +
		"Delta|X|2Y|USD|1\n" +
		"Delta|X|3Y|USD|1\n" +
		"Delta|GBP-SONIA|1Y|GBP|1\n"

	sum, rows, err := run(t, cat, cfg, content)
	require.NoError(t, err)
	assert.Equal(t, StatusAborted, sum.Status)
	assert.Equal(t, 5, sum.RowsRead)
	require.Len(t, rows, 2)
	assert.Equal(t, "USD-OIS", rows[0][2])
	assert.Equal(t, "EUR-ESTR", rows[1][2])
}

func TestRun_CustomColumns(t *testing.T) {
	cat := newCatalog(t, today, yesterday)
	cfg := Config{
		TypeColumn:          "Type",
		ValueColumn:         "Sensitivity",
		KeyColumns:          []string{"Curve", "Bucket"},
		OutputHeaders:       []string{"Bucket", "Curve", "Book", "PnL", "Measure"},
		OutputValueColumn:   "PnL",
		OutputMeasureColumn: "Measure",
		MaxErrors:           5,
	}
	content := "Book|Type|Curve|Bucket|Sensitivity\n" +
		"RATES-1|Delta|USD-OIS|10Y|-50\n"

	_, rows, err := run(t, cat, cfg, content)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"10Y", "USD-OIS", "RATES-1", "-5", "Delta P&L"}, rows[0])
}

func TestRun_MissingColumnIsFatal(t *testing.T) {
	cat := newCatalog(t, today, yesterday)
	content := "Risk Type|Factor|Tenor|Value\nDelta|USD-OIS|10Y|1\n"

	sum, rows, err := run(t, cat, DefaultConfig(), content)
	var mc *delimited.MissingColumnError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, []string{"Currency"}, mc.Columns)
	assert.Equal(t, StatusFailed, sum.Status)
	assert.Empty(t, rows)
}

type recordingWriter struct {
	rows     [][]string
	flushes  int
	failOn   int
	writeErr error
}

func (w *recordingWriter) Write(row []string) error {
	if w.failOn > 0 && len(w.rows)+1 == w.failOn {
		return w.writeErr
	}
	w.rows = append(w.rows, row)
	return nil
}

func (w *recordingWriter) Flush() error {
	w.flushes++
	return nil
}

func newReader(t *testing.T, content string) *delimited.Reader {
	t.Helper()
	r, err := delimited.NewReader(strings.NewReader(content), delimited.PipeDialect)
	require.NoError(t, err)
	return r
}

func TestRun_FlushesOnEveryExit(t *testing.T) {
	cat := newCatalog(t, today, yesterday)
	bad := "Delta|X|1Y|USD|1\n"

	t.Run("aborted", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxErrors = 0
		w := &recordingWriter{}
		sum, err := New(cat, cfg).Run(context.Background(), newReader(t, riskHeader+bad+bad+bad), w)
		require.NoError(t, err)
		assert.Equal(t, StatusAborted, sum.Status)
		assert.Equal(t, 1, w.flushes)
	})

	t.Run("write failure", func(t *testing.T) {
		boom := errors.New("disk full")
		w := &recordingWriter{failOn: 2, writeErr: boom}
		content := riskHeader + "Delta|USD-OIS|10Y|USD|1\n"
		sum, err := New(cat, DefaultConfig()).Run(context.Background(), newReader(t, content), w)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, StatusFailed, sum.Status)
		assert.Equal(t, 1, w.flushes)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		w := &recordingWriter{}
		content := riskHeader + strings.Repeat("Delta|USD-OIS|10Y|USD|1\n", 100)
		_, err := New(cat, DefaultConfig()).Run(ctx, newReader(t, content), w)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, w.flushes)
		assert.Len(t, w.rows, 1, "only the header is written")
	})
}

func TestSummary_RowsPerSecond(t *testing.T) {
	assert.Zero(t, Summary{RowsRead: 10}.RowsPerSecond())
	s := Summary{RowsRead: 10, Elapsed: 2_000_000_000}
	assert.InDelta(t, 5.0, s.RowsPerSecond(), 1e-9)
}
