package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guttosm/taylorpnl/internal/delimited"
	"github.com/guttosm/taylorpnl/internal/domain/dto"
	"github.com/guttosm/taylorpnl/internal/domain/models"
	"github.com/guttosm/taylorpnl/internal/expansion"
	"github.com/guttosm/taylorpnl/internal/market"
	"github.com/guttosm/taylorpnl/internal/service"
	"github.com/guttosm/taylorpnl/internal/storage"
)

const (
	todayCSV     = "Factor|Tenor|Value\nUSD-OIS|10Y|3.10\nEUR-ESTR|5Y|2.00\n"
	yesterdayCSV = "Factor|Tenor|Value\nUSD-OIS|10Y|3.00\nEUR-ESTR|5Y|2.50\n"
	riskCSV      = "Risk Type|Factor|Tenor|Currency|Value\n" +
		"Delta|USD-OIS|10Y|USD|1000\n" +
		"Delta|JPY-TONA|2Y|JPY|1\n" +
		"Gamma|EUR-ESTR|5Y|EUR|200\n"
)

type stubDated struct {
	today, yesterday models.Snapshot
	err              error
}

type stubLevels map[string]models.Snapshot

func (s stubLevels) LoadSnapshot(_ context.Context, asOf time.Time) (models.Snapshot, error) {
	return s[asOf.Format(time.DateOnly)], nil
}

func (s *stubDated) Sources(_ context.Context, today, yesterday time.Time) (market.SnapshotSource, market.SnapshotSource, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	if yesterday.IsZero() {
		yesterday = today.AddDate(0, 0, -1)
	}
	levels := stubLevels{today.Format(time.DateOnly): s.today, yesterday.Format(time.DateOnly): s.yesterday}
	return market.RepositorySource{Levels: levels, AsOf: today}, market.RepositorySource{Levels: levels, AsOf: yesterday}, nil
}

func newTestHandler(dated DatedSources, maxUpload int64) *Handler {
	settings := service.Settings{
		Market:          market.DefaultSnapshotOptions(),
		RiskDialect:     delimited.PipeDialect,
		Engine:          expansion.DefaultConfig(),
		OutputDelimiter: ',',
	}
	opts := HandlerOptions{Market: settings.Market, Dated: dated, MaxUploadBytes: maxUpload}
	return NewHandler(service.NewExpansionService(settings), opts)
}

func setupRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.POST("/expansions", h.CreateExpansion)
	return r
}

// multipartBody writes each part as a file field; empty content omits the part.
func multipartBody(t *testing.T, parts map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range []string{PartToday, PartYesterday, PartRisk} {
		content, ok := parts[name]
		if !ok {
			continue
		}
		fw, err := mw.CreateFormFile(name, name+".csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func post(t *testing.T, r http.Handler, query string, parts map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, parts)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/expansions"+query, body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var allParts = map[string]string{PartToday: todayCSV, PartYesterday: yesterdayCSV, PartRisk: riskCSV}

func TestCreateExpansion_StreamsCSVWithTrailers(t *testing.T) {
	r := setupRouter(newTestHandler(nil, 0))
	w := post(t, r, "", allParts)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t,
		"Tenor,Currency,Factor,Value,Measure\n"+
			"10Y,USD,USD-OIS,100,Delta P&L\n"+
			"5Y,EUR,EUR-ESTR,25,Gamma P&L\n",
		w.Body.String())

	trailer := w.Result().Trailer
	assert.Equal(t, "completed_with_errors", trailer.Get(dto.TrailerStatus))
	assert.Equal(t, "3", trailer.Get(dto.TrailerRowsRead))
	assert.Equal(t, "2", trailer.Get(dto.TrailerRowsWritten))
	assert.Equal(t, "1", trailer.Get(dto.TrailerRowErrors))
}

func TestCreateExpansion_Errors(t *testing.T) {
	cases := []struct {
		name    string
		query   string
		parts   map[string]string
		status  int
		message string
	}{
		{
			name:    "missing risk",
			parts:   map[string]string{PartToday: todayCSV, PartYesterday: yesterdayCSV},
			status:  http.StatusBadRequest,
			message: "missing or unreadable multipart file",
		},
		{
			name:    "missing yesterday",
			parts:   map[string]string{PartToday: todayCSV, PartRisk: riskCSV},
			status:  http.StatusBadRequest,
			message: "missing or unreadable multipart file",
		},
		{
			name:    "invalid max_errors",
			query:   "?max_errors=-3",
			parts:   allParts,
			status:  http.StatusBadRequest,
			message: "invalid query parameters",
		},
		{
			name:    "invalid dates",
			query:   "?yesterday_date=2025/09/19",
			parts:   allParts,
			status:  http.StatusBadRequest,
			message: "invalid query parameters",
		},
		{
			name:    "missing yesterday level",
			parts:   map[string]string{PartToday: todayCSV, PartYesterday: "Factor|Tenor|Value\nUSD-OIS|10Y|3.00\n", PartRisk: riskCSV},
			status:  http.StatusUnprocessableEntity,
			message: "catalog construction failed",
		},
		{
			name:    "risk header missing column",
			parts:   map[string]string{PartToday: todayCSV, PartYesterday: yesterdayCSV, PartRisk: "Risk Type|Factor|Tenor|Value\nDelta|USD-OIS|10Y|1\n"},
			status:  http.StatusUnprocessableEntity,
			message: "expansion failed",
		},
		{
			name:    "dated market not configured",
			query:   "?today_date=2025-09-22",
			parts:   map[string]string{PartRisk: riskCSV},
			status:  http.StatusBadRequest,
			message: "today_date is not supported",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupRouter(newTestHandler(nil, 0))
			w := post(t, r, tc.query, tc.parts)

			require.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Empty(t, w.Header().Get("Trailer"))
			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.message, resp.Message)
			assert.NotEmpty(t, resp.ErrorDetails)
		})
	}
}

func TestCreateExpansion_AbortReportedInTrailer(t *testing.T) {
	r := setupRouter(newTestHandler(nil, 0))
	risk := "Risk Type|Factor|Tenor|Currency|Value\n" +
		"Delta|USD-OIS|10Y|USD|1\n" +
		strings.Repeat("Delta|X|1Y|USD|1\n", 3) +
		"Delta|USD-OIS|10Y|USD|1\n"
	w := post(t, r, "?max_errors=1", map[string]string{PartToday: todayCSV, PartYesterday: yesterdayCSV, PartRisk: risk})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Tenor,Currency,Factor,Value,Measure\n10Y,USD,USD-OIS,0.1,Delta P&L\n", w.Body.String())
	assert.Equal(t, "aborted", w.Result().Trailer.Get(dto.TrailerStatus))
	assert.Equal(t, "3", w.Result().Trailer.Get(dto.TrailerRowErrors))
}

func TestCreateExpansion_DryRun(t *testing.T) {
	r := setupRouter(newTestHandler(nil, 0))
	w := post(t, r, "?dry_run=true", allParts)

	require.Equal(t, http.StatusOK, w.Code)
	var sum dto.RunSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, "completed_with_errors", sum.Status)
	assert.Equal(t, "risk:risk.csv", sum.Source)
	assert.Equal(t, 3, sum.RowsRead)
	assert.Equal(t, 2, sum.RowsWritten)
	assert.Equal(t, 1, sum.RowErrors)
}

func TestCreateExpansion_DatedMarket(t *testing.T) {
	t.Run("levels found", func(t *testing.T) {
		dated := &stubDated{
			today:     models.Snapshot{"USD-OIS/10Y": 3.10, "EUR-ESTR/5Y": 2.00, "JPY-TONA/2Y": 0.5},
			yesterday: models.Snapshot{"USD-OIS/10Y": 3.00, "EUR-ESTR/5Y": 2.50, "JPY-TONA/2Y": 0.5},
		}
		r := setupRouter(newTestHandler(dated, 0))
		w := post(t, r, "?today_date=2025-09-22", map[string]string{PartRisk: riskCSV})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "2Y,JPY,JPY-TONA,0,Delta P&L\n")
		assert.Equal(t, "completed", w.Result().Trailer.Get(dto.TrailerStatus))
	})

	t.Run("levels missing", func(t *testing.T) {
		dated := &stubDated{err: fmt.Errorf("%w for 2025-09-19", service.ErrSnapshotNotFound)}
		r := setupRouter(newTestHandler(dated, 0))
		w := post(t, r, "?today_date=2025-09-22", map[string]string{PartRisk: riskCSV})

		require.Equal(t, http.StatusNotFound, w.Code)
		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "market dates unavailable", resp.Message)
	})

	t.Run("storage unreachable", func(t *testing.T) {
		dated := &stubDated{err: fmt.Errorf("%w: query market_levels: connection refused", storage.ErrUnavailable)}
		r := setupRouter(newTestHandler(dated, 0))
		w := post(t, r, "?today_date=2025-09-22", map[string]string{PartRisk: riskCSV})

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestCreateExpansion_UploadTooLarge(t *testing.T) {
	r := setupRouter(newTestHandler(nil, 1024))
	big := "Risk Type|Factor|Tenor|Currency|Value\n" + strings.Repeat("Delta|USD-OIS|10Y|USD|1\n", 400)
	w := post(t, r, "", map[string]string{PartToday: todayCSV, PartYesterday: yesterdayCSV, PartRisk: big})

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("run: %w", context.Canceled), http.StatusServiceUnavailable},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{service.ErrSnapshotNotFound, http.StatusNotFound},
		{fmt.Errorf("today market_levels@2025-09-22: %w", storage.ErrUnavailable), http.StatusServiceUnavailable},
		{market.ErrMissingYesterdayLevel, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), "statusFor(%v)", tc.err)
	}
}
