package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/taylorpnl/internal/domain/dto"
	"github.com/guttosm/taylorpnl/internal/logger"
	"github.com/guttosm/taylorpnl/internal/market"
	"github.com/guttosm/taylorpnl/internal/middleware"
	"github.com/guttosm/taylorpnl/internal/service"
	"github.com/guttosm/taylorpnl/internal/storage"
)

// Multipart part names of an expansion request.
const (
	PartToday     = "today"
	PartYesterday = "yesterday"
	PartRisk      = "risk"
)

// DatedSources resolves market snapshots recorded for business dates.
// service.DatedMarket implements it.
type DatedSources interface {
	Sources(ctx context.Context, today, yesterday time.Time) (market.SnapshotSource, market.SnapshotSource, error)
}

// HandlerOptions configures a Handler.
//
// Fields:
//   - Market: layout of uploaded market files.
//   - Dated: resolver for today_date/yesterday_date requests; nil disables them.
//   - MaxUploadBytes: maximum size of a request body.
type HandlerOptions struct {
	Market         market.SnapshotOptions
	Dated          DatedSources
	MaxUploadBytes int64
}

// Handler provides the HTTP handlers of the expansion endpoints.
//
// Responsibilities:
//   - Validate the multipart parts and query parameters
//   - Build the factor catalog before any byte of the body is written
//   - Stream the P&L rows and report the run summary in trailers
type Handler struct {
	svc  service.ExpansionService
	opts HandlerOptions
}

// NewHandler constructs a new Handler instance.
func NewHandler(svc service.ExpansionService, opts HandlerOptions) *Handler {
	return &Handler{svc: svc, opts: opts}
}

type expansionRequest struct {
	maxErrors int
	dryRun    bool
	todayDate time.Time
	yestDate  time.Time
}

// CreateExpansion handles POST /api/v1/expansions requests.
//
// Responses:
//   - 200 OK: text/csv body; run status in the X-Run-Status, X-Rows-Read,
//     X-Rows-Written and X-Row-Errors trailers. With dry_run=true the body
//     is a JSON RunSummary instead.
//   - 400 Bad Request: missing parts or invalid query parameters.
//   - 413 Request Entity Too Large: upload exceeds the configured limit.
//   - 422 Unprocessable Entity: the catalog or the risk header is invalid.
//   - 503 Service Unavailable: market levels storage could not be read.
//
// CreateExpansion godoc
// @Summary      Expand risk sensitivities into P&L
// @Description  Streams one Delta or Gamma P&L row per risk row, using market levels from uploaded files or from Postgres dates
// @Tags         expansions
// @Accept       multipart/form-data
// @Produce      text/csv
// @Produce      json
// @Param        risk            formData  file     true   "Risk-sensitivity file"
// @Param        today           formData  file     false  "Today's market file (required without today_date)"
// @Param        yesterday       formData  file     false  "Yesterday's market file (required without today_date)"
// @Param        max_errors      query     int      false  "Row errors tolerated before the run is aborted" example(50)
// @Param        dry_run         query     bool     false  "Discard the rows and return the run summary"
// @Param        today_date      query     string   false  "Read market levels for this date (YYYY-MM-DD)" example(2025-09-22)
// @Param        yesterday_date  query     string   false  "Yesterday's date; defaults to the previous business day" example(2025-09-19)
// @Success      200  {string}  string           "P&L rows (dto.RunSummary JSON when dry_run=true)"
// @Failure      400  {object}  dto.ErrorResponse  "Bad Request"
// @Failure      413  {object}  dto.ErrorResponse  "Upload too large"
// @Failure      404  {object}  dto.ErrorResponse  "No market levels for the requested date"
// @Failure      422  {object}  dto.ErrorResponse  "Invalid market or risk input"
// @Failure      503  {object}  dto.ErrorResponse  "Market levels storage unavailable"
// @Router       /api/v1/expansions [post]
func (h *Handler) CreateExpansion(c *gin.Context) {
	if h.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)
	}

	// ─── Validate query params ────────────────────────────────
	req, err := parseExpansionRequest(c)
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	// ─── Open the risk part ───────────────────────────────────
	risk, riskName, err := openPart(c, PartRisk)
	if err != nil {
		abortPartError(c, err)
		return
	}
	defer func() { _ = risk.Close() }()

	// ─── Build the catalog ────────────────────────────────────
	today, yesterday, release, err := h.marketSources(c, req)
	if err != nil {
		return
	}
	defer release()

	ctx := c.Request.Context()
	cat, err := h.svc.BuildCatalog(ctx, today, yesterday)
	if err != nil {
		middleware.AbortWithError(c, statusFor(err), "catalog construction failed", err)
		return
	}

	// ─── Run ──────────────────────────────────────────────────
	if req.dryRun {
		sum, err := h.svc.Expand(ctx, cat, risk, riskName, io.Discard, req.maxErrors)
		if err != nil {
			middleware.AbortWithError(c, statusFor(err), "expansion failed", err)
			return
		}
		c.JSON(http.StatusOK, dto.NewRunSummary(sum))
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="pnl.csv"`)
	c.Header("Trailer", strings.Join(dto.SummaryTrailers, ", "))

	sum, err := h.svc.Expand(ctx, cat, risk, riskName, c.Writer, req.maxErrors)
	if err != nil && !c.Writer.Written() {
		for _, k := range []string{"Content-Type", "Content-Disposition", "Trailer"} {
			c.Writer.Header().Del(k)
		}
		middleware.AbortWithError(c, statusFor(err), "expansion failed", err)
		return
	}
	if err != nil {
		_ = c.Error(err)
		log := logger.Component("api")
		log.Error().
			Str("request_id", middleware.GetRequestID(c)).
			Err(err).
			Msg("expansion failed after streaming started")
	}

	th := c.Writer.Header()
	th.Set(dto.TrailerStatus, string(sum.Status))
	th.Set(dto.TrailerRowsRead, strconv.Itoa(sum.RowsRead))
	th.Set(dto.TrailerRowsWritten, strconv.Itoa(sum.RowsWritten))
	th.Set(dto.TrailerRowErrors, strconv.Itoa(sum.RowErrors))
}

func parseExpansionRequest(c *gin.Context) (expansionRequest, error) {
	req := expansionRequest{maxErrors: service.DefaultMaxErrors}

	var problems []string
	if s := c.Query("max_errors"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			problems = append(problems, "max_errors must be a non-negative integer")
		} else {
			req.maxErrors = n
		}
	}
	if s := c.Query("dry_run"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			problems = append(problems, "dry_run must be a boolean")
		}
		req.dryRun = b
	}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"today_date", &req.todayDate}, {"yesterday_date", &req.yestDate}} {
		if s := c.Query(p.name); s != "" {
			d, err := time.Parse(time.DateOnly, s)
			if err != nil {
				problems = append(problems, p.name+" must be YYYY-MM-DD")
				continue
			}
			*p.dst = d
		}
	}
	if req.todayDate.IsZero() && !req.yestDate.IsZero() {
		problems = append(problems, "yesterday_date requires today_date")
	}

	if len(problems) > 0 {
		return req, errors.New(strings.Join(problems, "; "))
	}
	return req, nil
}

// marketSources picks uploaded files or dated levels. On error the response
// is already written.
func (h *Handler) marketSources(c *gin.Context, req expansionRequest) (today, yesterday market.SnapshotSource, release func(), err error) {
	release = func() {}

	if !req.todayDate.IsZero() {
		if h.opts.Dated == nil {
			err = errors.New("postgres market source is not configured")
			middleware.AbortWithError(c, http.StatusBadRequest, "today_date is not supported", err)
			return nil, nil, release, err
		}
		today, yesterday, err = h.opts.Dated.Sources(c.Request.Context(), req.todayDate, req.yestDate)
		if err != nil {
			middleware.AbortWithError(c, statusFor(err), "market dates unavailable", err)
			return nil, nil, release, err
		}
		return today, yesterday, release, nil
	}

	t, tName, err := openPart(c, PartToday)
	if err != nil {
		abortPartError(c, err)
		return nil, nil, release, err
	}
	y, yName, err := openPart(c, PartYesterday)
	if err != nil {
		_ = t.Close()
		abortPartError(c, err)
		return nil, nil, release, err
	}
	release = func() {
		_ = t.Close()
		_ = y.Close()
	}
	return market.ReaderSource{Label: tName, Reader: t, Options: h.opts.Market},
		market.ReaderSource{Label: yName, Reader: y, Options: h.opts.Market},
		release, nil
}

type partError struct {
	part string
	err  error
}

func (e *partError) Error() string { return fmt.Sprintf("multipart file %q: %v", e.part, e.err) }
func (e *partError) Unwrap() error { return e.err }

func openPart(c *gin.Context, name string) (multipart.File, string, error) {
	fh, err := c.FormFile(name)
	if err != nil {
		return nil, "", &partError{part: name, err: err}
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", &partError{part: name, err: err}
	}
	return f, name + ":" + fh.Filename, nil
}

func abortPartError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		middleware.AbortWithError(c, http.StatusRequestEntityTooLarge, "upload too large", err)
		return
	}
	middleware.AbortWithError(c, http.StatusBadRequest, "missing or unreadable multipart file", err)
}

// statusFor maps run and catalog errors to an HTTP status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}
