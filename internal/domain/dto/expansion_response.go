package dto

import "github.com/guttosm/taylorpnl/internal/expansion"

// Trailer names carrying the run summary of a streamed expansion.
const (
	TrailerStatus      = "X-Run-Status"
	TrailerRowsRead    = "X-Rows-Read"
	TrailerRowsWritten = "X-Rows-Written"
	TrailerRowErrors   = "X-Row-Errors"
)

// SummaryTrailers lists every trailer announced before the body is streamed.
var SummaryTrailers = []string{TrailerStatus, TrailerRowsRead, TrailerRowsWritten, TrailerRowErrors}

// RunSummary is the JSON view of an expansion summary.
type RunSummary struct {
	Source      string  `json:"source"`
	Status      string  `json:"status" example:"completed_with_errors"`
	RowsRead    int     `json:"rows_read"`
	RowsWritten int     `json:"rows_written"`
	RowsSkipped int     `json:"rows_skipped"`
	RowErrors   int     `json:"row_errors"`
	ElapsedMS   int64   `json:"elapsed_ms"`
	RowsPerSec  float64 `json:"rows_per_sec"`
}

func NewRunSummary(s expansion.Summary) RunSummary {
	return RunSummary{
		Source:      s.Source,
		Status:      string(s.Status),
		RowsRead:    s.RowsRead,
		RowsWritten: s.RowsWritten,
		RowsSkipped: s.RowsSkipped,
		RowErrors:   s.RowErrors,
		ElapsedMS:   s.Elapsed.Milliseconds(),
		RowsPerSec:  s.RowsPerSecond(),
	}
}
