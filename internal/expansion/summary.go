package expansion

import (
	"errors"
	"time"
)

// ErrErrorBudgetExceeded is reported by Summary.Err for aborted runs.
var ErrErrorBudgetExceeded = errors.New("error budget exceeded")

// ErrNonFiniteValue marks a row whose expanded value overflows float64.
// It is a row error and counts against the error budget.
var ErrNonFiniteValue = errors.New("expanded value is not finite")

// Status is the final state of a run.
type Status string

const (
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusAborted             Status = "aborted"
	// StatusFailed marks a run stopped by a fatal error (header, I/O, cancellation).
	StatusFailed Status = "failed"
)

// Summary describes one streaming pass over a risk file.
type Summary struct {
	Source      string
	RowsRead    int
	RowsWritten int
	RowsSkipped int
	RowErrors   int
	Elapsed     time.Duration
	Status      Status
}

// RowsPerSecond is the read throughput of the run.
func (s Summary) RowsPerSecond() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.RowsRead) / secs
}

// Err returns ErrErrorBudgetExceeded when the run was aborted, nil otherwise.
func (s Summary) Err() error {
	if s.Status == StatusAborted {
		return ErrErrorBudgetExceeded
	}
	return nil
}
