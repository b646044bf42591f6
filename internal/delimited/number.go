package delimited

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueParseError reports a cell that does not hold a finite number.
type ValueParseError struct {
	Column string
	Value  string
	Err    error
}

func (e *ValueParseError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Column, e.Value, e.Err)
}

func (e *ValueParseError) Unwrap() error { return e.Err }

var errNotFinite = errors.New("value is not finite")

// ParseFloat parses the numeric cell of column. Empty, NaN and infinite
// values are rejected.
func ParseFloat(column, cell string) (float64, error) {
	s := strings.TrimSpace(cell)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var ne *strconv.NumError
		if errors.As(err, &ne) {
			err = ne.Err
		}
		return 0, &ValueParseError{Column: column, Value: cell, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ValueParseError{Column: column, Value: cell, Err: errNotFinite}
	}
	return v, nil
}
