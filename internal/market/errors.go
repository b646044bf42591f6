package market

import (
	"errors"
	"fmt"
	"strings"

	"github.com/guttosm/taylorpnl/internal/domain/models"
)

var (
	// ErrMissingYesterdayLevel is matched by *MissingYesterdayLevelError.
	ErrMissingYesterdayLevel = errors.New("missing yesterday level")
	// ErrUnknownFactor is matched by *UnknownFactorError.
	ErrUnknownFactor = errors.New("unknown factor")
)

// maxListedKeys bounds how many keys an error message spells out.
const maxListedKeys = 10

// MissingYesterdayLevelError is returned when factors quoted today have no
// level in yesterday's snapshot. No catalog can be built in that case.
type MissingYesterdayLevelError struct {
	Keys []models.FactorKey
}

func (e *MissingYesterdayLevelError) Error() string {
	names := make([]string, 0, maxListedKeys)
	for i, k := range e.Keys {
		if i == maxListedKeys {
			names = append(names, fmt.Sprintf("... %d more", len(e.Keys)-maxListedKeys))
			break
		}
		names = append(names, string(k))
	}
	return fmt.Sprintf("%s for %d factors: %s", ErrMissingYesterdayLevel, len(e.Keys), strings.Join(names, ", "))
}

func (e *MissingYesterdayLevelError) Is(target error) bool {
	return target == ErrMissingYesterdayLevel
}

// UnknownFactorError is returned by catalog lookups for keys it does not hold.
type UnknownFactorError struct {
	Key   models.FactorKey
	Order string
}

func (e *UnknownFactorError) Error() string {
	return fmt.Sprintf("cannot find %s order factor for %s", e.Order, e.Key)
}

func (e *UnknownFactorError) Is(target error) bool {
	return target == ErrUnknownFactor
}
