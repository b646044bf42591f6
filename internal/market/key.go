package market

import (
	"errors"
	"fmt"

	"github.com/guttosm/taylorpnl/internal/delimited"
	"github.com/guttosm/taylorpnl/internal/domain/models"
)

// DefaultKeyColumns are the columns that identify a factor in both files.
var DefaultKeyColumns = []string{"Factor", "Tenor"}

// KeyFunc derives the factor key of one row.
type KeyFunc func(rec []string) (models.FactorKey, error)

// NewKeyFunc resolves the key columns against a file header once and returns
// a KeyFunc joining their cells with models.KeySeparator. Market and risk files
// may name the columns differently; the key is the same as long as the
// columns carry the same values in the same order.
func NewKeyFunc(h delimited.Header, columns []string) (KeyFunc, error) {
	if len(columns) == 0 {
		return nil, errors.New("no key columns configured")
	}
	if err := h.Require(columns...); err != nil {
		return nil, fmt.Errorf("key columns: %w", err)
	}
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i], _ = h.Index(c)
	}

	return func(rec []string) (models.FactorKey, error) {
		parts := make([]string, len(idx))
		for i, at := range idx {
			v, err := h.Field(rec, at)
			if err != nil {
				return "", err
			}
			parts[i] = v
		}
		return models.NewFactorKey(parts...), nil
	}, nil
}
