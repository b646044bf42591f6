package market

import (
	"slices"

	"github.com/guttosm/taylorpnl/internal/domain/models"
)

// Catalog holds the precomputed first and second order terms of every
// factor quoted today. It is immutable once built and safe for concurrent reads.
type Catalog struct {
	factors map[models.FactorKey]models.Factors
}

// NewCatalog derives the Taylor terms from two market snapshots.
//
// Behavior:
//   - Every key of today gets FirstOrder = today - yesterday and
//     SecondOrder = FirstOrder² / 2.
//   - Keys quoted only yesterday are ignored.
//   - If any key of today has no yesterday level, it returns a
//     *MissingYesterdayLevelError naming all of them and no catalog.
func NewCatalog(today, yesterday models.Snapshot) (*Catalog, error) {
	factors := make(map[models.FactorKey]models.Factors, len(today))
	var missing []models.FactorKey

	for key, level := range today {
		prev, ok := yesterday[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		factors[key] = models.NewFactors(level, prev)
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, &MissingYesterdayLevelError{Keys: missing}
	}
	return &Catalog{factors: factors}, nil
}

// Lookup returns both terms of a factor and whether the catalog holds it.
func (c *Catalog) Lookup(key models.FactorKey) (models.Factors, bool) {
	f, ok := c.factors[key]
	return f, ok
}

// FirstOrder returns the one-day change of a factor.
func (c *Catalog) FirstOrder(key models.FactorKey) (float64, error) {
	f, ok := c.factors[key]
	if !ok {
		return 0, &UnknownFactorError{Key: key, Order: "first"}
	}
	return f.FirstOrder, nil
}

// SecondOrder returns half the squared one-day change of a factor.
func (c *Catalog) SecondOrder(key models.FactorKey) (float64, error) {
	f, ok := c.factors[key]
	if !ok {
		return 0, &UnknownFactorError{Key: key, Order: "second"}
	}
	return f.SecondOrder, nil
}

// Len is the number of factors in the catalog.
func (c *Catalog) Len() int { return len(c.factors) }

// Keys returns the catalog keys in sorted order.
func (c *Catalog) Keys() []models.FactorKey {
	keys := make([]models.FactorKey, 0, len(c.factors))
	for k := range c.factors {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
