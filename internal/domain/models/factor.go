package models

import "strings"

// KeySeparator joins the key columns of a row into a FactorKey.
const KeySeparator = "/"

// FactorKey identifies a market risk factor across market and risk files.
//
// With the default key columns it renders as "<Factor>/<Tenor>", e.g. "USD-OIS/10Y".
type FactorKey string

// NewFactorKey joins the given key parts with KeySeparator.
func NewFactorKey(parts ...string) FactorKey {
	return FactorKey(strings.Join(parts, KeySeparator))
}

func (k FactorKey) String() string { return string(k) }

// Snapshot holds one day of market levels keyed by risk factor.
//
// A Snapshot is built once per run and treated as read-only afterwards.
type Snapshot map[FactorKey]float64

// Factors holds the Taylor-series market terms derived for one risk factor.
//
// Fields:
//   - FirstOrder: today's level minus yesterday's level.
//   - SecondOrder: FirstOrder squared, halved.
type Factors struct {
	FirstOrder  float64
	SecondOrder float64
}

// NewFactors derives the first and second order terms from two levels.
func NewFactors(today, yesterday float64) Factors {
	change := today - yesterday
	return Factors{
		FirstOrder:  change,
		SecondOrder: change * change / 2,
	}
}
