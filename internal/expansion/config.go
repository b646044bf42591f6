package expansion

import (
	"github.com/guttosm/taylorpnl/internal/market"
)

// DefaultOutputHeaders is the column order of the P&L file.
var DefaultOutputHeaders = []string{"Tenor", "Currency", "Factor", "Value", "Measure"}

// Config selects the risk columns the engine reads and the layout it writes.
//
// Fields:
//   - Source: label of the risk stream, used in log lines.
//   - TypeColumn: column holding "Delta" / "Gamma".
//   - ValueColumn: column holding the sensitivity.
//   - KeyColumns: columns forming the factor key, in key order.
//   - OutputHeaders: output columns, in order.
//   - OutputValueColumn: output column receiving the expanded P&L.
//   - OutputMeasureColumn: output column receiving "Delta P&L" / "Gamma P&L".
//   - MaxErrors: row errors tolerated before the run is aborted.
//
// Any other output column is copied from the risk column of the same name.
type Config struct {
	Source              string
	TypeColumn          string
	ValueColumn         string
	KeyColumns          []string
	OutputHeaders       []string
	OutputValueColumn   string
	OutputMeasureColumn string
	MaxErrors           int
}

// DefaultConfig matches the standard risk and output file layouts.
func DefaultConfig() Config {
	return Config{
		TypeColumn:          "Risk Type",
		ValueColumn:         "Value",
		KeyColumns:          append([]string(nil), market.DefaultKeyColumns...),
		OutputHeaders:       append([]string(nil), DefaultOutputHeaders...),
		OutputValueColumn:   "Value",
		OutputMeasureColumn: "Measure",
		MaxErrors:           50,
	}
}
