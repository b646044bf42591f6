package expansion

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// valuePrecision is the number of fractional digits kept in output values.
const valuePrecision = 6

// FormatValue renders v with at most six fractional digits, rounded half away
// from zero, without trailing zeros: 1.5 -> "1.5", 2.0 -> "2",
// 0.123456789 -> "0.123457". Values that round to zero print as "0".
func FormatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return decimal.NewFromFloat(v).Round(valuePrecision).String()
}
