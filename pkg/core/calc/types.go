// Package calc provides the deterministic arithmetic behind an assessment:
// working-capital ratios, EMI amortization, sales targets and the checks that
// compare remote figures against local ones. Nothing in here performs I/O or
// reads the clock.
package calc

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL RATIOS
// =============================================================================

// Ratio is a quotient that may be undefined (zero or negative denominator).
// Undefined ratios encode as JSON null and render as "N/A".
type Ratio struct {
	Value   float64
	Defined bool
}

// Undefined is the sentinel for a ratio with no meaningful denominator.
var Undefined = Ratio{}

func Defined(v float64) Ratio {
	return Ratio{Value: v, Defined: true}
}

// Div returns numerator/denominator, or Undefined when denominator <= 0.
func Div(numerator, denominator float64) Ratio {
	if denominator <= 0 {
		return Undefined
	}
	return Defined(numerator / denominator)
}

// Or returns the ratio value, or fallback when undefined.
func (r Ratio) Or(fallback float64) float64 {
	if !r.Defined {
		return fallback
	}
	return r.Value
}

func (r Ratio) String() string {
	if !r.Defined {
		return "N/A"
	}
	return strconv.FormatFloat(Round2(r.Value), 'f', 2, 64)
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = Undefined
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = Defined(v)
	return nil
}

// =============================================================================
// MONEY ROUNDING
// =============================================================================

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Sum adds amounts in decimal space so long ledgers do not drift.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	f, _ := total.Float64()
	return f
}
