/*
Package generic provides the domain-agnostic building blocks of the engine.

PURPOSE:
  Periods, local-time helpers, money arithmetic, sentinel errors and the
  ordered rule pipeline. Nothing in here knows what a lesson or a teacher is;
  the payroll package supplies those.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal, never float64
  - Percent: base * pct / 100, the only scaling operation rate tables use

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift in pay
  2. Purity: Every helper is a function of its arguments
  3. Determinism: Same inputs, same output, byte for byte

SEE ALSO:
  - period.go: Half-open periods and half-month circles
  - rules.go: First-match-wins rule pipeline
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

var hundred = decimal.NewFromInt(100)

// Percent returns base * pct / 100.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
