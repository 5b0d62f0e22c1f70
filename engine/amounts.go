/*
amounts.go - Derived amount computation

PURPOSE:
  The single place where per-line derived amounts and list totals are
  computed. Every view (form grid, register, outstanding, status) calls
  into this file, so they cannot disagree.

FORMULAS (per line):
  amount       = qty * price
  baseAmount   = amount * exRate
  taxLocalAmt  = baseAmount * taxPct/100
  taxComAmt1   = amount * taxPct/100
  finalAmount  = baseAmount * (1 + taxPct/100)

ROUNDING:
  Totals accumulate unrounded and are rounded to 3 decimal places only
  for display, so rounding error never compounds across lines.

DISPLAY:
  Negative amounts render in brackets, "(1,234.000)" style without the
  thousands grouping: "(1234.000)". The stored/transmitted value stays a
  signed number; brackets are a rendering concern only.

SEE ALSO:
  - statement.go: Uses totals for report rows
  - lifecycle.go: Recomputes amounts before every persist
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// DisplayPlaces is the number of decimal places used when rendering
// amounts in any report view.
const DisplayPlaces = 3

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// =============================================================================
// PER-LINE AMOUNTS
// =============================================================================

// LineAmounts holds the five derived figures for a line or a total row.
// These are never stored; they are recomputed from inputs on demand.
type LineAmounts struct {
	Amount              decimal.Decimal
	BaseAmount          decimal.Decimal
	TaxLocalAmount      decimal.Decimal
	TaxComponentAmount1 decimal.Decimal
	FinalAmount         decimal.Decimal
}

// effectiveExRate normalizes the exchange rate the way the source views
// do: a missing or non-positive rate means "local currency", i.e. 1.
func effectiveExRate(exRate decimal.Decimal) decimal.Decimal {
	if exRate.Sign() <= 0 {
		return one
	}
	return exRate
}

// ComputeLine returns the derived amounts for one line item. There are no
// error conditions; zero inputs produce zero outputs.
func ComputeLine(item LineItem) LineAmounts {
	qty := decimal.NewFromInt(item.Qty)
	amount := qty.Mul(item.Price)
	base := amount.Mul(effectiveExRate(item.ExRate))
	taxFrac := item.TaxPercent1.Div(hundred)

	return LineAmounts{
		Amount:              amount,
		BaseAmount:          base,
		TaxLocalAmount:      base.Mul(taxFrac),
		TaxComponentAmount1: amount.Mul(taxFrac),
		FinalAmount:         base.Add(base.Mul(taxFrac)),
	}
}

// =============================================================================
// TOTALS
// =============================================================================

// ItemTotals aggregates a line-item list. Accumulation is unrounded;
// call Rounded before rendering.
type ItemTotals struct {
	Qty int64
	LineAmounts
}

// ComputeTotals sums derived amounts across all items.
func ComputeTotals(items []LineItem) ItemTotals {
	var t ItemTotals
	t.Amount = decimal.Zero
	t.BaseAmount = decimal.Zero
	t.TaxLocalAmount = decimal.Zero
	t.TaxComponentAmount1 = decimal.Zero
	t.FinalAmount = decimal.Zero

	for _, item := range items {
		la := ComputeLine(item)
		t.Qty += item.Qty
		t.Amount = t.Amount.Add(la.Amount)
		t.BaseAmount = t.BaseAmount.Add(la.BaseAmount)
		t.TaxLocalAmount = t.TaxLocalAmount.Add(la.TaxLocalAmount)
		t.TaxComponentAmount1 = t.TaxComponentAmount1.Add(la.TaxComponentAmount1)
		t.FinalAmount = t.FinalAmount.Add(la.FinalAmount)
	}
	return t
}

// Rounded returns a copy with every figure rounded to DisplayPlaces.
func (t ItemTotals) Rounded() ItemTotals {
	return ItemTotals{
		Qty: t.Qty,
		LineAmounts: LineAmounts{
			Amount:              t.Amount.Round(DisplayPlaces),
			BaseAmount:          t.BaseAmount.Round(DisplayPlaces),
			TaxLocalAmount:      t.TaxLocalAmount.Round(DisplayPlaces),
			TaxComponentAmount1: t.TaxComponentAmount1.Round(DisplayPlaces),
			FinalAmount:         t.FinalAmount.Round(DisplayPlaces),
		},
	}
}

// =============================================================================
// DISPLAY FORMATTING
// =============================================================================

// FormatAmount renders a value to 3 decimal places with negatives in
// brackets: -12.5 -> "(12.500)". Display contract only; the underlying
// value stays signed.
func FormatAmount(v decimal.Decimal) string {
	rounded := v.Round(DisplayPlaces)
	if rounded.Sign() < 0 {
		return "(" + rounded.Neg().StringFixed(DisplayPlaces) + ")"
	}
	return rounded.StringFixed(DisplayPlaces)
}
