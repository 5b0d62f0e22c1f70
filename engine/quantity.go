/*
quantity.go - Line-item quantity reconciliation policy

PURPOSE:
  Validates a proposed quantity edit against the line's reference
  snapshot. The rule depends on the source document's pdo type:

    P, Q ("open" types)   any non-negative integer, increases allowed
    everything else       0 <= qty <= originalQty, increases rejected

  Fractional proposals are truncated toward zero before validation.
  A rejection never mutates the line; the caller keeps the previously
  accepted quantity and learns which line was refused and why.

EDGE CASE:
  originalQty == 0 with a non-open pdo type freezes the line at zero;
  every positive proposal is rejected.

SEE ALSO:
  - errors.go: QuantityViolation
  - lifecycle.go: Applies this policy on draft saves and submits
*/
package engine

import "github.com/shopspring/decimal"

// ValidateQuantity checks a proposed quantity for one line. It returns
// the accepted integer quantity (after truncation toward zero) or a
// *QuantityViolation wrapped in ErrPolicyViolation.
func ValidateQuantity(proposed decimal.Decimal, originalQty int64, pdo PdoType) (int64, error) {
	qty := proposed.Truncate(0).IntPart()

	if qty < 0 {
		return 0, &QuantityViolation{Proposed: qty, OriginalQty: originalQty, PdoType: pdo}
	}
	if pdo.Open() {
		return qty, nil
	}
	if qty > originalQty {
		return 0, &QuantityViolation{Proposed: qty, OriginalQty: originalQty, PdoType: pdo}
	}
	return qty, nil
}

// ValidateItems applies the policy to every line of a document and
// returns all violations. Lines are checked independently: one refused
// line does not invalidate the others.
func ValidateItems(items []LineItem) []*QuantityViolation {
	var violations []*QuantityViolation
	for _, item := range items {
		_, err := ValidateQuantity(decimal.NewFromInt(item.Qty), item.OriginalQty, item.PdoType)
		if err != nil {
			v := err.(*QuantityViolation)
			v.SerialNo = item.SerialNo
			violations = append(violations, v)
		}
	}
	return violations
}
