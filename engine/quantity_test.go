package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// QUANTITY POLICY - closed pdo types
// =============================================================================

func TestValidateQuantity_ClosedTypeRejectsIncrease(t *testing.T) {
	// GIVEN a line from a service-type reference document, original qty 10
	// WHEN proposing qty 12
	_, err := ValidateQuantity(decimal.NewFromInt(12), 10, PdoType("S"))

	// THEN the edit is rejected and the message references the original value
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPolicyViolation)
	assert.Contains(t, err.Error(), "original value (10)")

	var v *QuantityViolation
	require.ErrorAs(t, err, &v)
	assert.EqualValues(t, 10, v.OriginalQty)
}

func TestValidateQuantity_ClosedTypeAcceptsWithinOriginal(t *testing.T) {
	for _, proposed := range []int64{0, 5, 10} {
		qty, err := ValidateQuantity(decimal.NewFromInt(proposed), 10, PdoType("S"))
		require.NoError(t, err, "qty %d should be accepted", proposed)
		assert.Equal(t, proposed, qty)
	}
}

func TestValidateQuantity_ZeroOriginalFreezesLine(t *testing.T) {
	// GIVEN a closed-type line referenced with original qty 0
	// THEN every positive proposal is rejected
	_, err := ValidateQuantity(decimal.NewFromInt(1), 0, PdoType("S"))
	assert.ErrorIs(t, err, ErrPolicyViolation)

	// AND zero itself stays legal
	qty, err := ValidateQuantity(decimal.Zero, 0, PdoType("S"))
	require.NoError(t, err)
	assert.EqualValues(t, 0, qty)
}

// =============================================================================
// QUANTITY POLICY - open pdo types
// =============================================================================

func TestValidateQuantity_OpenTypeAllowsIncrease(t *testing.T) {
	// GIVEN an open-type line ("P"), original qty 10
	// WHEN proposing qty 50
	qty, err := ValidateQuantity(decimal.NewFromInt(50), 10, PdoCopy)

	// THEN the increase is accepted
	require.NoError(t, err)
	assert.EqualValues(t, 50, qty)

	// AND the other open type behaves the same
	qty, err = ValidateQuantity(decimal.NewFromInt(999), 0, PdoOverride)
	require.NoError(t, err)
	assert.EqualValues(t, 999, qty)
}

func TestValidateQuantity_NegativeAlwaysRejected(t *testing.T) {
	_, err := ValidateQuantity(decimal.NewFromInt(-1), 10, PdoCopy)
	assert.ErrorIs(t, err, ErrPolicyViolation)

	_, err = ValidateQuantity(decimal.NewFromInt(-1), 10, PdoType("S"))
	assert.ErrorIs(t, err, ErrPolicyViolation)
}

func TestValidateQuantity_FractionTruncatesTowardZero(t *testing.T) {
	// GIVEN a fractional proposal on an open line
	qty, err := ValidateQuantity(decimal.NewFromFloat(7.9), 5, PdoCopy)
	require.NoError(t, err)
	assert.EqualValues(t, 7, qty)

	// AND truncation happens before the bound check on a closed line:
	// 10.9 truncates to 10, which is within the original
	qty, err = ValidateQuantity(decimal.NewFromFloat(10.9), 10, PdoType("S"))
	require.NoError(t, err)
	assert.EqualValues(t, 10, qty)
}

// =============================================================================
// DOCUMENT-LEVEL VALIDATION
// =============================================================================

func TestValidateItems_ReportsEveryRefusedLine(t *testing.T) {
	// GIVEN a document where lines 2 and 4 violate the policy
	items := []LineItem{
		{SerialNo: 1, OriginalQty: 10, PdoType: "S", Qty: 10},
		{SerialNo: 2, OriginalQty: 10, PdoType: "S", Qty: 11},
		{SerialNo: 3, OriginalQty: 10, PdoType: PdoCopy, Qty: 99},
		{SerialNo: 4, OriginalQty: 0, PdoType: "S", Qty: 1},
	}

	// WHEN validating
	violations := ValidateItems(items)

	// THEN both refused lines are reported with their serial numbers
	require.Len(t, violations, 2)
	assert.Equal(t, 2, violations[0].SerialNo)
	assert.Equal(t, 4, violations[1].SerialNo)
}

func TestValidateItems_CleanDocument(t *testing.T) {
	items := []LineItem{
		{SerialNo: 1, OriginalQty: 10, PdoType: "S", Qty: 5},
		{SerialNo: 2, OriginalQty: 3, PdoType: PdoOverride, Qty: 30},
	}
	assert.Empty(t, ValidateItems(items))
}
