package gate

import (
	"github.com/ksred/dca-vault-api/internal/types"
	"github.com/shopspring/decimal"
)

// Skip explains why an execution was declined. A nil *Skip means proceed.
// Exactly one field is set.
type Skip struct {
	PriceThresholdExceeded    *decimal.Decimal
	SlippageToleranceExceeded bool
}

// ExpectedReceiveAmount is the amount a swap of swapAmount would return at the
// quoted price, before any fees
func ExpectedReceiveAmount(swapAmount int64, quotedPrice decimal.Decimal) int64 {
	return decimal.NewFromInt(swapAmount).Div(quotedPrice).Floor().IntPart()
}

// Check evaluates the vault's execution conditions against a quoted price and
// the pool's resting reference price. Both checks run before any state
// mutation; a skip still consumes one scheduling cycle.
func Check(vault *types.Vault, quotedPrice, referencePrice decimal.Decimal) *Skip {
	if vault.MinimumReceiveAmount != nil {
		expected := ExpectedReceiveAmount(vault.SwapAmount, quotedPrice)
		if expected < *vault.MinimumReceiveAmount {
			price := quotedPrice
			return &Skip{PriceThresholdExceeded: &price}
		}
	}

	if vault.SlippageTolerance.Valid {
		deviation := quotedPrice.Sub(referencePrice).Abs().Div(referencePrice)
		if deviation.GreaterThan(vault.SlippageTolerance.Decimal) {
			return &Skip{SlippageToleranceExceeded: true}
		}
	}

	return nil
}
