package trade

import (
	"math"

	"github.com/shopspring/decimal"

	"cryptotrader/internal/exchange"
)

var one = decimal.NewFromInt(1)

// stepPrecision derives the number of decimal places allowed by a step
// size: precision = round(-log10(stepSize)).
func stepPrecision(step decimal.Decimal) int32 {
	return int32(math.Round(-math.Log10(step.InexactFloat64())))
}

// FormatQuantity aligns a raw desired quantity to the symbol's step size and
// validates it against the lot bounds. Rounding is always truncation toward
// zero, never up: overestimating a quantity risks exceeding available funds.
func FormatQuantity(rules exchange.SymbolRules, raw decimal.Decimal) (decimal.Decimal, error) {
	formatted := raw.Truncate(stepPrecision(rules.StepSize))
	if formatted.LessThan(rules.MinQty) {
		return decimal.Zero, Errorf(KindPrecision,
			"quantity %s is below minimum %s for %s", formatted, rules.MinQty, rules.Symbol)
	}
	if formatted.GreaterThan(rules.MaxQty) {
		return decimal.Zero, Errorf(KindPrecision,
			"quantity %s is above maximum %s for %s", formatted, rules.MaxQty, rules.Symbol)
	}
	return formatted, nil
}

// MaxSellQuantity is the largest quantity that can be sold from a free
// balance once the trading fee is reserved: selling X needs X*(1+fee)
// available, so X = free / (1+fee).
func MaxSellQuantity(free, feeRate decimal.Decimal) decimal.Decimal {
	return free.Div(one.Add(feeRate))
}

// SizeSell caps a requested sell quantity at MaxSellQuantity. A request
// above the cap is shrunk, not rejected: the caller should not have to know
// about fee reservation. The second return reports whether capping happened.
func SizeSell(requested, free, feeRate decimal.Decimal) (decimal.Decimal, bool) {
	maxQty := MaxSellQuantity(free, feeRate)
	if requested.GreaterThan(maxQty) {
		return maxQty, true
	}
	return requested, false
}

// RequiredQuote is the quote amount a buy must be able to cover, fee
// included.
func RequiredQuote(orderValue, feeRate decimal.Decimal) decimal.Decimal {
	return orderValue.Mul(one.Add(feeRate))
}
