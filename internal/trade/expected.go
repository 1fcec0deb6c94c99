package trade

import (
	"github.com/shopspring/decimal"

	"cryptotrader/internal/exchange"
)

// ExpectedBalances are the post-trade totals the exchange ledger must
// converge to, computed deterministically from the fill report and the
// pre-trade snapshots. For a two-asset spot pair the commission is always
// denominated in either the base or the quote asset, giving four
// side/commission combinations.
type ExpectedBalances struct {
	BaseAsset  string          `json:"baseAsset"`
	QuoteAsset string          `json:"quoteAsset"`
	Base       decimal.Decimal `json:"base"`
	Quote      decimal.Decimal `json:"quote"`
}

// ComputeExpected applies the fill deltas and the commission to the
// pre-trade totals.
func ComputeExpected(report exchange.FillReport, preBase, preQuote exchange.BalanceSnapshot, rules exchange.SymbolRules) ExpectedBalances {
	base := preBase.Total()
	quote := preQuote.Total()

	if report.Side == exchange.SideBuy {
		base = base.Add(report.ExecutedQty)
		quote = quote.Sub(report.CumulativeQuoteQty)
	} else {
		base = base.Sub(report.ExecutedQty)
		quote = quote.Add(report.CumulativeQuoteQty)
	}

	switch report.CommissionAsset {
	case rules.BaseAsset:
		base = base.Sub(report.CommissionTotal)
	case rules.QuoteAsset:
		quote = quote.Sub(report.CommissionTotal)
	}

	return ExpectedBalances{
		BaseAsset:  rules.BaseAsset,
		QuoteAsset: rules.QuoteAsset,
		Base:       base,
		Quote:      quote,
	}
}
