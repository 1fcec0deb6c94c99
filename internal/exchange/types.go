package exchange

import (
	"github.com/shopspring/decimal"
)

// Side of a spot order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide validates a caller-provided side string.
func ParseSide(s string) (Side, bool) {
	switch Side(s) {
	case SideBuy, SideSell:
		return Side(s), true
	default:
		return "", false
	}
}

// OrderStatus is the terminal state reported for a submitted order.
type OrderStatus string

const (
	StatusFilled   OrderStatus = "FILLED"
	StatusPartial  OrderStatus = "PARTIAL"
	StatusRejected OrderStatus = "REJECTED"
)

// SymbolRules carries the exchange-imposed trading constraints for one
// symbol. Quantities and prices are exact decimals parsed from the wire.
type SymbolRules struct {
	Symbol      string          `json:"symbol"`
	BaseAsset   string          `json:"baseAsset"`
	QuoteAsset  string          `json:"quoteAsset"`
	StepSize    decimal.Decimal `json:"stepSize"`
	MinQty      decimal.Decimal `json:"minQty"`
	MaxQty      decimal.Decimal `json:"maxQty"`
	MinNotional decimal.Decimal `json:"minNotional"`
	MinPrice    decimal.Decimal `json:"minPrice"`
	MaxPrice    decimal.Decimal `json:"maxPrice"`
	TickSize    decimal.Decimal `json:"tickSize"`
}

// BalanceSnapshot is the free/locked balance of one asset at one instant.
type BalanceSnapshot struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

// Total is always derived, never stored.
func (b BalanceSnapshot) Total() decimal.Decimal {
	return b.Free.Add(b.Locked)
}

// FillReport is the exchange's report for a submitted market order.
// Commission is summed across partial fills; for a two-asset spot pair the
// commission asset is either the base or the quote asset.
type FillReport struct {
	Symbol             string          `json:"symbol"`
	OrderID            int64           `json:"orderId"`
	ClientOrderID      string          `json:"clientOrderId"`
	Side               Side            `json:"side"`
	Status             OrderStatus     `json:"status"`
	ExecutedQty        decimal.Decimal `json:"executedQty"`
	CumulativeQuoteQty decimal.Decimal `json:"cumulativeQuoteQty"`
	CommissionTotal    decimal.Decimal `json:"commissionTotal"`
	CommissionAsset    string          `json:"commissionAsset"`
	TransactTime       int64           `json:"transactTime"`
}

// Candle is one OHLCV bar. Indicator math runs on floats; candles are
// market data, not account money.
type Candle struct {
	OpenTime int64   `json:"time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}
