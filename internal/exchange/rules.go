package exchange

import (
	"context"
	"fmt"
	"strings"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// SymbolRules fetches the trading constraints for a symbol. No caching:
// every order validates against a freshly fetched rule set so exchange-side
// rule changes take effect immediately.
func (s *Session) SymbolRules(ctx context.Context, symbol string) (SymbolRules, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := s.limiter.Wait(ctx); err != nil {
		return SymbolRules{}, err
	}

	info, err := s.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return SymbolRules{}, err
	}
	for i := range info.Symbols {
		if info.Symbols[i].Symbol == symbol {
			return s.rulesFromSymbol(&info.Symbols[i])
		}
	}
	return SymbolRules{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
}

// rulesFromSymbol extracts LOT_SIZE, NOTIONAL (falling back to MIN_NOTIONAL,
// then the configured minimum order value floor) and PRICE_FILTER.
func (s *Session) rulesFromSymbol(sym *binance.Symbol) (SymbolRules, error) {
	rules := SymbolRules{
		Symbol:      sym.Symbol,
		BaseAsset:   sym.BaseAsset,
		QuoteAsset:  sym.QuoteAsset,
		MinNotional: s.notionalFloor,
	}

	lot := sym.LotSizeFilter()
	if lot == nil {
		return SymbolRules{}, fmt.Errorf("symbol %s has no LOT_SIZE filter", sym.Symbol)
	}
	var err error
	if rules.StepSize, err = decimal.NewFromString(lot.StepSize); err != nil {
		return SymbolRules{}, fmt.Errorf("invalid step size %q: %w", lot.StepSize, err)
	}
	if rules.StepSize.Sign() <= 0 {
		return SymbolRules{}, fmt.Errorf("symbol %s step size must be positive", sym.Symbol)
	}
	if rules.MinQty, err = decimal.NewFromString(lot.MinQuantity); err != nil {
		return SymbolRules{}, fmt.Errorf("invalid min quantity %q: %w", lot.MinQuantity, err)
	}
	if rules.MaxQty, err = decimal.NewFromString(lot.MaxQuantity); err != nil {
		return SymbolRules{}, fmt.Errorf("invalid max quantity %q: %w", lot.MaxQuantity, err)
	}

	if notional := sym.NotionalFilter(); notional != nil && notional.MinNotional != "" {
		if rules.MinNotional, err = decimal.NewFromString(notional.MinNotional); err != nil {
			return SymbolRules{}, fmt.Errorf("invalid min notional %q: %w", notional.MinNotional, err)
		}
	} else if raw := minNotionalFromFilters(sym.Filters); raw != "" {
		if rules.MinNotional, err = decimal.NewFromString(raw); err != nil {
			return SymbolRules{}, fmt.Errorf("invalid min notional %q: %w", raw, err)
		}
	}

	if price := sym.PriceFilter(); price != nil {
		// Price bounds are informational for market orders; parse errors on
		// them are not fatal.
		rules.MinPrice, _ = decimal.NewFromString(price.MinPrice)
		rules.MaxPrice, _ = decimal.NewFromString(price.MaxPrice)
		rules.TickSize, _ = decimal.NewFromString(price.TickSize)
	}

	return rules, nil
}

// minNotionalFromFilters reads the legacy MIN_NOTIONAL filter out of the raw
// filter maps. The SDK only exposes an accessor for the newer NOTIONAL
// filter, but older symbols still report MIN_NOTIONAL.
func minNotionalFromFilters(filters []map[string]interface{}) string {
	for _, f := range filters {
		t, ok := f["filterType"].(string)
		if !ok || t != "MIN_NOTIONAL" {
			continue
		}
		if v, ok := f["minNotional"].(string); ok {
			return v
		}
	}
	return ""
}
