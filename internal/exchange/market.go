package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// MarketPrice returns the current ticker price for a symbol as an exact
// decimal.
func (s *Session) MarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := s.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}

	prices, err := s.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid ticker price %q: %w", prices[0].Price, err)
	}
	return price, nil
}

// Candles fetches historical OHLCV bars. The response is validated the same
// way the account balances are: an empty or malformed payload is an error,
// not a silently short series.
func (s *Session) Candles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	klines, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("no market data for %s %s", symbol, interval)
	}

	candles := make([]Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := candleFromKline(k)
		if err != nil {
			return nil, fmt.Errorf("invalid kline for %s: %w", symbol, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func candleFromKline(k *binance.Kline) (Candle, error) {
	candle := Candle{OpenTime: k.OpenTime}
	for _, f := range []struct {
		name  string
		value string
		dst   *float64
	}{
		{"open", k.Open, &candle.Open},
		{"high", k.High, &candle.High},
		{"low", k.Low, &candle.Low},
		{"close", k.Close, &candle.Close},
		{"volume", k.Volume, &candle.Volume},
	} {
		v, err := strconv.ParseFloat(f.value, 64)
		if err != nil {
			return Candle{}, fmt.Errorf("bad %s %q: %w", f.name, f.value, err)
		}
		*f.dst = v
	}
	return candle, nil
}
