// Package indicators computes technical indicators over candle history:
// RSI(14), MACD(12,26,9), Bollinger Bands(20,2), EMA(50) and SMA(200), plus
// a coarse market-state heuristic. All math is float64; indicator values are
// presentation data, not order-sizing inputs.
package indicators

import (
	"fmt"
	"math"

	"cryptotrader/internal/exchange"
)

const (
	rsiWindow     = 14
	macdFast      = 12
	macdSlow      = 26
	macdSignal    = 9
	bollWindow    = 20
	bollWidth     = 2.0
	emaWindow     = 50
	smaLongWindow = 200

	// minCandles is the least history that yields a defined RSI, MACD and
	// Bollinger band set. SMA(200) degrades gracefully below 200 candles.
	minCandles = macdSlow
)

// MACD is the moving average convergence/divergence triple.
type MACD struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"hist"`
}

// Bollinger is the 20-period band set. Middle is the SMA(20).
type Bollinger struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle_sma20"`
	Lower  float64 `json:"lower"`
}

// Report carries the latest value of every indicator. SMA200 is nil when
// fewer than 200 candles were supplied.
type Report struct {
	Symbol       string    `json:"symbol"`
	CurrentPrice float64   `json:"currentPrice"`
	RSI14        float64   `json:"rsi14"`
	MACD         MACD      `json:"macd"`
	Bollinger    Bollinger `json:"bollingerBands"`
	EMA50        float64   `json:"ema50"`
	SMA200       *float64  `json:"sma200,omitempty"`
	MarketState  string    `json:"marketState"`
}

// Compute evaluates every indicator on the closing prices of candles,
// oldest first, and reports the latest values.
func Compute(symbol string, candles []exchange.Candle) (*Report, error) {
	if len(candles) < minCandles {
		return nil, fmt.Errorf("indicators need at least %d candles, got %d", minCandles, len(candles))
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	macdLine := sub(ema(closes, macdFast), ema(closes, macdSlow))
	signalLine := ema(macdLine, macdSignal)

	middle := sma(closes, bollWindow)
	dev := stddev(closes[len(closes)-bollWindow:], middle)

	r := &Report{
		Symbol:       symbol,
		CurrentPrice: closes[len(closes)-1],
		RSI14:        round(rsi(closes, rsiWindow), 2),
		MACD: MACD{
			MACD:      round(last(macdLine), 4),
			Signal:    round(last(signalLine), 4),
			Histogram: round(last(macdLine)-last(signalLine), 4),
		},
		Bollinger: Bollinger{
			Upper:  round(middle+bollWidth*dev, 2),
			Middle: round(middle, 2),
			Lower:  round(middle-bollWidth*dev, 2),
		},
		EMA50: round(last(ema(closes, emaWindow)), 2),
	}
	if len(closes) >= smaLongWindow {
		v := round(sma(closes, smaLongWindow), 2)
		r.SMA200 = &v
	}
	r.MarketState = marketState(r.RSI14)
	return r, nil
}

// marketState is a coarse read of the RSI alone: mid-band suggests ranging,
// the overbought/oversold tails suggest an extended trend.
func marketState(rsi float64) string {
	switch {
	case rsi > 40 && rsi < 60:
		return "likely_ranging"
	case rsi > 70 || rsi < 30:
		return "likely_trending_overextended"
	default:
		return "neutral_trending"
	}
}

// rsi is the simple-average Wilder variant: rolling means of gains and
// losses over the window, not smoothed averages.
func rsi(closes []float64, window int) float64 {
	gains, losses := 0.0, 0.0
	for i := len(closes) - window; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(window)
	avgLoss := losses / float64(window)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ema returns the full exponential moving average series, seeded with the
// first value and alpha = 2/(span+1).
func ema(values []float64, span int) []float64 {
	alpha := 2.0 / float64(span+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// sma averages the trailing window.
func sma(values []float64, window int) float64 {
	sum := 0.0
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window)
}

// stddev is the sample standard deviation around mean.
func stddev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func last(values []float64) float64 { return values[len(values)-1] }

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
