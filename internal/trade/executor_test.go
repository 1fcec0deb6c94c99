package trade

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"

	appconfig "cryptotrader/config"
	"cryptotrader/internal/exchange"
)

// fakeExchange scripts the remote surface with per-call function fields and
// counts submissions and clock syncs.
type fakeExchange struct {
	syncs   int32
	submits int32

	rulesFn   func(symbol string) (exchange.SymbolRules, error)
	balanceFn func(asset string) (exchange.BalanceSnapshot, error)
	priceFn   func(symbol string) (decimal.Decimal, error)
	submitFn  func(symbol string, side exchange.Side, qty decimal.Decimal) (exchange.FillReport, error)
}

func (f *fakeExchange) SyncClock(ctx context.Context) error {
	atomic.AddInt32(&f.syncs, 1)
	return nil
}

func (f *fakeExchange) SymbolRules(ctx context.Context, symbol string) (exchange.SymbolRules, error) {
	return f.rulesFn(symbol)
}

func (f *fakeExchange) Balance(ctx context.Context, asset string) (exchange.BalanceSnapshot, error) {
	return f.balanceFn(asset)
}

func (f *fakeExchange) MarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f.priceFn(symbol)
}

func (f *fakeExchange) SubmitMarketOrder(ctx context.Context, symbol string, side exchange.Side, qty decimal.Decimal) (exchange.FillReport, error) {
	atomic.AddInt32(&f.submits, 1)
	return f.submitFn(symbol, side, qty)
}

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		Trading: appconfig.TradingConfig{
			Pairs:          []string{"BTCUSDT"},
			FeeRatePercent: 0.1,
			MinOrderValue:  5.0,
			DustThreshold:  1e-5,
		},
		Retry: appconfig.RetryConfig{
			OrderAttempts:   3,
			BalanceAttempts: 3,
			RulesAttempts:   2,
			MarketAttempts:  2,
			Delay:           appconfig.Duration(time.Millisecond),
		},
		Settlement: fastSettlement(),
	}
}

func balances(free map[string]string) func(asset string) (exchange.BalanceSnapshot, error) {
	return func(asset string) (exchange.BalanceSnapshot, error) {
		v, ok := free[asset]
		if !ok {
			return exchange.BalanceSnapshot{Asset: asset}, nil
		}
		return exchange.BalanceSnapshot{Asset: asset, Free: decimal.RequireFromString(v)}, nil
	}
}

func btcusdtFake() *fakeExchange {
	return &fakeExchange{
		rulesFn: func(string) (exchange.SymbolRules, error) {
			return btcRules(), nil
		},
		priceFn: func(string) (decimal.Decimal, error) {
			return decimal.RequireFromString("60000"), nil
		},
	}
}

func kindOf(t *testing.T, err error) ErrorKind {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	return KindOf(err)
}

func TestPlaceOrder_SellCappedBelowMinNotional(t *testing.T) {
	fake := btcusdtFake()
	fake.balanceFn = balances(map[string]string{"BTC": "0.04", "USDT": "1000"})
	// At this price the fee-capped 0.03996 BTC is worth 3.996 USDT.
	fake.priceFn = func(string) (decimal.Decimal, error) {
		return decimal.RequireFromString("100"), nil
	}

	e := NewExecutor(fake, testConfig(), nil)
	_, err := e.PlaceOrder(context.Background(), "BTCUSDT", exchange.SideSell, decimal.RequireFromString("0.05"))
	if k := kindOf(t, err); k != KindBelowMinNotional {
		t.Fatalf("expected below_min_notional, got %s: %v", k, err)
	}
	if fake.submits != 0 {
		t.Fatalf("nothing may be submitted after a failed validation, got %d submissions", fake.submits)
	}
}

func TestPlaceOrder_BuyRejectsInsufficientQuote(t *testing.T) {
	fake := btcusdtFake()
	// Order value is exactly 60 USDT; with the 0.1% fee 60.06 is required.
	fake.balanceFn = balances(map[string]string{"BTC": "0", "USDT": "60"})

	e := NewExecutor(fake, testConfig(), nil)
	_, err := e.PlaceOrder(context.Background(), "BTCUSDT", exchange.SideBuy, decimal.RequireFromString("0.001"))
	if k := kindOf(t, err); k != KindInsufficientBalance {
		t.Fatalf("expected insufficient_balance, got %s: %v", k, err)
	}
	if fake.submits != 0 {
		t.Fatalf("expected no submission, got %d", fake.submits)
	}
}

func TestPlaceOrder_SellDustBalance(t *testing.T) {
	fake := btcusdtFake()
	fake.balanceFn = balances(map[string]string{"BTC": "0.000005", "USDT": "0"})

	e := NewExecutor(fake, testConfig(), nil)
	_, err := e.PlaceOrder(context.Background(), "BTCUSDT", exchange.SideSell, decimal.RequireFromString("0.01"))
	if k := kindOf(t, err); k != KindInsufficientBalance {
		t.Fatalf("expected insufficient_balance, got %s: %v", k, err)
	}
}

func TestPlaceOrder_NonPositiveQuantity(t *testing.T) {
	e := NewExecutor(btcusdtFake(), testConfig(), nil)
	_, err := e.PlaceOrder(context.Background(), "BTCUSDT", exchange.SideBuy, decimal.Zero)
	if k := kindOf(t, err); k != KindPrecision {
		t.Fatalf("expected precision, got %s: %v", k, err)
	}
}

func TestPlaceOrder_BuyFilledAndSettled(t *testing.T) {
	var submitted int32
	fake := btcusdtFake()
	fake.balanceFn = func(asset string) (exchange.BalanceSnapshot, error) {
		if atomic.LoadInt32(&submitted) == 0 {
			return balances(map[string]string{"BTC": "0.6", "USDT": "1000"})(asset)
		}
		// Post-fill ledger: +0.002 BTC minus BTC commission, -120 USDT.
		return balances(map[string]string{"BTC": "0.6019979", "USDT": "880"})(asset)
	}
	fake.submitFn = func(symbol string, side exchange.Side, qty decimal.Decimal) (exchange.FillReport, error) {
		if got := qty.String(); got != "0.002" {
			t.Fatalf("expected step-aligned quantity 0.002, got %s", got)
		}
		atomic.StoreInt32(&submitted, 1)
		return exchange.FillReport{
			Symbol:             symbol,
			OrderID:            42,
			Side:               side,
			Status:             exchange.StatusFilled,
			ExecutedQty:        qty,
			CumulativeQuoteQty: decimal.RequireFromString("120"),
			CommissionTotal:    decimal.RequireFromString("0.0000021"),
			CommissionAsset:    "BTC",
		}, nil
	}

	e := NewExecutor(fake, testConfig(), nil)
	res, err := e.PlaceOrder(context.Background(), "BTCUSDT", exchange.SideBuy, decimal.RequireFromString("0.002"))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if fake.submits != 1 {
		t.Fatalf("expected one submission, got %d", fake.submits)
	}
	if got := res.Expected.Base.String(); got != "0.6019979" {
		t.Fatalf("expected base 0.6019979, got %s", got)
	}
	if got := res.Expected.Quote.String(); got != "880" {
		t.Fatalf("expected quote 880, got %s", got)
	}
	if !res.SettlementConfirmed {
		t.Fatal("expected settlement confirmation against the post-fill ledger")
	}
}

func TestPlaceOrder_RejectedOrder(t *testing.T) {
	fake := btcusdtFake()
	fake.balanceFn = balances(map[string]string{"BTC": "1", "USDT": "1000"})
	fake.submitFn = func(symbol string, side exchange.Side, qty decimal.Decimal) (exchange.FillReport, error) {
		return exchange.FillReport{Symbol: symbol, Status: exchange.StatusRejected}, nil
	}

	e := NewExecutor(fake, testConfig(), nil)
	_, err := e.PlaceOrder(context.Background(), "BTCUSDT", exchange.SideBuy, decimal.RequireFromString("0.002"))
	if k := kindOf(t, err); k != KindOrderRejected {
		t.Fatalf("expected order_rejected, got %s: %v", k, err)
	}
}

func TestPlaceOrder_RetriesTransientSubmitFailure(t *testing.T) {
	fake := btcusdtFake()
	fake.balanceFn = balances(map[string]string{"BTC": "1", "USDT": "1000"})

	attempts := 0
	fake.submitFn = func(symbol string, side exchange.Side, qty decimal.Decimal) (exchange.FillReport, error) {
		attempts++
		if attempts == 1 {
			return exchange.FillReport{}, &common.APIError{Code: -1021, Message: "timestamp outside recvWindow"}
		}
		return exchange.FillReport{
			Symbol:             symbol,
			Side:               side,
			Status:             exchange.StatusPartial,
			ExecutedQty:        decimal.RequireFromString("0.001"),
			CumulativeQuoteQty: decimal.RequireFromString("60"),
		}, nil
	}

	e := NewExecutor(fake, testConfig(), nil)
	res, err := e.PlaceOrder(context.Background(), "BTCUSDT", exchange.SideSell, decimal.RequireFromString("0.002"))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected submit retried once, got %d attempts", attempts)
	}
	if fake.syncs == 0 {
		t.Fatal("expected a clock resync before the retry")
	}
	// A partial fill succeeds but never enters settlement confirmation.
	if res.SettlementConfirmed {
		t.Fatal("partial fills must not report confirmed settlement")
	}
	if !res.Expected.Base.IsZero() || !res.Expected.Quote.IsZero() {
		t.Fatal("no expected balances should be computed for a partial fill")
	}
}

func TestPlaceOrder_SerializesPerSymbol(t *testing.T) {
	var inFlight, maxInFlight int32
	fake := btcusdtFake()
	fake.balanceFn = balances(map[string]string{"BTC": "10", "USDT": "100000"})
	fake.submitFn = func(symbol string, side exchange.Side, qty decimal.Decimal) (exchange.FillReport, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return exchange.FillReport{Symbol: symbol, Side: side, Status: exchange.StatusPartial, ExecutedQty: qty}, nil
	}

	e := NewExecutor(fake, testConfig(), nil)
	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := e.PlaceOrder(context.Background(), "BTCUSDT", exchange.SideBuy, decimal.RequireFromString("0.002"))
			done <- err
		}()
	}
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("PlaceOrder: %v", err)
		}
	}
	if max := atomic.LoadInt32(&maxInFlight); max != 1 {
		t.Fatalf("expected one in-flight order per symbol, observed %d", max)
	}
}
