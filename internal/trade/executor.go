package trade

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"

	appconfig "cryptotrader/config"
	"cryptotrader/internal/exchange"
	"cryptotrader/logger"
)

// Exchange is the remote surface the executor consumes. *exchange.Session
// satisfies it; tests use a fake.
type Exchange interface {
	SyncClock(ctx context.Context) error
	SymbolRules(ctx context.Context, symbol string) (exchange.SymbolRules, error)
	Balance(ctx context.Context, asset string) (exchange.BalanceSnapshot, error)
	MarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	SubmitMarketOrder(ctx context.Context, symbol string, side exchange.Side, quantity decimal.Decimal) (exchange.FillReport, error)
}

// Result is the outcome of one executed trade. SettlementConfirmed is
// advisory: false means local bookkeeping could not verify settlement within
// budget, not that the order failed.
type Result struct {
	Report              exchange.FillReport `json:"report"`
	Quantity            decimal.Decimal     `json:"quantity"`
	Price               decimal.Decimal     `json:"price"`
	Expected            ExpectedBalances    `json:"expected"`
	SettlementConfirmed bool                `json:"settlementConfirmed"`
}

// Executor owns the full lifecycle of a single trade request: rule fetch,
// quantity formatting, fee sizing, notional and balance validation,
// submission and settlement confirmation. Execution is serialized per
// symbol: one in-flight order per symbol at a time.
type Executor struct {
	ex      Exchange
	trading appconfig.TradingConfig
	retry   appconfig.RetryConfig
	caller  *Caller
	poller  *SettlementPoller
	log     *logger.Log

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewExecutor wires the executor. A nil clk uses the wall clock.
func NewExecutor(ex Exchange, cfg *appconfig.Config, clk clock.Clock) *Executor {
	caller := NewCaller(cfg.Retry.Delay.D(), ex.SyncClock)
	return &Executor{
		ex:      ex,
		trading: cfg.Trading,
		retry:   cfg.Retry,
		caller:  caller,
		poller:  NewSettlementPoller(ex, cfg.Settlement, clk),
		log:     logger.GetLogger(),
		locks:   map[string]*sync.Mutex{},
	}
}

func (e *Executor) symbolLock(symbol string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		e.locks[symbol] = l
	}
	return l
}

// PlaceOrder executes a market order end to end. The raw quantity is the
// desired base-asset amount; it is fee-sized (for sells), step-aligned and
// validated before anything is submitted.
func (e *Executor) PlaceOrder(ctx context.Context, symbol string, side exchange.Side, rawQty decimal.Decimal) (*Result, error) {
	if rawQty.Sign() <= 0 {
		return nil, Errorf(KindPrecision, "quantity must be positive, got %s", rawQty)
	}

	lock := e.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	log := e.log.WithComponent("order_executor").WithFields(logger.Fields{
		"symbol": symbol,
		"side":   side,
	})

	// Validating: rules, fee sizing, step alignment.
	rules, err := Call(ctx, e.caller, "symbol_rules", e.retry.RulesAttempts, func(ctx context.Context) (exchange.SymbolRules, error) {
		return e.ex.SymbolRules(ctx, symbol)
	})
	if err != nil {
		return nil, Wrap(KindRulesNotFound, err, "could not fetch trading rules for %s", symbol)
	}

	feeRate := e.trading.FeeRate()
	quantity := rawQty
	if side == exchange.SideSell {
		baseBal, err := e.readBalance(ctx, rules.BaseAsset)
		if err != nil {
			return nil, err
		}
		if baseBal.Free.LessThan(e.trading.Dust()) {
			return nil, Errorf(KindInsufficientBalance,
				"%s balance %s is too small to trade (min %s)", rules.BaseAsset, baseBal.Free, e.trading.Dust())
		}
		sized, capped := SizeSell(quantity, baseBal.Free, feeRate)
		if capped {
			log.WithFields(logger.Fields{
				"requested": quantity.String(),
				"sized":     sized.String(),
				"fee_rate":  feeRate.String(),
			}).Info("capped sell quantity to reserve trading fee")
			quantity = sized
		}
	}

	formatted, err := FormatQuantity(rules, quantity)
	if err != nil {
		return nil, err
	}

	// PriceDiscovery.
	price, err := Call(ctx, e.caller, "market_price", e.retry.MarketAttempts, func(ctx context.Context) (decimal.Decimal, error) {
		return e.ex.MarketPrice(ctx, symbol)
	})
	if err != nil {
		return nil, Wrap(KindPriceUnavailable, err, "could not read current price for %s", symbol)
	}

	// NotionalCheck.
	orderValue := formatted.Mul(price)
	if orderValue.LessThan(rules.MinNotional) {
		return nil, Errorf(KindBelowMinNotional,
			"order value %s %s is below minimum %s", orderValue, rules.QuoteAsset, rules.MinNotional)
	}

	// BalanceCheck: pre-trade snapshots of both assets are captured
	// regardless of side; they anchor the expected-balance computation.
	preBase, err := e.readBalance(ctx, rules.BaseAsset)
	if err != nil {
		return nil, err
	}
	preQuote, err := e.readBalance(ctx, rules.QuoteAsset)
	if err != nil {
		return nil, err
	}
	if side == exchange.SideBuy {
		required := RequiredQuote(orderValue, feeRate)
		if preQuote.Free.LessThan(required) {
			return nil, Errorf(KindInsufficientBalance,
				"insufficient %s balance: required %s (incl. fee), available %s",
				rules.QuoteAsset, required, preQuote.Free)
		}
	}

	log.WithFields(logger.Fields{
		"quantity":    formatted.String(),
		"price":       price.String(),
		"order_value": orderValue.String(),
		"pre_base":    preBase.Total().String(),
		"pre_quote":   preQuote.Total().String(),
	}).Info("submitting market order")

	// Submitting.
	report, err := Call(ctx, e.caller, "submit_order", e.retry.OrderAttempts, func(ctx context.Context) (exchange.FillReport, error) {
		return e.ex.SubmitMarketOrder(ctx, symbol, side, formatted)
	})
	if err != nil {
		e.log.LogMetric("order_executor", "orders_failed", 1, "counter", logger.Fields{"symbol": symbol})
		return nil, Wrap(KindOf(err), err, "order submission failed for %s", symbol)
	}
	if report.Status == exchange.StatusRejected {
		e.log.LogMetric("order_executor", "orders_rejected", 1, "counter", logger.Fields{"symbol": symbol})
		return nil, Errorf(KindOrderRejected, "exchange rejected %s order for %s", side, symbol)
	}

	result := &Result{Report: report, Quantity: formatted, Price: price}
	e.log.LogMetric("order_executor", "orders_filled", 1, "counter", logger.Fields{"symbol": symbol})

	if report.Status != exchange.StatusFilled {
		log.WithFields(logger.Fields{"status": report.Status}).Warn("order not fully filled; skipping settlement confirmation")
		return result, nil
	}

	result.Expected = ComputeExpected(report, preBase, preQuote, rules)
	result.SettlementConfirmed = e.confirmSettlement(ctx, side, result.Expected)
	if result.SettlementConfirmed {
		e.log.LogMetric("order_executor", "settlement_confirmed", 1, "counter", logger.Fields{"symbol": symbol})
	} else {
		e.log.LogMetric("order_executor", "settlement_unconfirmed", 1, "counter", logger.Fields{"symbol": symbol})
		log.Warn("settlement not confirmed within budget; order itself succeeded")
	}
	return result, nil
}

// confirmSettlement checks both legs, spending asset first: the spent
// balance moves first on the exchange ledger, the received one after.
func (e *Executor) confirmSettlement(ctx context.Context, side exchange.Side, expected ExpectedBalances) bool {
	if side == exchange.SideSell {
		baseOK := e.poller.Confirm(ctx, expected.BaseAsset, expected.Base)
		quoteOK := e.poller.Confirm(ctx, expected.QuoteAsset, expected.Quote)
		return baseOK && quoteOK
	}
	quoteOK := e.poller.Confirm(ctx, expected.QuoteAsset, expected.Quote)
	baseOK := e.poller.Confirm(ctx, expected.BaseAsset, expected.Base)
	return baseOK && quoteOK
}

func (e *Executor) readBalance(ctx context.Context, asset string) (exchange.BalanceSnapshot, error) {
	snap, err := Call(ctx, e.caller, "balance", e.retry.BalanceAttempts, func(ctx context.Context) (exchange.BalanceSnapshot, error) {
		return e.ex.Balance(ctx, asset)
	})
	if err != nil {
		return exchange.BalanceSnapshot{}, Wrap(KindOf(err), err, "could not read %s balance", asset)
	}
	return snap, nil
}
