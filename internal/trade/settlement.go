package trade

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"

	appconfig "cryptotrader/config"
	"cryptotrader/internal/exchange"
	"cryptotrader/logger"
)

// BalanceReader is the slice of the exchange surface the poller needs.
type BalanceReader interface {
	Balance(ctx context.Context, asset string) (exchange.BalanceSnapshot, error)
}

// SettlementPoller confirms that an asset's observed total balance converges
// to an expected value after a fill. The result is advisory: the order has
// already succeeded at the exchange, so an unconfirmed settlement is a
// warning, never an order failure.
type SettlementPoller struct {
	reader       BalanceReader
	tolerance    decimal.Decimal
	settleDelay  time.Duration
	pollInterval time.Duration
	roundTimeout time.Duration
	maxRounds    int
	clock        clock.Clock
	log          *logger.Log
}

// NewSettlementPoller builds a poller from the settlement configuration.
// A nil clk falls back to the wall clock; tests inject their own.
func NewSettlementPoller(reader BalanceReader, cfg appconfig.SettlementConfig, clk clock.Clock) *SettlementPoller {
	if clk == nil {
		clk = clock.New()
	}
	return &SettlementPoller{
		reader:       reader,
		tolerance:    decimal.NewFromFloat(cfg.Tolerance),
		settleDelay:  cfg.SettleDelay.D(),
		pollInterval: cfg.PollInterval.D(),
		roundTimeout: cfg.RoundTimeout.D(),
		maxRounds:    cfg.MaxRounds,
		clock:        clk,
		log:          logger.GetLogger(),
	}
}

// Confirm polls until |observed total - expected| <= tolerance or the round
// budget is exhausted. Each round starts with a settle delay to let the
// exchange ledger propagate, then polls at the configured interval until the
// round times out.
func (p *SettlementPoller) Confirm(ctx context.Context, asset string, expected decimal.Decimal) bool {
	log := p.log.WithComponent("settlement").WithFields(logger.Fields{
		"asset":    asset,
		"expected": expected.String(),
	})

	for round := 1; round <= p.maxRounds; round++ {
		p.clock.Sleep(p.settleDelay)
		if ctx.Err() != nil {
			return false
		}

		deadline := p.clock.Now().Add(p.roundTimeout)
		for p.clock.Now().Before(deadline) {
			p.clock.Sleep(p.pollInterval)
			if ctx.Err() != nil {
				return false
			}

			snap, err := p.reader.Balance(ctx, asset)
			if err != nil {
				log.WithError(err).Warn("balance read failed during settlement poll")
				continue
			}
			diff := snap.Total().Sub(expected).Abs()
			if diff.LessThanOrEqual(p.tolerance) {
				log.WithFields(logger.Fields{
					"observed": snap.Total().String(),
					"round":    round,
				}).Info("settlement confirmed")
				return true
			}
		}

		log.WithFields(logger.Fields{"round": round}).Warn("settlement round timed out")
		if round < p.maxRounds {
			p.clock.Sleep(p.settleDelay)
		}
	}

	log.Warn("settlement unconfirmed after all rounds")
	return false
}
