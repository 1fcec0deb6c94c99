package exchange

import (
	"context"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	appconfig "cryptotrader/config"
	"cryptotrader/logger"
)

// Session is the single shared gateway to the exchange. It owns the
// go-binance client, the server-clock offset used for request signing and a
// client-side rate limiter applied to every remote call. The clock offset is
// mutated only by SyncClock; every other method reads it implicitly through
// the signed requests the client produces.
type Session struct {
	client        *binance.Client
	limiter       *rate.Limiter
	recvWindow    int64 // milliseconds
	notionalFloor decimal.Decimal
	log           *logger.Log
}

// NewSession builds the exchange session from the loaded configuration.
func NewSession(cfg *appconfig.Config) *Session {
	client := binance.NewClient(cfg.Exchange.APIKey, cfg.Exchange.SecretKey)
	client.HTTPClient.Timeout = 20 * time.Second

	return &Session{
		client:        client,
		limiter:       rate.NewLimiter(rate.Limit(cfg.Exchange.RequestsPerSecond), cfg.Exchange.Burst),
		recvWindow:    cfg.Exchange.RecvWindow.D().Milliseconds(),
		notionalFloor: cfg.Trading.MinNotional(),
		log:           logger.GetLogger(),
	}
}

// SyncClock fetches server time and stores serverTime-localTime as the
// offset used for all subsequent request signing. A failed sync keeps the
// previous offset in place and only logs a warning; it never blocks
// execution.
func (s *Session) SyncClock(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	offset, err := s.client.NewSetServerTimeService().Do(ctx)
	if err != nil {
		s.log.WithComponent("clock_sync").WithError(err).Warn("failed to sync server time; keeping previous offset")
		return err
	}
	s.log.WithComponent("clock_sync").WithFields(logger.Fields{
		"offset_ms": offset,
	}).Debug("synchronized server time")
	return nil
}

// TimeOffset exposes the current clock offset in milliseconds.
func (s *Session) TimeOffset() int64 {
	return s.client.TimeOffset
}

func (s *Session) recvWindowOpt() binance.RequestOption {
	return binance.WithRecvWindow(s.recvWindow)
}
