// Package tools exposes the trading operations over a small HTTP API: read
// balances, prices, rules, candles and indicators, place market orders, and
// inspect the Base network and recent logs.
package tools

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	appconfig "cryptotrader/config"
	"cryptotrader/internal/chain"
	"cryptotrader/internal/exchange"
	"cryptotrader/internal/trade"
	"cryptotrader/logger"
)

// Market is the read-only exchange surface the API serves. SyncClock is
// invoked before each retry of a failed market-data call.
type Market interface {
	SyncClock(ctx context.Context) error
	SymbolRules(ctx context.Context, symbol string) (exchange.SymbolRules, error)
	Balance(ctx context.Context, asset string) (exchange.BalanceSnapshot, error)
	MarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	Candles(ctx context.Context, symbol, interval string, limit int) ([]exchange.Candle, error)
}

// OrderPlacer executes market orders.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, symbol string, side exchange.Side, quantity decimal.Decimal) (*trade.Result, error)
}

// ChainReader answers network status queries. May be nil when the chain
// surface is disabled.
type ChainReader interface {
	Status(ctx context.Context) (*chain.Status, error)
}

// Recorder receives successful execution results. May be nil.
type Recorder interface {
	RecordTrade(res *trade.Result)
}

// Server hosts the Gin-powered tool API.
type Server struct {
	cfg        appconfig.ServerConfig
	trading    appconfig.TradingConfig
	retry      appconfig.RetryConfig
	market     Market
	executor   OrderPlacer
	chain      ChainReader
	recorder   Recorder
	caller     *trade.Caller
	logStore   *logStore
	log        *logger.Log
	httpServer *http.Server
}

// NewServer constructs the tool server when the feature is enabled; a
// disabled configuration returns nil.
func NewServer(cfg appconfig.ServerConfig, trading appconfig.TradingConfig, retry appconfig.RetryConfig, market Market, executor OrderPlacer, chainReader ChainReader, recorder Recorder, log *logger.Log) *Server {
	if !cfg.Enabled {
		return nil
	}

	cfg.Address = normalizeAddress(cfg.Address)

	store := newLogStore(200)
	log.AddHook(store)

	return &Server{
		cfg:      cfg,
		trading:  trading,
		retry:    retry,
		market:   market,
		executor: executor,
		chain:    chainReader,
		recorder: recorder,
		caller:   trade.NewCaller(retry.Delay.D(), market.SyncClock),
		logStore: store,
		log:      log,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the server exits with an error.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}
	defer s.logStore.close()

	router, err := s.buildRouter()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: router,
	}

	s.log.WithComponent("tools").WithFields(logger.Fields{"address": s.cfg.Address}).Info("tool api listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// Address reports the network address the server listens on.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) buildRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api/v1")
	api.GET("/balance/:asset", s.handleBalance)
	api.GET("/price/:symbol", s.handlePrice)
	api.GET("/rules/:symbol", s.handleRules)
	api.GET("/chart/:symbol", s.handleChart)
	api.GET("/indicators/:symbol", s.handleIndicators)
	api.POST("/order", s.handleOrder)
	api.GET("/chain/status", s.handleChainStatus)
	api.GET("/logs", s.handleLogs)

	return router, nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "0.0.0.0:8080"
	}
	if strings.HasPrefix(addr, ":") {
		return "0.0.0.0" + addr
	}
	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}
	return addr
}
