package tools

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"cryptotrader/internal/exchange"
	"cryptotrader/internal/indicators"
	"cryptotrader/internal/trade"
	"cryptotrader/logger"
)

const (
	defaultCandleLimit = 100
	maxCandleLimit     = 500
	defaultLogLimit    = 100
)

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func abortError(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": errorPayload{Kind: kind, Message: message}})
}

// abortTradeError maps the execution error taxonomy onto HTTP statuses.
// Validation kinds are client errors; exchange-side failures are gateway
// errors.
func abortTradeError(c *gin.Context, err error) {
	kind := trade.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case trade.KindPrecision, trade.KindBelowMinNotional:
		status = http.StatusBadRequest
	case trade.KindInsufficientBalance:
		status = http.StatusUnprocessableEntity
	case trade.KindRulesNotFound:
		status = http.StatusNotFound
	case trade.KindOrderRejected:
		status = http.StatusConflict
	case trade.KindPriceUnavailable, trade.KindTransientExchange:
		status = http.StatusBadGateway
	}
	abortError(c, status, string(kind), err.Error())
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleBalance(c *gin.Context) {
	asset := strings.ToUpper(c.Param("asset"))
	snap, err := s.market.Balance(c.Request.Context(), asset)
	if err != nil {
		abortTradeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"asset":  snap.Asset,
		"free":   snap.Free,
		"locked": snap.Locked,
		"total":  snap.Total(),
	})
}

func (s *Server) handlePrice(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	price, err := s.market.MarketPrice(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, exchange.ErrPriceUnavailable) {
			abortError(c, http.StatusNotFound, string(trade.KindPriceUnavailable), err.Error())
			return
		}
		abortTradeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "price": price})
}

func (s *Server) handleRules(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	rules, err := s.market.SymbolRules(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, exchange.ErrSymbolNotFound) {
			abortError(c, http.StatusNotFound, string(trade.KindRulesNotFound), err.Error())
			return
		}
		abortTradeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (s *Server) handleChart(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	interval, limit, ok := candleQuery(c)
	if !ok {
		return
	}

	candles, err := s.fetchCandles(c, symbol, interval, limit)
	if err != nil {
		abortTradeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "interval": interval, "candles": candles})
}

func (s *Server) handleIndicators(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	interval, limit, ok := candleQuery(c)
	if !ok {
		return
	}

	candles, err := s.fetchCandles(c, symbol, interval, limit)
	if err != nil {
		abortTradeError(c, err)
		return
	}
	report, err := indicators.Compute(symbol, candles)
	if err != nil {
		abortError(c, http.StatusBadRequest, "insufficient_history", err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}

type orderRequest struct {
	Symbol   string          `json:"symbol" binding:"required"`
	Side     string          `json:"side" binding:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

func (s *Server) handleOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	symbol := strings.ToUpper(req.Symbol)
	if !s.trading.PairAllowed(symbol) {
		abortError(c, http.StatusForbidden, "pair_not_allowed", "trading pair "+symbol+" is not in the allowed list")
		return
	}
	side, ok := exchange.ParseSide(strings.ToUpper(req.Side))
	if !ok {
		abortError(c, http.StatusBadRequest, "invalid_request", "side must be BUY or SELL")
		return
	}
	if req.Quantity.Sign() <= 0 {
		abortError(c, http.StatusBadRequest, "invalid_request", "quantity must be positive")
		return
	}

	res, err := s.executor.PlaceOrder(c.Request.Context(), symbol, side, req.Quantity)
	if err != nil {
		s.log.WithComponent("tools").WithFields(logger.Fields{
			"symbol": symbol,
			"side":   side,
		}).WithError(err).Warn("order request failed")
		abortTradeError(c, err)
		return
	}

	if s.recorder != nil {
		s.recorder.RecordTrade(res)
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleChainStatus(c *gin.Context) {
	if s.chain == nil {
		abortError(c, http.StatusServiceUnavailable, "chain_disabled", "chain status surface is not enabled")
		return
	}
	status, err := s.chain.Status(c.Request.Context())
	if err != nil {
		abortError(c, http.StatusBadGateway, "chain_unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleLogs(c *gin.Context) {
	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			abortError(c, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, gin.H{"logs": s.logStore.tail(limit)})
}

// fetchCandles reads klines through the bounded-retry wrapper so a flaky
// market-data call gets the same second chance an order call does.
func (s *Server) fetchCandles(c *gin.Context, symbol, interval string, limit int) ([]exchange.Candle, error) {
	return trade.Call(c.Request.Context(), s.caller, "candles", s.retry.MarketAttempts, func(ctx context.Context) ([]exchange.Candle, error) {
		return s.market.Candles(ctx, symbol, interval, limit)
	})
}

// candleQuery parses interval and limit, writing the error response itself
// when the query is invalid.
func candleQuery(c *gin.Context) (string, int, bool) {
	interval := c.DefaultQuery("interval", "1h")
	limit := defaultCandleLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxCandleLimit {
			abortError(c, http.StatusBadRequest, "invalid_request",
				"limit must be between 1 and "+strconv.Itoa(maxCandleLimit))
			return "", 0, false
		}
		limit = n
	}
	return interval, limit, true
}
