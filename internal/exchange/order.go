package exchange

import (
	"context"
	"fmt"
	"strings"

	binance "github.com/adshao/go-binance/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cryptotrader/logger"
)

// SubmitMarketOrder places a market order for an already formatted,
// step-aligned quantity. The quantity decimal is rendered exactly as-is on
// the wire; no float conversion happens between formatting and submission.
func (s *Session) SubmitMarketOrder(ctx context.Context, symbol string, side Side, quantity decimal.Decimal) (FillReport, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := s.limiter.Wait(ctx); err != nil {
		return FillReport{}, err
	}

	clientOrderID := "ct-" + uuid.NewString()
	res, err := s.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideType(side)).
		Type(binance.OrderTypeMarket).
		Quantity(quantity.String()).
		NewClientOrderID(clientOrderID).
		Do(ctx, s.recvWindowOpt())
	if err != nil {
		return FillReport{}, err
	}

	report, err := fillReportFromResponse(res)
	if err != nil {
		return FillReport{}, err
	}
	s.log.WithComponent("exchange").WithFields(logger.Fields{
		"symbol":          symbol,
		"side":            side,
		"order_id":        report.OrderID,
		"client_order_id": clientOrderID,
		"status":          report.Status,
		"executed_qty":    report.ExecutedQty.String(),
	}).Info("market order submitted")
	return report, nil
}

func fillReportFromResponse(res *binance.CreateOrderResponse) (FillReport, error) {
	executed, err := decimal.NewFromString(res.ExecutedQuantity)
	if err != nil {
		return FillReport{}, fmt.Errorf("invalid executed quantity %q: %w", res.ExecutedQuantity, err)
	}
	quote, err := decimal.NewFromString(res.CummulativeQuoteQuantity)
	if err != nil {
		return FillReport{}, fmt.Errorf("invalid cumulative quote quantity %q: %w", res.CummulativeQuoteQuantity, err)
	}

	commission := decimal.Zero
	commissionAsset := ""
	for _, fill := range res.Fills {
		c, err := decimal.NewFromString(fill.Commission)
		if err != nil {
			return FillReport{}, fmt.Errorf("invalid fill commission %q: %w", fill.Commission, err)
		}
		commission = commission.Add(c)
		if commissionAsset == "" {
			commissionAsset = fill.CommissionAsset
		}
	}

	return FillReport{
		Symbol:             res.Symbol,
		OrderID:            res.OrderID,
		ClientOrderID:      res.ClientOrderID,
		Side:               Side(res.Side),
		Status:             statusFromOrder(res.Status),
		ExecutedQty:        executed,
		CumulativeQuoteQty: quote,
		CommissionTotal:    commission,
		CommissionAsset:    strings.ToUpper(commissionAsset),
		TransactTime:       res.TransactTime,
	}, nil
}

func statusFromOrder(status binance.OrderStatusType) OrderStatus {
	switch status {
	case binance.OrderStatusTypeFilled:
		return StatusFilled
	case binance.OrderStatusTypePartiallyFilled:
		return StatusPartial
	default:
		return StatusRejected
	}
}
