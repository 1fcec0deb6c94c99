package exchange

import (
	"context"
	"fmt"
	"strings"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// Balance retrieves the free and locked balance for one asset. An asset the
// account has never held comes back as a zero snapshot rather than an error.
func (s *Session) Balance(ctx context.Context, asset string) (BalanceSnapshot, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	if err := s.limiter.Wait(ctx); err != nil {
		return BalanceSnapshot{}, err
	}

	account, err := s.client.NewGetAccountService().Do(ctx, s.recvWindowOpt())
	if err != nil {
		return BalanceSnapshot{}, err
	}
	for i := range account.Balances {
		if strings.EqualFold(account.Balances[i].Asset, asset) {
			return snapshotFromBalance(account.Balances[i])
		}
	}
	return BalanceSnapshot{Asset: asset}, nil
}

func snapshotFromBalance(b binance.Balance) (BalanceSnapshot, error) {
	free, err := decimal.NewFromString(b.Free)
	if err != nil {
		return BalanceSnapshot{}, fmt.Errorf("invalid free balance %q for %s: %w", b.Free, b.Asset, err)
	}
	locked, err := decimal.NewFromString(b.Locked)
	if err != nil {
		return BalanceSnapshot{}, fmt.Errorf("invalid locked balance %q for %s: %w", b.Locked, b.Asset, err)
	}
	return BalanceSnapshot{Asset: strings.ToUpper(b.Asset), Free: free, Locked: locked}, nil
}
