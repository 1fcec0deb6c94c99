package exchange

import (
	"context"
	"errors"
	"net"

	"github.com/adshao/go-binance/v2/common"
)

var (
	// ErrSymbolNotFound is returned when the exchange knows nothing about
	// the requested symbol.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrPriceUnavailable is returned when no ticker price came back.
	ErrPriceUnavailable = errors.New("price unavailable")
)

// IsTransient reports whether an error came from the exchange or the network
// and is therefore worth retrying. Context cancellation and local errors are
// never transient: retrying them cannot change the outcome.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
