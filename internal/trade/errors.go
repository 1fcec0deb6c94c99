package trade

import (
	"errors"
	"fmt"

	"cryptotrader/internal/exchange"
)

// ErrorKind classifies every way a trade can fail. Kinds are part of the
// tool API surface: handlers map them to structured error payloads, and the
// executor uses them to decide what is retryable.
type ErrorKind string

const (
	// KindTransientExchange covers network, rate-limit and exchange 5xx
	// failures after retries are exhausted.
	KindTransientExchange ErrorKind = "transient_exchange"
	// KindPrecision means the quantity violates the symbol's lot rules.
	KindPrecision ErrorKind = "precision"
	// KindBelowMinNotional means the order value is under the symbol floor.
	KindBelowMinNotional ErrorKind = "below_min_notional"
	// KindInsufficientBalance means the account cannot cover the order and
	// its fee.
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	// KindPriceUnavailable means no current market price could be read.
	KindPriceUnavailable ErrorKind = "price_unavailable"
	// KindRulesNotFound means the symbol has no trading rules.
	KindRulesNotFound ErrorKind = "rules_not_found"
	// KindOrderRejected means the exchange declined the order.
	KindOrderRejected ErrorKind = "order_rejected"
	// KindInternal covers unexpected local failures. Never retried.
	KindInternal ErrorKind = "internal"
)

// Error couples an ErrorKind with a human-readable message and an optional
// cause. Validation kinds are fail-fast and surfaced to the caller verbatim.
type Error struct {
	Kind  ErrorKind
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.cause }

// Errorf builds a kinded error.
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf extracts the kind from an error chain. Unclassified exchange or
// network errors map to transient; anything else is internal.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	if exchange.IsTransient(err) {
		return KindTransientExchange
	}
	return KindInternal
}
