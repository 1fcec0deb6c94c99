package trade

import (
	"testing"

	"github.com/shopspring/decimal"

	"cryptotrader/internal/exchange"
)

func btcRules() exchange.SymbolRules {
	return exchange.SymbolRules{
		Symbol:      "BTCUSDT",
		BaseAsset:   "BTC",
		QuoteAsset:  "USDT",
		StepSize:    decimal.RequireFromString("0.00001"),
		MinQty:      decimal.RequireFromString("0.00001"),
		MaxQty:      decimal.RequireFromString("9000"),
		MinNotional: decimal.RequireFromString("5"),
	}
}

func TestFormatQuantity_TruncatesTowardZero(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"0.0399600399", "0.03996"},
		{"0.123456789", "0.12345"},
		{"1", "1"},
		{"0.00001", "0.00001"},
		{"0.000019999", "0.00001"},
	}
	rules := btcRules()
	for _, tc := range cases {
		got, err := FormatQuantity(rules, decimal.RequireFromString(tc.raw))
		if err != nil {
			t.Fatalf("FormatQuantity(%s): %v", tc.raw, err)
		}
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("FormatQuantity(%s) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

// Truncation law: the formatted quantity is a multiple of the step size and
// never exceeds the raw quantity.
func TestFormatQuantity_TruncationLaw(t *testing.T) {
	steps := []string{"1", "0.1", "0.01", "0.001", "0.0001", "0.00001", "0.000001"}
	raws := []string{"0.123456789", "7.999999999", "42.00000001", "0.999999", "1234.56789"}
	for _, step := range steps {
		rules := exchange.SymbolRules{
			Symbol:   "TEST",
			StepSize: decimal.RequireFromString(step),
			MinQty:   decimal.Zero,
			MaxQty:   decimal.RequireFromString("1000000"),
		}
		for _, raw := range raws {
			rawDec := decimal.RequireFromString(raw)
			got, err := FormatQuantity(rules, rawDec)
			if err != nil {
				t.Fatalf("FormatQuantity(step=%s, raw=%s): %v", step, raw, err)
			}
			if got.GreaterThan(rawDec) {
				t.Fatalf("step=%s raw=%s: formatted %s exceeds raw", step, raw, got)
			}
			if !got.Mod(rules.StepSize).IsZero() {
				t.Fatalf("step=%s raw=%s: formatted %s is not a step multiple", step, raw, got)
			}
		}
	}
}

func TestFormatQuantity_BelowMinimum(t *testing.T) {
	_, err := FormatQuantity(btcRules(), decimal.RequireFromString("0.000001"))
	if err == nil {
		t.Fatal("expected error below minimum quantity")
	}
	if KindOf(err) != KindPrecision {
		t.Fatalf("expected precision kind, got %s", KindOf(err))
	}
}

func TestFormatQuantity_AboveMaximum(t *testing.T) {
	_, err := FormatQuantity(btcRules(), decimal.RequireFromString("9001"))
	if err == nil {
		t.Fatal("expected error above maximum quantity")
	}
	if KindOf(err) != KindPrecision {
		t.Fatalf("expected precision kind, got %s", KindOf(err))
	}
}

// Fee-sizing law: a capped sell quantity times (1+fee) never exceeds the
// free balance.
func TestSizeSell_NeverExceedsFreeBalance(t *testing.T) {
	fees := []string{"0", "0.001", "0.00075", "0.01"}
	frees := []string{"0.04", "1", "123.456", "0.00001"}
	requested := decimal.RequireFromString("1000000")

	for _, fee := range fees {
		for _, free := range frees {
			feeRate := decimal.RequireFromString(fee)
			freeBal := decimal.RequireFromString(free)
			sized, capped := SizeSell(requested, freeBal, feeRate)
			if !capped {
				t.Fatalf("fee=%s free=%s: expected capping", fee, free)
			}
			cost := sized.Mul(one.Add(feeRate))
			// Div rounds at decimal.DivisionPrecision digits, so allow
			// the same tolerance the settlement check uses.
			if cost.Sub(freeBal).GreaterThan(decimal.New(1, -12)) {
				t.Fatalf("fee=%s free=%s: cost %s exceeds free balance", fee, free, cost)
			}
		}
	}
}

func TestSizeSell_CappedQuantityFormats(t *testing.T) {
	// Selling 0.05 BTC with only 0.04 free at 0.1% fee caps to
	// 0.04/1.001 = 0.0399600399..., which formats to 0.03996 at step 1e-5.
	sized, capped := SizeSell(
		decimal.RequireFromString("0.05"),
		decimal.RequireFromString("0.04"),
		decimal.RequireFromString("0.001"),
	)
	if !capped {
		t.Fatal("expected capping")
	}
	got, err := FormatQuantity(btcRules(), sized)
	if err != nil {
		t.Fatalf("FormatQuantity: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("0.03996")) {
		t.Fatalf("formatted capped quantity = %s, want 0.03996", got)
	}
}

func TestSizeSell_NoCapWhenAffordable(t *testing.T) {
	sized, capped := SizeSell(
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("1"),
		decimal.RequireFromString("0.001"),
	)
	if capped {
		t.Fatal("did not expect capping")
	}
	if !sized.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("unexpected sized quantity: %s", sized)
	}
}

func TestMaxSellQuantity_FeeReserve(t *testing.T) {
	// free 0.04 BTC at 0.1% fee caps at 0.04/1.001 ~= 0.039960.
	got := MaxSellQuantity(decimal.RequireFromString("0.04"), decimal.RequireFromString("0.001"))
	if got.Truncate(6).String() != "0.03996" {
		t.Fatalf("unexpected max sell quantity: %s", got)
	}
}

func TestRequiredQuote(t *testing.T) {
	got := RequiredQuote(decimal.RequireFromString("50"), decimal.RequireFromString("0.001"))
	if !got.Equal(decimal.RequireFromString("50.05")) {
		t.Fatalf("unexpected required quote: %s", got)
	}
}
