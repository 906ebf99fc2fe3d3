package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMarketOrderParamsValidate(t *testing.T) {
	p := MarketOrderParams{
		Symbol:   "BTC-USDT",
		Side:     Buy,
		Quantity: decimal.RequireFromString("0.01"),
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	p.Side = "HOLD"
	err := p.Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want %v", err, ErrValidation)
	}
	if !strings.Contains(err.Error(), "side must be one of BUY|SELL") {
		t.Fatalf("Validate() error = %q, want side hint", err.Error())
	}
}

func TestMarketOrderParamsRejectsNonPositiveQuantity(t *testing.T) {
	p := MarketOrderParams{Symbol: "BTC-USDT", Side: Sell, Quantity: decimal.Zero}
	err := p.Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want %v", err, ErrValidation)
	}
	if !strings.Contains(err.Error(), "quantity must be > 0") {
		t.Fatalf("Validate() error = %q", err.Error())
	}
}

func TestLimitOrderParamsRequiresPrice(t *testing.T) {
	p := LimitOrderParams{
		Symbol:   "ETH-USDT",
		Side:     Buy,
		Quantity: decimal.RequireFromString("1"),
	}
	err := p.Validate()
	if !errors.Is(err, ErrValidation) || !strings.Contains(err.Error(), "price") {
		t.Fatalf("Validate() error = %v, want price validation error", err)
	}
}

func TestClosePositionParamsRequiresFields(t *testing.T) {
	err := ClosePositionParams{}.Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want %v", err, ErrValidation)
	}
	if !strings.Contains(err.Error(), "symbol is required") || !strings.Contains(err.Error(), "positionSide is required") {
		t.Fatalf("Validate() error = %q, want both fields", err.Error())
	}
}

func TestStopAndTrailingParams(t *testing.T) {
	if err := (StopParams{Symbol: "BTC-USDT", StopPrice: decimal.RequireFromString("-1")}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("StopParams.Validate() error = %v, want validation error", err)
	}
	ts := TrailingStopParams{
		Symbol:          "BTC-USDT",
		ActivationPrice: decimal.RequireFromString("65000"),
		CallbackRate:    decimal.RequireFromString("0.5"),
	}
	if err := ts.Validate(); err != nil {
		t.Fatalf("TrailingStopParams.Validate() error = %v", err)
	}
}

func TestCandleParamsLimitBounds(t *testing.T) {
	if err := (CandleParams{Symbol: "BTC-USDT", Interval: "1m", Limit: 0}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want validation error", err)
	}
	if err := (CandleParams{Symbol: "BTC-USDT", Interval: "1m", Limit: 2}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestParseSideAndPositionSide(t *testing.T) {
	if s, ok := ParseSide(" buy "); !ok || s != Buy {
		t.Fatalf("ParseSide() = %q,%v, want BUY,true", s, ok)
	}
	if _, ok := ParseSide("long"); ok {
		t.Fatalf("ParseSide(long) ok = true, want false")
	}
	if s, ok := ParsePositionSide("short"); !ok || s != Short {
		t.Fatalf("ParsePositionSide() = %q,%v, want SHORT,true", s, ok)
	}
	if _, ok := ParsePositionSide("both"); ok {
		t.Fatalf("ParsePositionSide(both) ok = true, want false")
	}
}

func TestClosePositionParamsAcceptsExchangeSides(t *testing.T) {
	for _, side := range []PositionSide{Long, Short, Both} {
		if err := (ClosePositionParams{Symbol: "BTC-USDT", PositionSide: side}).Validate(); err != nil {
			t.Fatalf("Validate(%s) error = %v", side, err)
		}
	}
	err := (ClosePositionParams{Symbol: "BTC-USDT", PositionSide: "FLAT"}).Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate(FLAT) error = %v, want validation error", err)
	}
}
