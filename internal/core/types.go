package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

type PositionSide string

type OrderType string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

const (
	Long  PositionSide = "LONG"
	Short PositionSide = "SHORT"
	// Both is what the exchange reports for one-way mode positions.
	Both PositionSide = "BOTH"
)

const (
	Limit              OrderType = "LIMIT"
	Market             OrderType = "MARKET"
	StopMarket         OrderType = "STOP_MARKET"
	TakeProfitMarket   OrderType = "TAKE_PROFIT_MARKET"
	TrailingStopMarket OrderType = "TRAILING_STOP_MARKET"
)

func ParseSide(v string) (Side, bool) {
	switch s := Side(strings.ToUpper(strings.TrimSpace(v))); s {
	case Buy, Sell:
		return s, true
	}
	return "", false
}

func ParsePositionSide(v string) (PositionSide, bool) {
	switch s := PositionSide(strings.ToUpper(strings.TrimSpace(v))); s {
	case Long, Short:
		return s, true
	}
	return "", false
}

func NormalizeSymbol(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

// PositionRef holds the position fields read by bulk close; everything else
// stays in the raw payload.
type PositionRef struct {
	Symbol       string
	PositionSide PositionSide
}

type OrderRef struct {
	Symbol  string
	OrderID string
}

type Candle struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}
