package strategy

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bingx-relay/internal/alert"
	"bingx-relay/internal/core"
	"bingx-relay/internal/exchange"
)

// candleWindow is the prior candle plus the one still forming.
const candleWindow = 2

type Trader interface {
	exchange.MarketData
	PlaceMarketOrder(ctx context.Context, p core.MarketOrderParams) (json.RawMessage, error)
}

type TriggerConfig struct {
	Qty      decimal.Decimal
	Interval string
	Logger   zerolog.Logger
	Alerter  alert.Alerter
}

type Result struct {
	Symbol    string          `json:"symbol"`
	Side      core.Side       `json:"side"`
	Price     decimal.Decimal `json:"price"`
	PrevClose decimal.Decimal `json:"prevClose"`
	Qty       decimal.Decimal `json:"quantity"`
	Order     json.RawMessage `json:"order"`
}

// Trigger places a fixed-size market order in the direction the last price
// moved against the prior candle close.
type Trigger struct {
	trader   Trader
	qty      decimal.Decimal
	interval string
	alerter  alert.Alerter
	log      zerolog.Logger
}

func NewTrigger(trader Trader, cfg TriggerConfig) *Trigger {
	return &Trigger{
		trader:   trader,
		qty:      cfg.Qty,
		interval: cfg.Interval,
		alerter:  cfg.Alerter,
		log:      cfg.Logger.With().Str("component", "trigger").Logger(),
	}
}

// Run returns nil, nil when the price equals the prior close.
func (t *Trigger) Run(ctx context.Context, symbol string) (*Result, error) {
	symbol = core.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, core.Invalid("symbol is required")
	}
	price, err := t.trader.LastPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	candles, err := t.trader.Candles(ctx, symbol, t.interval, candleWindow)
	if err != nil {
		return nil, err
	}
	if len(candles) < candleWindow {
		return nil, fmt.Errorf("need %d candles for %s, got %d", candleWindow, symbol, len(candles))
	}
	prev := candles[len(candles)-candleWindow]

	var side core.Side
	switch price.Cmp(prev.Close) {
	case 1:
		side = core.Buy
	case -1:
		side = core.Sell
	default:
		t.log.Debug().Str("symbol", symbol).Stringer("price", price).Msg("price unchanged, no order")
		return nil, nil
	}

	order, err := t.trader.PlaceMarketOrder(ctx, core.MarketOrderParams{
		Symbol:   symbol,
		Side:     side,
		Quantity: t.qty,
	})
	if err != nil {
		return nil, err
	}
	t.log.Info().
		Str("symbol", symbol).
		Str("side", string(side)).
		Stringer("price", price).
		Stringer("prev_close", prev.Close).
		Stringer("qty", t.qty).
		Msg("trigger order placed")
	if t.alerter != nil {
		t.alerter.Raise(alert.TriggerOrder{
			Symbol:    symbol,
			Side:      side,
			Price:     price,
			PrevClose: prev.Close,
			Qty:       t.qty,
		})
	}
	return &Result{
		Symbol:    symbol,
		Side:      side,
		Price:     price,
		PrevClose: prev.Close,
		Qty:       t.qty,
		Order:     order,
	}, nil
}
