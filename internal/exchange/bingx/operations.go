package bingx

import (
	"context"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"bingx-relay/internal/core"
)

const (
	pathBalance       = "/openApi/swap/v2/user/balance"
	pathPositions     = "/openApi/swap/v2/user/positions"
	pathOpenOrders    = "/openApi/swap/v2/trade/openOrders"
	pathClosePosition = "/openApi/swap/v2/trade/closePosition"
	pathCancelOrder   = "/openApi/swap/v2/trade/cancelOrder"
	pathOrder         = "/openApi/swap/v2/trade/order"
	pathTickerPrice   = "/openApi/swap/v1/ticker/price"
	pathKlines        = "/openApi/swap/v3/quote/klines"
	pathServerTime    = "/openApi/swap/v2/server/time"
)

func (c *Client) AccountBalance(ctx context.Context) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, pathBalance, nil)
}

func (c *Client) OpenPositions(ctx context.Context) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, pathPositions, nil)
}

func (c *Client) PendingOrders(ctx context.Context) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, pathOpenOrders, nil)
}

func (c *Client) ClosePosition(ctx context.Context, p core.ClosePositionParams) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodPost, pathClosePosition, Params{
		"symbol":       p.Symbol,
		"positionSide": string(p.PositionSide),
	})
}

func (c *Client) CancelOrder(ctx context.Context, p core.CancelOrderParams) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodPost, pathCancelOrder, Params{
		"symbol":  p.Symbol,
		"orderId": p.OrderID,
	})
}

func (c *Client) SetTrailingStop(ctx context.Context, p core.TrailingStopParams) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodPost, pathOrder, Params{
		"symbol":          p.Symbol,
		"type":            string(core.TrailingStopMarket),
		"activationPrice": p.ActivationPrice.String(),
		"callbackRate":    p.CallbackRate.String(),
	})
}

func (c *Client) SetStopLoss(ctx context.Context, p core.StopParams) (json.RawMessage, error) {
	return c.placeStop(ctx, core.StopMarket, p)
}

func (c *Client) SetTakeProfit(ctx context.Context, p core.StopParams) (json.RawMessage, error) {
	return c.placeStop(ctx, core.TakeProfitMarket, p)
}

func (c *Client) placeStop(ctx context.Context, typ core.OrderType, p core.StopParams) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodPost, pathOrder, Params{
		"symbol":    p.Symbol,
		"type":      string(typ),
		"stopPrice": p.StopPrice.String(),
	})
}

func (c *Client) PlaceMarketOrder(ctx context.Context, p core.MarketOrderParams) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodPost, pathOrder, Params{
		"symbol":   p.Symbol,
		"side":     string(p.Side),
		"type":     string(core.Market),
		"quantity": p.Quantity.String(),
	})
}

func (c *Client) PlaceLimitOrder(ctx context.Context, p core.LimitOrderParams) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodPost, pathOrder, Params{
		"symbol":   p.Symbol,
		"side":     string(p.Side),
		"type":     string(core.Limit),
		"quantity": p.Quantity.String(),
		"price":    p.Price.String(),
	})
}

func (c *Client) GetPrice(ctx context.Context, p core.SymbolParams) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodGet, pathTickerPrice, Params{"symbol": p.Symbol})
}

func (c *Client) Klines(ctx context.Context, p core.CandleParams) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodGet, pathKlines, Params{
		"symbol":   p.Symbol,
		"interval": p.Interval,
		"limit":    strconv.Itoa(p.Limit),
	})
}

// LastPrice is GetPrice decoded to the ticker price.
func (c *Client) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	raw, err := c.GetPrice(ctx, core.SymbolParams{Symbol: symbol})
	if err != nil {
		return decimal.Zero, err
	}
	price, err := parsePrice(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "decode price for %s", symbol)
	}
	return price, nil
}

// Candles returns the most recent limit candles, oldest first.
func (c *Client) Candles(ctx context.Context, symbol, interval string, limit int) ([]core.Candle, error) {
	raw, err := c.Klines(ctx, core.CandleParams{Symbol: symbol, Interval: interval, Limit: limit})
	if err != nil {
		return nil, err
	}
	candles, err := parseCandles(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decode klines for %s", symbol)
	}
	return candles, nil
}
