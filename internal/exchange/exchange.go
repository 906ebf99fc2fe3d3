package exchange

import (
	"context"

	json "github.com/goccy/go-json"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"bingx-relay/internal/core"
)

// MarketData is the read side the price trigger needs.
type MarketData interface {
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	Candles(ctx context.Context, symbol, interval string, limit int) ([]core.Candle, error)
}

// Exchange is the operation catalog shared by both front ends. Results are
// the exchange payloads, unmodified.
type Exchange interface {
	MarketData

	Name() string
	AccountBalance(ctx context.Context) (json.RawMessage, error)
	OpenPositions(ctx context.Context) (json.RawMessage, error)
	PendingOrders(ctx context.Context) (json.RawMessage, error)
	ClosePosition(ctx context.Context, p core.ClosePositionParams) (json.RawMessage, error)
	CancelOrder(ctx context.Context, p core.CancelOrderParams) (json.RawMessage, error)
	SetTrailingStop(ctx context.Context, p core.TrailingStopParams) (json.RawMessage, error)
	SetStopLoss(ctx context.Context, p core.StopParams) (json.RawMessage, error)
	SetTakeProfit(ctx context.Context, p core.StopParams) (json.RawMessage, error)
	PlaceMarketOrder(ctx context.Context, p core.MarketOrderParams) (json.RawMessage, error)
	PlaceLimitOrder(ctx context.Context, p core.LimitOrderParams) (json.RawMessage, error)
	GetPrice(ctx context.Context, p core.SymbolParams) (json.RawMessage, error)
	CloseAllPositions(ctx context.Context, symbol optional.Option[string]) ([]json.RawMessage, error)
	CancelAllOrders(ctx context.Context, symbol optional.Option[string]) ([]json.RawMessage, error)
}
