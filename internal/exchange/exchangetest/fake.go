// Package exchangetest provides an in-memory exchange.Exchange for front-end tests.
package exchangetest

import (
	"context"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"bingx-relay/internal/core"
	"bingx-relay/internal/exchange"
)

var _ exchange.Exchange = (*Fake)(nil)

// Fake answers every operation with Reply (or the per-operation override)
// and records the calls it received. Set Err to fail every call.
type Fake struct {
	Reply     json.RawMessage
	Replies   map[string]json.RawMessage
	Err       error
	Price     decimal.Decimal
	CandleSet []core.Candle
	PanicOn   string

	mu    sync.Mutex
	calls []Call
}

type Call struct {
	Op     string
	Params any
}

func (f *Fake) record(op string, params any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: op, Params: params})
	f.mu.Unlock()
	if f.PanicOn == op {
		panic("exchangetest: " + op)
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if raw, ok := f.Replies[op]; ok {
		return raw, nil
	}
	return f.Reply, nil
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Ops lists the recorded operation names in call order.
func (f *Fake) Ops() []string {
	calls := f.Calls()
	ops := make([]string, 0, len(calls))
	for _, c := range calls {
		ops = append(ops, c.Op)
	}
	return ops
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) AccountBalance(ctx context.Context) (json.RawMessage, error) {
	return f.record("AccountBalance", nil)
}

func (f *Fake) OpenPositions(ctx context.Context) (json.RawMessage, error) {
	return f.record("OpenPositions", nil)
}

func (f *Fake) PendingOrders(ctx context.Context) (json.RawMessage, error) {
	return f.record("PendingOrders", nil)
}

func (f *Fake) ClosePosition(ctx context.Context, p core.ClosePositionParams) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return f.record("ClosePosition", p)
}

func (f *Fake) CancelOrder(ctx context.Context, p core.CancelOrderParams) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return f.record("CancelOrder", p)
}

func (f *Fake) SetTrailingStop(ctx context.Context, p core.TrailingStopParams) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return f.record("SetTrailingStop", p)
}

func (f *Fake) SetStopLoss(ctx context.Context, p core.StopParams) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return f.record("SetStopLoss", p)
}

func (f *Fake) SetTakeProfit(ctx context.Context, p core.StopParams) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return f.record("SetTakeProfit", p)
}

func (f *Fake) PlaceMarketOrder(ctx context.Context, p core.MarketOrderParams) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return f.record("PlaceMarketOrder", p)
}

func (f *Fake) PlaceLimitOrder(ctx context.Context, p core.LimitOrderParams) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return f.record("PlaceLimitOrder", p)
}

func (f *Fake) GetPrice(ctx context.Context, p core.SymbolParams) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return f.record("GetPrice", p)
}

func (f *Fake) CloseAllPositions(ctx context.Context, symbol optional.Option[string]) ([]json.RawMessage, error) {
	raw, err := f.record("CloseAllPositions", symbol)
	if err != nil {
		return nil, err
	}
	return []json.RawMessage{raw}, nil
}

func (f *Fake) CancelAllOrders(ctx context.Context, symbol optional.Option[string]) ([]json.RawMessage, error) {
	raw, err := f.record("CancelAllOrders", symbol)
	if err != nil {
		return nil, err
	}
	return []json.RawMessage{raw}, nil
}

func (f *Fake) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if _, err := f.record("LastPrice", symbol); err != nil {
		return decimal.Zero, err
	}
	return f.Price, nil
}

func (f *Fake) Candles(ctx context.Context, symbol, interval string, limit int) ([]core.Candle, error) {
	if _, err := f.record("Candles", symbol); err != nil {
		return nil, err
	}
	return f.CandleSet, nil
}
