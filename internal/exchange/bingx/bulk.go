package bingx

import (
	"context"

	json "github.com/goccy/go-json"
	"github.com/moznion/go-optional"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"

	"bingx-relay/internal/alert"
	"bingx-relay/internal/core"
)

// CloseAllPositions closes every open position, or only those on symbol when
// it is set. The calls run concurrently and the first failure fails the batch.
// One-way mode positions are closed with positionSide BOTH as reported.
func (c *Client) CloseAllPositions(ctx context.Context, symbol optional.Option[string]) ([]json.RawMessage, error) {
	raw, err := c.OpenPositions(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := decodeList(raw, "positions")
	if err != nil {
		return nil, errors.Wrap(err, "decode positions")
	}
	filter := symbolFilter(symbol)
	refs := make([]core.PositionRef, 0, len(rows))
	for _, row := range rows {
		var pos positionRow
		if err := json.Unmarshal(row, &pos); err != nil {
			return nil, errors.Wrap(err, "decode position")
		}
		if filter != "" && pos.Symbol != filter {
			continue
		}
		refs = append(refs, core.PositionRef{Symbol: pos.Symbol, PositionSide: core.PositionSide(pos.PositionSide)})
	}

	out, err := fanOut(ctx, refs, func(ctx context.Context, ref core.PositionRef) (json.RawMessage, error) {
		return c.ClosePosition(ctx, core.ClosePositionParams{Symbol: ref.Symbol, PositionSide: ref.PositionSide})
	})
	if err != nil {
		c.raise(alert.BulkFailure{Op: alert.CloseAll, Symbol: filter, Targets: len(refs), Err: err})
		return nil, err
	}
	return out, nil
}

// CancelAllOrders is CloseAllPositions for pending orders.
func (c *Client) CancelAllOrders(ctx context.Context, symbol optional.Option[string]) ([]json.RawMessage, error) {
	raw, err := c.PendingOrders(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := decodeList(raw, "orders")
	if err != nil {
		return nil, errors.Wrap(err, "decode orders")
	}
	filter := symbolFilter(symbol)
	refs := make([]core.OrderRef, 0, len(rows))
	for _, row := range rows {
		var ord orderRow
		if err := json.Unmarshal(row, &ord); err != nil {
			return nil, errors.Wrap(err, "decode order")
		}
		if filter != "" && ord.Symbol != filter {
			continue
		}
		refs = append(refs, core.OrderRef{Symbol: ord.Symbol, OrderID: scalar(ord.OrderID)})
	}

	out, err := fanOut(ctx, refs, func(ctx context.Context, ref core.OrderRef) (json.RawMessage, error) {
		return c.CancelOrder(ctx, core.CancelOrderParams{Symbol: ref.Symbol, OrderID: ref.OrderID})
	})
	if err != nil {
		c.raise(alert.BulkFailure{Op: alert.CancelAll, Symbol: filter, Targets: len(refs), Err: err})
		return nil, err
	}
	return out, nil
}

func symbolFilter(symbol optional.Option[string]) string {
	if symbol.IsNone() {
		return ""
	}
	return symbol.Unwrap()
}

// fanOut runs fn for every item at once and waits for all of them to settle.
// A failing call does not cancel its siblings. Results come back in
// completion order.
func fanOut[T any](ctx context.Context, items []T, fn func(context.Context, T) (json.RawMessage, error)) ([]json.RawMessage, error) {
	if len(items) == 0 {
		return []json.RawMessage{}, nil
	}
	p := pool.NewWithResults[json.RawMessage]().
		WithContext(ctx).
		WithFirstError()
	for _, item := range items {
		p.Go(func(ctx context.Context) (json.RawMessage, error) {
			return fn(ctx, item)
		})
	}
	return p.Wait()
}
