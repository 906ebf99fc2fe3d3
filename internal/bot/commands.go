package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"bingx-relay/internal/core"
)

// reply is one command answer. Long payloads are split over several
// messages so each stays under the Telegram size limit.
type reply struct {
	parts    []string
	markdown bool
}

func textReply(text string) reply { return reply{parts: []string{text}} }

type command func(ctx context.Context, args []string) (reply, error)

type usageError struct {
	reason string
	usage  string
}

func (e usageError) Error() string {
	if e.reason == "" {
		return e.usage
	}
	return e.reason + "\n" + e.usage
}

const helpText = `Available commands:
/balance - account balance
/positions - open positions
/orders - pending orders
/price <symbol> - last price
/close <symbol> <LONG|SHORT> - close a position
/cancel <symbol> <orderId> - cancel an order
/closeall [symbol] - close all positions
/cancelall [symbol] - cancel all orders
/trailingstop <symbol> <activationPrice> <callbackRate> - set a trailing stop
/sl <symbol> <stopPrice> - set a stop loss
/tp <symbol> <stopPrice> - set a take profit
/market <symbol> <BUY|SELL> <quantity> - place a market order
/limit <symbol> <BUY|SELL> <quantity> <price> - place a limit order
/trade <symbol> - run the price trigger
/help - this message`

func (b *Bot) commands() map[string]command {
	help := func(context.Context, []string) (reply, error) {
		return textReply(helpText), nil
	}
	return map[string]command{
		"start": help,
		"help":  help,
		"balance": func(ctx context.Context, _ []string) (reply, error) {
			return rawResult("Account Balance")(b.ex.AccountBalance(ctx))
		},
		"positions": func(ctx context.Context, _ []string) (reply, error) {
			return rawResult("Open Positions")(b.ex.OpenPositions(ctx))
		},
		"orders": func(ctx context.Context, _ []string) (reply, error) {
			return rawResult("Pending Orders")(b.ex.PendingOrders(ctx))
		},
		"price":        b.priceCommand(),
		"close":        b.closeCommand(),
		"cancel":       b.cancelCommand(),
		"closeall":     b.closeAllCommand(),
		"cancelall":    b.cancelAllCommand(),
		"trailingstop": b.trailingStopCommand(),
		"sl":           b.stopCommand("sl", core.StopMarket),
		"tp":           b.stopCommand("tp", core.TakeProfitMarket),
		"market":       b.marketCommand(),
		"limit":        b.limitCommand(),
		"trade":        b.tradeCommand(),
	}
}

func (b *Bot) priceCommand() command {
	const usage = "Usage: /price <symbol>"
	return func(ctx context.Context, args []string) (reply, error) {
		if len(args) != 1 {
			return reply{}, usageError{usage: usage}
		}
		p := core.SymbolParams{Symbol: core.NormalizeSymbol(args[0])}
		if err := p.Validate(); err != nil {
			return reply{}, invalid(err, usage)
		}
		return rawResult("Price")(b.ex.GetPrice(ctx, p))
	}
}

func (b *Bot) closeCommand() command {
	const usage = "Usage: /close <symbol> <LONG|SHORT>"
	return func(ctx context.Context, args []string) (reply, error) {
		if len(args) != 2 {
			return reply{}, usageError{usage: usage}
		}
		side, ok := core.ParsePositionSide(args[1])
		if !ok {
			return reply{}, usageError{reason: "Invalid position side " + quote(args[1]) + ".", usage: usage}
		}
		p := core.ClosePositionParams{Symbol: core.NormalizeSymbol(args[0]), PositionSide: side}
		if err := p.Validate(); err != nil {
			return reply{}, invalid(err, usage)
		}
		return rawResult("Position closed")(b.ex.ClosePosition(ctx, p))
	}
}

func (b *Bot) cancelCommand() command {
	const usage = "Usage: /cancel <symbol> <orderId>"
	return func(ctx context.Context, args []string) (reply, error) {
		if len(args) != 2 {
			return reply{}, usageError{usage: usage}
		}
		p := core.CancelOrderParams{Symbol: core.NormalizeSymbol(args[0]), OrderID: args[1]}
		if err := p.Validate(); err != nil {
			return reply{}, invalid(err, usage)
		}
		return rawResult("Order cancelled")(b.ex.CancelOrder(ctx, p))
	}
}

func (b *Bot) closeAllCommand() command {
	const usage = "Usage: /closeall [symbol]"
	return func(ctx context.Context, args []string) (reply, error) {
		symbol, err := optionalSymbol(args, usage)
		if err != nil {
			return reply{}, err
		}
		return listResult("Positions closed")(b.ex.CloseAllPositions(ctx, symbol))
	}
}

func (b *Bot) cancelAllCommand() command {
	const usage = "Usage: /cancelall [symbol]"
	return func(ctx context.Context, args []string) (reply, error) {
		symbol, err := optionalSymbol(args, usage)
		if err != nil {
			return reply{}, err
		}
		return listResult("Orders cancelled")(b.ex.CancelAllOrders(ctx, symbol))
	}
}

func (b *Bot) trailingStopCommand() command {
	const usage = "Usage: /trailingstop <symbol> <activationPrice> <callbackRate>"
	return func(ctx context.Context, args []string) (reply, error) {
		if len(args) != 3 {
			return reply{}, usageError{usage: usage}
		}
		activation, err := parseDecimal("activation price", args[1], usage)
		if err != nil {
			return reply{}, err
		}
		rate, err := parseDecimal("callback rate", args[2], usage)
		if err != nil {
			return reply{}, err
		}
		p := core.TrailingStopParams{
			Symbol:          core.NormalizeSymbol(args[0]),
			ActivationPrice: activation,
			CallbackRate:    rate,
		}
		if err := p.Validate(); err != nil {
			return reply{}, invalid(err, usage)
		}
		return rawResult("Trailing stop set")(b.ex.SetTrailingStop(ctx, p))
	}
}

func (b *Bot) stopCommand(name string, typ core.OrderType) command {
	usage := "Usage: /" + name + " <symbol> <stopPrice>"
	return func(ctx context.Context, args []string) (reply, error) {
		if len(args) != 2 {
			return reply{}, usageError{usage: usage}
		}
		stop, err := parseDecimal("stop price", args[1], usage)
		if err != nil {
			return reply{}, err
		}
		p := core.StopParams{Symbol: core.NormalizeSymbol(args[0]), StopPrice: stop}
		if err := p.Validate(); err != nil {
			return reply{}, invalid(err, usage)
		}
		if typ == core.TakeProfitMarket {
			return rawResult("Take profit set")(b.ex.SetTakeProfit(ctx, p))
		}
		return rawResult("Stop loss set")(b.ex.SetStopLoss(ctx, p))
	}
}

func (b *Bot) marketCommand() command {
	const usage = "Usage: /market <symbol> <BUY|SELL> <quantity>"
	return func(ctx context.Context, args []string) (reply, error) {
		if len(args) != 3 {
			return reply{}, usageError{usage: usage}
		}
		side, ok := core.ParseSide(args[1])
		if !ok {
			return reply{}, usageError{reason: "Invalid side " + quote(args[1]) + ".", usage: usage}
		}
		qty, err := parseDecimal("quantity", args[2], usage)
		if err != nil {
			return reply{}, err
		}
		p := core.MarketOrderParams{Symbol: core.NormalizeSymbol(args[0]), Side: side, Quantity: qty}
		if err := p.Validate(); err != nil {
			return reply{}, invalid(err, usage)
		}
		return rawResult("Market order placed")(b.ex.PlaceMarketOrder(ctx, p))
	}
}

func (b *Bot) limitCommand() command {
	const usage = "Usage: /limit <symbol> <BUY|SELL> <quantity> <price>"
	return func(ctx context.Context, args []string) (reply, error) {
		if len(args) != 4 {
			return reply{}, usageError{usage: usage}
		}
		side, ok := core.ParseSide(args[1])
		if !ok {
			return reply{}, usageError{reason: "Invalid side " + quote(args[1]) + ".", usage: usage}
		}
		qty, err := parseDecimal("quantity", args[2], usage)
		if err != nil {
			return reply{}, err
		}
		price, err := parseDecimal("price", args[3], usage)
		if err != nil {
			return reply{}, err
		}
		p := core.LimitOrderParams{Symbol: core.NormalizeSymbol(args[0]), Side: side, Quantity: qty, Price: price}
		if err := p.Validate(); err != nil {
			return reply{}, invalid(err, usage)
		}
		return rawResult("Limit order placed")(b.ex.PlaceLimitOrder(ctx, p))
	}
}

func (b *Bot) tradeCommand() command {
	const usage = "Usage: /trade <symbol>"
	return func(ctx context.Context, args []string) (reply, error) {
		if len(args) != 1 {
			return reply{}, usageError{usage: usage}
		}
		if b.trigger == nil {
			return reply{}, errors.New("price trigger is not configured")
		}
		res, err := b.trigger.Run(ctx, args[0])
		if err != nil {
			return reply{}, err
		}
		if res == nil {
			return textReply("No price movement, no order placed."), nil
		}
		return formatValue(string(res.Side)+" order placed", res)
	}
}

func optionalSymbol(args []string, usage string) (optional.Option[string], error) {
	switch len(args) {
	case 0:
		return optional.None[string](), nil
	case 1:
		return optional.Some(core.NormalizeSymbol(args[0])), nil
	default:
		return optional.None[string](), usageError{usage: usage}
	}
}

func parseDecimal(name, raw, usage string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, usageError{reason: "Invalid " + name + " " + quote(raw) + ".", usage: usage}
	}
	return d, nil
}

// invalid turns a record validation failure into a usage reply.
func invalid(err error, usage string) error {
	msg := strings.TrimPrefix(err.Error(), core.ErrValidation.Error()+": ")
	return usageError{reason: "Invalid arguments: " + msg + ".", usage: usage}
}

func quote(s string) string { return `"` + s + `"` }

func splitArgs(raw string) []string { return strings.Fields(raw) }
