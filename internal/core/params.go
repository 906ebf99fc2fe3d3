package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type SymbolParams struct {
	Symbol string `validate:"required"`
}

type ClosePositionParams struct {
	Symbol       string       `validate:"required"`
	PositionSide PositionSide `validate:"required,oneof=LONG SHORT BOTH"`
}

type CancelOrderParams struct {
	Symbol  string `validate:"required"`
	OrderID string `validate:"required"`
}

type TrailingStopParams struct {
	Symbol          string `validate:"required"`
	ActivationPrice decimal.Decimal
	CallbackRate    decimal.Decimal
}

// StopParams backs both stop-loss and take-profit; the operation picks the order type.
type StopParams struct {
	Symbol    string `validate:"required"`
	StopPrice decimal.Decimal
}

type MarketOrderParams struct {
	Symbol   string `validate:"required"`
	Side     Side   `validate:"required,oneof=BUY SELL"`
	Quantity decimal.Decimal
}

type LimitOrderParams struct {
	Symbol   string `validate:"required"`
	Side     Side   `validate:"required,oneof=BUY SELL"`
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

type CandleParams struct {
	Symbol   string `validate:"required"`
	Interval string `validate:"required"`
	Limit    int    `validate:"gte=1,lte=1440"`
}

func (p SymbolParams) Validate() error { return checkStruct(p) }

func (p ClosePositionParams) Validate() error { return checkStruct(p) }

func (p CancelOrderParams) Validate() error { return checkStruct(p) }

func (p CandleParams) Validate() error { return checkStruct(p) }

func (p TrailingStopParams) Validate() error {
	if err := checkStruct(p); err != nil {
		return err
	}
	if err := requirePositive("activationPrice", p.ActivationPrice); err != nil {
		return err
	}
	return requirePositive("callbackRate", p.CallbackRate)
}

func (p StopParams) Validate() error {
	if err := checkStruct(p); err != nil {
		return err
	}
	return requirePositive("stopPrice", p.StopPrice)
}

func (p MarketOrderParams) Validate() error {
	if err := checkStruct(p); err != nil {
		return err
	}
	return requirePositive("quantity", p.Quantity)
}

func (p LimitOrderParams) Validate() error {
	if err := checkStruct(p); err != nil {
		return err
	}
	if err := requirePositive("quantity", p.Quantity); err != nil {
		return err
	}
	return requirePositive("price", p.Price)
}

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func requirePositive(name string, v decimal.Decimal) error {
	if v.Cmp(decimal.Zero) <= 0 {
		return Invalid("%s must be > 0", name)
	}
	return nil
}

func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Invalid("%v", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := lowerFirst(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, name+" is required")
		case "oneof":
			msgs = append(msgs, name+" must be one of "+strings.ReplaceAll(fe.Param(), " ", "|"))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", name, fe.Tag(), fe.Param()))
		}
	}
	return Invalid("%s", strings.Join(msgs, "; "))
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
