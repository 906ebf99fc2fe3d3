package alert

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bingx-relay/internal/core"
)

// Event is a relay condition worth paging the operator about.
type Event interface {
	Kind() string
	Summary() string
}

// ClockSkew is raised when the startup check finds the local clock too far
// from exchange time for signed requests to be accepted reliably.
type ClockSkew struct {
	Skew  time.Duration
	Limit time.Duration
}

func (ClockSkew) Kind() string { return "clock_skew" }

func (e ClockSkew) Summary() string {
	return fmt.Sprintf("local clock is %s off exchange time (limit %s)", e.Skew, e.Limit)
}

type BulkOp string

const (
	CloseAll  BulkOp = "close_all"
	CancelAll BulkOp = "cancel_all"
)

// BulkFailure reports a close-all or cancel-all batch that did not complete.
type BulkFailure struct {
	Op      BulkOp
	Symbol  string
	Targets int
	Err     error
}

func (e BulkFailure) Kind() string { return string(e.Op) + "_failed" }

func (e BulkFailure) Summary() string {
	noun := "positions"
	if e.Op == CancelAll {
		noun = "orders"
	}
	scope := "all symbols"
	if e.Symbol != "" {
		scope = e.Symbol
	}
	return fmt.Sprintf("%s failed on %d %s (%s): %v", e.Op, e.Targets, noun, scope, e.Err)
}

// TriggerOrder is raised after the price trigger places a market order.
type TriggerOrder struct {
	Symbol    string
	Side      core.Side
	Price     decimal.Decimal
	PrevClose decimal.Decimal
	Qty       decimal.Decimal
}

func (TriggerOrder) Kind() string { return "trigger_order" }

func (e TriggerOrder) Summary() string {
	return fmt.Sprintf("%s %s %s at %s (prev close %s)", e.Side, e.Qty, e.Symbol, e.Price, e.PrevClose)
}
