package core

import "errors"

var (
	// ErrValidation marks caller input that was rejected before reaching the exchange.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientBalance indicates the exchange rejected the action due to insufficient margin.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrOrderNotFound indicates the order does not exist on exchange.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPositionNotFound indicates there is no open position to act on.
	ErrPositionNotFound = errors.New("position not found")
	// ErrOrderRejected indicates the order was rejected by exchange.
	ErrOrderRejected = errors.New("order rejected")
)
