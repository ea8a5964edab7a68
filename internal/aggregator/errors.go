package aggregator

import (
	"errors"
	"fmt"
)

// ErrOrderNotFound is returned by OrderStatus for ids unknown to the
// backing store (mock ledger or live API).
var ErrOrderNotFound = errors.New("aggregator: order not found")

// ErrInvalidAmount is returned by Quote for non-positive amounts.
var ErrInvalidAmount = errors.New("aggregator: amount must be positive")

// CreationError wraps a failed order creation on the live path.
// Read paths degrade to fallback data; order creation never does.
type CreationError struct {
	Err error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("order creation failed: %v", e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}
