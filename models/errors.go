package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrMalformedCallback = errors.New("malformed callback payload")
	ErrInvalidInput      = errors.New("invalid input")
)

type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type InsufficientStockError struct {
	ProductID int64
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): requested %d, available %d",
		e.ProductID, e.Name, e.Requested, e.Available)
}

// InvalidStateError is returned when a transition is not allowed from Current.
type InvalidStateError struct {
	Current OrderStatus
	Action  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s order in status %s", e.Action, e.Current)
}

// GatewayError wraps any failure talking to the payment provider. Err and
// ProviderMessage are for logs only.
type GatewayError struct {
	Op              string
	ResultCode      int
	ProviderMessage string
	Err             error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("payment gateway %s: result code %d: %s", e.Op, e.ResultCode, e.ProviderMessage)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
