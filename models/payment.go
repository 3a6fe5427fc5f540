package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

type PaymentMethod string

const (
	PaymentMethodMomo PaymentMethod = "MOMO"
)

// Payment is created lazily on the first payment attempt and mutated only by the reconciler.
type Payment struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	Method          PaymentMethod   `json:"method"`
	Amount          decimal.Decimal `json:"amount"`
	Status          PaymentStatus   `json:"status"`
	TransactionCode string          `json:"transaction_code,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type CreatePaymentRequest struct {
	OrderID int64 `json:"orderId" binding:"required,gt=0"`
}

// CallbackOutcome describes what the reconciler did with a provider notification.
type CallbackOutcome string

const (
	CallbackPaid             CallbackOutcome = "paid"
	CallbackCancelled        CallbackOutcome = "cancelled"
	CallbackAlreadyFinalized CallbackOutcome = "already_finalized"
)
