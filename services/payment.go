package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shop-svc/models"
	"shop-svc/momo"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PaymentGateway is the provider side of a payment. *momo.Client implements it.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, orderID int64, amount decimal.Decimal, orderInfo string) (*momo.CreateResponse, error)
	VerifyCallback(cb momo.Callback) bool
}

type PaymentService struct {
	db      *sql.DB
	gateway PaymentGateway
	logger  *zap.Logger
}

func NewPaymentService(db *sql.DB, gateway PaymentGateway, logger *zap.Logger) *PaymentService {
	return &PaymentService{db: db, gateway: gateway, logger: logger}
}

// CreateMomoPayment opens a payment session for a PENDING order owned by userID.
// The payment row is created on the first attempt and reused afterwards.
func (s *PaymentService) CreateMomoPayment(ctx context.Context, userID, orderID int64) (*momo.CreateResponse, error) {
	ctx, span := otel.Tracer("shop-svc").Start(ctx, "PaymentService.CreateMomoPayment")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", orderID), attribute.Int64("user.id", userID))

	var (
		owner  int64
		status models.OrderStatus
		total  decimal.Decimal
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, status, total_amount FROM orders WHERE id = $1", orderID,
	).Scan(&owner, &status, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if owner != userID {
		return nil, models.ErrForbidden
	}
	if status != models.OrderStatusPending {
		return nil, &models.InvalidStateError{Current: status, Action: "pay"}
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO payments (order_id, method, amount, status) VALUES ($1, $2, $3, $4) ON CONFLICT (order_id) DO NOTHING",
		orderID, models.PaymentMethodMomo, total, models.PaymentStatusPending,
	); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	resp, err := s.gateway.CreatePayment(ctx, orderID, total, fmt.Sprintf("Thanh toan don hang #%d", orderID))
	if err != nil {
		span.RecordError(err)
		s.logger.Error("Failed to create MoMo payment",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return nil, err
	}
	return resp, nil
}
