package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"shop-svc/database"
	"shop-svc/models"
	"shop-svc/momo"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Reconciler applies provider payment notifications to orders, payments and stock.
type Reconciler struct {
	db        *sql.DB
	gateway   PaymentGateway
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewReconciler(db *sql.DB, gateway PaymentGateway, publisher EventPublisher, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		db:        db,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

type stockLine struct {
	productID int64
	quantity  int
}

// HandleCallback settles the order named by cb. Redelivered notifications for
// an order that already left PENDING change nothing.
func (r *Reconciler) HandleCallback(ctx context.Context, cb momo.Callback) (models.CallbackOutcome, error) {
	ctx, span := otel.Tracer("shop-svc").Start(ctx, "Reconciler.HandleCallback")
	defer span.End()

	if !r.gateway.VerifyCallback(cb) {
		r.logger.Warn("Rejected MoMo callback with invalid signature",
			zap.String("partner_code", cb.PartnerCode),
			zap.String("momo_order_id", cb.OrderID),
			zap.String("request_id", cb.RequestID),
			zap.Int("result_code", cb.ResultCode),
		)
		return "", models.ErrInvalidSignature
	}

	orderID, err := momo.ParseOrderID(cb.OrderID)
	if err != nil {
		r.logger.Warn("Rejected MoMo callback with malformed order id", zap.String("momo_order_id", cb.OrderID), zap.Error(err))
		return "", fmt.Errorf("%w: %v", models.ErrMalformedCallback, err)
	}
	span.SetAttributes(attribute.Int64("order.id", orderID), attribute.Int("momo.result_code", cb.ResultCode))

	var (
		outcome models.CallbackOutcome
		event   models.OrderEvent
	)
	err = database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var (
			userID int64
			status models.OrderStatus
			total  decimal.Decimal
		)
		err := tx.QueryRowContext(ctx,
			"SELECT user_id, status, total_amount FROM orders WHERE id = $1 FOR UPDATE", orderID,
		).Scan(&userID, &status, &total)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}

		if status.Final() {
			outcome = models.CallbackAlreadyFinalized
			if cb.Succeeded() && status == models.OrderStatusCancelled {
				r.logger.Error("Payment succeeded for cancelled order, refund required",
					zap.Int64("order_id", orderID),
					zap.Int64("trans_id", cb.TransID),
					zap.Int64("amount", cb.Amount),
				)
			}
			return nil
		}

		if !decimal.NewFromInt(cb.Amount).Equal(total.Round(0)) {
			r.logger.Warn("Callback amount differs from order total",
				zap.Int64("order_id", orderID),
				zap.Int64("callback_amount", cb.Amount),
				zap.String("order_total", total.String()),
			)
		}

		event = models.OrderEvent{OrderID: orderID, UserID: userID, TotalAmount: total}
		if cb.Succeeded() {
			lines, err := r.settlePaid(ctx, tx, orderID, total, cb)
			if err != nil {
				return err
			}
			outcome = models.CallbackPaid
			event.Status = models.OrderStatusPaid
			event.EventType = models.EventOrderPaid
			for _, l := range lines {
				event.ProductIDs = append(event.ProductIDs, l.productID)
			}
			return nil
		}

		if err := r.settleFailed(ctx, tx, orderID, total); err != nil {
			return err
		}
		outcome = models.CallbackCancelled
		event.Status = models.OrderStatusCancelled
		event.EventType = models.EventOrderCancelled
		return nil
	})
	if err != nil {
		span.RecordError(err)
		if !errors.Is(err, models.ErrNotFound) {
			r.logger.Error("Failed to reconcile MoMo callback", zap.Int64("order_id", orderID), zap.Error(err))
		}
		return "", err
	}

	if outcome == models.CallbackAlreadyFinalized {
		r.logger.Info("Ignoring callback for finalized order", zap.Int64("order_id", orderID))
		return outcome, nil
	}

	if err := r.publisher.PublishOrderEvent(ctx, event); err != nil {
		r.logger.Error("Failed to publish order event",
			zap.String("event_type", event.EventType),
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
	}
	r.logger.Info("MoMo callback reconciled",
		zap.Int64("order_id", orderID),
		zap.String("outcome", string(outcome)),
		zap.Int64("trans_id", cb.TransID),
	)
	return outcome, nil
}

func (r *Reconciler) settlePaid(ctx context.Context, tx *sql.Tx, orderID int64, total decimal.Decimal, cb momo.Callback) ([]stockLine, error) {
	paidAt := r.now()
	if cb.ResponseTime > 0 {
		paidAt = time.UnixMilli(cb.ResponseTime)
	}
	if err := upsertPayment(ctx, tx, orderID, total, models.PaymentStatusSuccess, strconv.FormatInt(cb.TransID, 10), &paidAt); err != nil {
		return nil, err
	}
	if err := setOrderStatus(ctx, tx, orderID, models.OrderStatusPaid); err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, "SELECT product_id, quantity FROM order_items WHERE order_id = $1 ORDER BY product_id", orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	var lines []stockLine
	for rows.Next() {
		var l stockLine
		if err := rows.Scan(&l.productID, &l.quantity); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("load order items: %w", err)
	}
	rows.Close()

	for _, l := range lines {
		var remaining int
		err := tx.QueryRowContext(ctx,
			"UPDATE products SET stock = stock - $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 RETURNING stock",
			l.quantity, l.productID,
		).Scan(&remaining)
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Warn("Paid order references missing product", zap.Int64("order_id", orderID), zap.Int64("product_id", l.productID))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("decrement stock for product %d: %w", l.productID, err)
		}
		if remaining < 0 {
			r.logger.Warn("Product oversold",
				zap.Int64("order_id", orderID),
				zap.Int64("product_id", l.productID),
				zap.Int("stock", remaining),
			)
		}
	}
	return lines, nil
}

func (r *Reconciler) settleFailed(ctx context.Context, tx *sql.Tx, orderID int64, total decimal.Decimal) error {
	// Transaction code and paid_at stay NULL on failure even when the provider sends a transId.
	if err := upsertPayment(ctx, tx, orderID, total, models.PaymentStatusFailed, "", nil); err != nil {
		return err
	}
	return setOrderStatus(ctx, tx, orderID, models.OrderStatusCancelled)
}

func upsertPayment(ctx context.Context, tx *sql.Tx, orderID int64, amount decimal.Decimal, status models.PaymentStatus, code string, paidAt *time.Time) error {
	var (
		txCode sql.NullString
		paid   sql.NullTime
	)
	if code != "" {
		txCode = sql.NullString{String: code, Valid: true}
	}
	if paidAt != nil {
		paid = sql.NullTime{Time: *paidAt, Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payments (order_id, method, amount, status, transaction_code, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id) DO UPDATE SET
			status = EXCLUDED.status,
			transaction_code = EXCLUDED.transaction_code,
			paid_at = EXCLUDED.paid_at,
			updated_at = CURRENT_TIMESTAMP`,
		orderID, models.PaymentMethodMomo, amount, status, txCode, paid,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

func setOrderStatus(ctx context.Context, tx *sql.Tx, orderID int64, status models.OrderStatus) error {
	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		status, orderID,
	); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}
