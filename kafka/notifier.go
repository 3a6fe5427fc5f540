package kafka

import (
	"context"
	"fmt"

	"shop-svc/middleware"
	"shop-svc/models"

	"go.uber.org/zap"
)

// notification is what a customer is told about an order event. Delivery is a
// structured log line; a mail or push gateway would consume the same record.
type notification struct {
	Type    string
	Subject string
	Body    string
}

func notificationFor(event models.OrderEvent) (notification, bool) {
	switch event.EventType {
	case models.EventOrderCreated:
		return notification{
			Type:    "order_created",
			Subject: "Order Confirmation",
			Body:    fmt.Sprintf("Your order #%d has been placed. Total: %s.", event.OrderID, event.TotalAmount.String()),
		}, true
	case models.EventOrderPaid:
		return notification{
			Type:    "payment_success",
			Subject: "Payment Successful",
			Body:    fmt.Sprintf("Payment for order #%d was successful.", event.OrderID),
		}, true
	case models.EventOrderCancelled:
		return notification{
			Type:    "order_cancelled",
			Subject: "Order Cancelled",
			Body:    fmt.Sprintf("Order #%d was cancelled. If you were charged, contact support.", event.OrderID),
		}, true
	}
	return notification{}, false
}

func notify(ctx context.Context, event models.OrderEvent, logger *zap.Logger) {
	n, ok := notificationFor(event)
	if !ok {
		return
	}
	middleware.RecordNotificationSent(n.Type)
	logger.Info("Customer notification sent",
		zap.String("trace_id", traceID(ctx)),
		zap.String("type", n.Type),
		zap.Int64("order_id", event.OrderID),
		zap.Int64("user_id", event.UserID),
		zap.String("subject", n.Subject),
		zap.String("body", n.Body),
	)
}
