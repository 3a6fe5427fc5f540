// Package services holds the order, payment and cart business logic. Every
// multi-statement write runs in a single database transaction.
package services

import (
	"context"
	"database/sql"

	"shop-svc/models"
)

// EventPublisher receives order lifecycle events after their transaction commits.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
