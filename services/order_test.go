package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"shop-svc/cache"
	"shop-svc/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newOrderService(t *testing.T) (*OrderService, sqlmock.Sqlmock, *recordingPublisher) {
	db, mock := newMockDB(t)
	pub := &recordingPublisher{}
	return NewOrderService(db, pub, cache.New(nil), zaptest.NewLogger(t)), mock, pub
}

func TestCreateOrder_ExplicitItems(t *testing.T) {
	svc, mock, pub := newOrderService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT name, price, stock FROM products WHERE id = $1 FOR SHARE")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "price", "stock"}).AddRow("Ao thun", "50000", 100))
	mock.ExpectQuery(q("INSERT INTO orders")).
		WithArgs(int64(7), sqlmock.AnyArg(), models.OrderStatusPending, "12 Le Loi, HCMC", "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec(q("INSERT INTO order_items")).
		WithArgs(int64(11), int64(1), 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	expectHydrate(mock, 11, 7, models.OrderStatusPending, "50000", [][]driver.Value{
		{1, 11, 1, 1, "50000", "Ao thun"},
	})

	order, err := svc.CreateOrder(context.Background(), 7, models.CreateOrderRequest{
		ShippingAddress: "12 Le Loi, HCMC",
		Items:           []models.OrderLine{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(11), order.ID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, decimal.NewFromInt(50000).Equal(order.TotalAmount))
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Ao thun", order.Items[0].Product.Name)
	assert.Nil(t, order.Payment)

	require.Len(t, pub.events, 1)
	assert.Equal(t, models.EventOrderCreated, pub.events[0].EventType)
	assert.Equal(t, []int64{1}, pub.events[0].ProductIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_InsufficientStockPersistsNothing(t *testing.T) {
	svc, mock, pub := newOrderService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT name, price, stock FROM products")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "price", "stock"}).AddRow("Ao thun", "50000", 2))
	mock.ExpectRollback()

	_, err := svc.CreateOrder(context.Background(), 7, models.CreateOrderRequest{
		ShippingAddress: "12 Le Loi, HCMC",
		Items:           []models.OrderLine{{ProductID: 1, Quantity: 2}, {ProductID: 1, Quantity: 1}},
	})

	var stockErr *models.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(1), stockErr.ProductID)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)
	assert.Empty(t, pub.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	svc, mock, _ := newOrderService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT name, price, stock FROM products")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "price", "stock"}))
	mock.ExpectRollback()

	_, err := svc.CreateOrder(context.Background(), 7, models.CreateOrderRequest{
		ShippingAddress: "addr",
		Items:           []models.OrderLine{{ProductID: 99, Quantity: 1}},
	})

	var notFound *models.ProductNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, int64(99), notFound.ProductID)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_FromCartClearsCart(t *testing.T) {
	svc, mock, _ := newOrderService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM carts WHERE user_id = $1 FOR UPDATE")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectQuery(q("SELECT product_id, quantity FROM cart_items")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity"}).AddRow(1, 2).AddRow(2, 1))
	mock.ExpectQuery(q("SELECT name, price, stock FROM products")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "price", "stock"}).AddRow("Ao thun", "50000", 10))
	mock.ExpectQuery(q("SELECT name, price, stock FROM products")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "price", "stock"}).AddRow("Mu", "25000.50", 5))
	mock.ExpectQuery(q("INSERT INTO orders")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
	mock.ExpectExec(q("INSERT INTO order_items")).
		WithArgs(int64(12), int64(1), 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(q("INSERT INTO order_items")).
		WithArgs(int64(12), int64(2), 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(q("DELETE FROM cart_items WHERE cart_id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	expectHydrate(mock, 12, 7, models.OrderStatusPending, "125000.50", [][]driver.Value{
		{1, 12, 1, 2, "50000", "Ao thun"},
		{2, 12, 2, 1, "25000.50", "Mu"},
	})

	order, err := svc.CreateOrder(context.Background(), 7, models.CreateOrderRequest{ShippingAddress: "addr"})
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("125000.50").Equal(order.TotalAmount))
	assert.Len(t, order.Items, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	svc, mock, _ := newOrderService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM carts")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectQuery(q("SELECT product_id, quantity FROM cart_items")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity"}))
	mock.ExpectRollback()

	_, err := svc.CreateOrder(context.Background(), 7, models.CreateOrderRequest{ShippingAddress: "addr"})
	assert.ErrorIs(t, err, models.ErrEmptyCart)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_NoCartRow(t *testing.T) {
	svc, mock, _ := newOrderService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM carts")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := svc.CreateOrder(context.Background(), 7, models.CreateOrderRequest{ShippingAddress: "addr"})
	assert.ErrorIs(t, err, models.ErrEmptyCart)
}

func TestCreateOrder_BlankAddress(t *testing.T) {
	svc, mock, _ := newOrderService(t)

	_, err := svc.CreateOrder(context.Background(), 7, models.CreateOrderRequest{ShippingAddress: "   "})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeLines(t *testing.T) {
	merged, err := mergeLines([]models.OrderLine{
		{ProductID: 2, Quantity: 1},
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, []models.OrderLine{{ProductID: 2, Quantity: 4}, {ProductID: 1, Quantity: 2}}, merged)

	_, err = mergeLines([]models.OrderLine{{ProductID: 1, Quantity: 0}})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestGetOrder_Ownership(t *testing.T) {
	svc, mock, _ := newOrderService(t)
	expectHydrate(mock, 11, 7, models.OrderStatusPending, "50000", nil)

	_, err := svc.GetOrder(context.Background(), 8, 11)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestGetOrder_NotFound(t *testing.T) {
	svc, mock, _ := newOrderService(t)
	mock.ExpectQuery(q("SELECT o.id, o.user_id")).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows(orderColumns))

	_, err := svc.GetOrder(context.Background(), 7, 404)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListOrders_Pagination(t *testing.T) {
	svc, mock, _ := newOrderService(t)

	mock.ExpectQuery(q("SELECT COUNT(*) FROM orders o WHERE o.user_id = $1 AND o.status = $2")).
		WithArgs(int64(7), models.OrderStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))
	mock.ExpectQuery(q("ORDER BY o.created_at DESC, o.id DESC LIMIT $3 OFFSET $4")).
		WithArgs(int64(7), models.OrderStatusPending, 10, 20).
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow(5, 7, "50000", "PENDING", "addr", "", testTime, testTime, "An", "an@example.com"))
	mock.ExpectQuery(q("FROM order_items oi")).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "price", "name"}).
			AddRow(9, 5, 1, 1, "50000", "Ao thun"))
	mock.ExpectQuery(q("FROM payments")).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "method", "amount", "status", "transaction_code", "paid_at", "created_at", "updated_at"}).
			AddRow(3, 5, "MOMO", "50000", "PENDING", nil, nil, testTime, testTime))

	list, err := svc.ListOrders(context.Background(), 7, models.ListOrdersQuery{Status: models.OrderStatusPending, Page: 3})
	require.NoError(t, err)

	assert.Equal(t, models.Pagination{Page: 3, Limit: 10, Total: 25, TotalPages: 3}, list.Pagination)
	require.Len(t, list.Orders, 1)
	require.Len(t, list.Orders[0].Items, 1)
	require.NotNil(t, list.Orders[0].Payment)
	assert.Equal(t, models.PaymentStatusPending, list.Orders[0].Payment.Status)
	assert.Nil(t, list.Orders[0].Payment.PaidAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOrders_PastLastPage(t *testing.T) {
	svc, mock, _ := newOrderService(t)

	mock.ExpectQuery(q("SELECT COUNT(*) FROM orders o WHERE o.user_id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	list, err := svc.ListOrders(context.Background(), 7, models.ListOrdersQuery{Page: 5, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, list.Orders)
	assert.Equal(t, 1, list.Pagination.TotalPages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOrders_UnknownStatus(t *testing.T) {
	svc, _, _ := newOrderService(t)

	_, err := svc.ListOrders(context.Background(), 7, models.ListOrdersQuery{Status: "LOST"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestAdminListOrders_NoOwnerFilter(t *testing.T) {
	svc, mock, _ := newOrderService(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders o$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	list, err := svc.AdminListOrders(context.Background(), models.ListOrdersQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, list.Pagination.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelOrder(t *testing.T) {
	tests := []struct {
		name    string
		owner   int64
		status  models.OrderStatus
		wantErr error
	}{
		{name: "other user", owner: 8, status: models.OrderStatusPending, wantErr: models.ErrForbidden},
		{name: "already paid", owner: 7, status: models.OrderStatusPaid},
		{name: "already cancelled", owner: 7, status: models.OrderStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock, pub := newOrderService(t)

			mock.ExpectBegin()
			mock.ExpectQuery(q("SELECT user_id, status FROM orders WHERE id = $1 FOR UPDATE")).
				WithArgs(int64(11)).
				WillReturnRows(sqlmock.NewRows([]string{"user_id", "status"}).AddRow(tt.owner, string(tt.status)))
			mock.ExpectRollback()

			_, err := svc.CancelOrder(context.Background(), 7, 11)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				var stateErr *models.InvalidStateError
				require.True(t, errors.As(err, &stateErr))
				assert.Equal(t, tt.status, stateErr.Current)
			}
			assert.Empty(t, pub.events)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCancelOrder_Pending(t *testing.T) {
	svc, mock, pub := newOrderService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT user_id, status FROM orders")).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status"}).AddRow(7, "PENDING"))
	mock.ExpectExec(q("UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND status = $3")).
		WithArgs(models.OrderStatusCancelled, int64(11), models.OrderStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectHydrate(mock, 11, 7, models.OrderStatusCancelled, "50000", nil)

	order, err := svc.CancelOrder(context.Background(), 7, 11)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	require.Len(t, pub.events, 1)
	assert.Equal(t, models.EventOrderCancelled, pub.events[0].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminUpdateStatus(t *testing.T) {
	svc, mock, pub := newOrderService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT status FROM orders WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("CANCELLED"))
	mock.ExpectExec(q("UPDATE orders SET status = $1")).
		WithArgs(models.OrderStatusShipping, int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectHydrate(mock, 11, 7, models.OrderStatusShipping, "50000", nil)

	order, previous, err := svc.AdminUpdateStatus(context.Background(), 1, 11, models.OrderStatusShipping)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, previous)
	assert.Equal(t, models.OrderStatusShipping, order.Status)
	require.Len(t, pub.events, 1)
	assert.Equal(t, models.EventOrderStatusOverridden, pub.events[0].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	svc, mock, _ := newOrderService(t)

	_, _, err := svc.AdminUpdateStatus(context.Background(), 1, 11, "REFUNDED")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminDeleteOrder(t *testing.T) {
	svc, mock, _ := newOrderService(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM payments WHERE order_id = $1")).WithArgs(int64(11)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM order_items WHERE order_id = $1")).WithArgs(int64(11)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("DELETE FROM orders WHERE id = $1")).WithArgs(int64(11)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.AdminDeleteOrder(context.Background(), 1, 11))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminDeleteOrder_NotFound(t *testing.T) {
	svc, mock, _ := newOrderService(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM payments")).WithArgs(int64(11)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("DELETE FROM order_items")).WithArgs(int64(11)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("DELETE FROM orders")).WithArgs(int64(11)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, svc.AdminDeleteOrder(context.Background(), 1, 11), models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_PublishFailureDoesNotFailOrder(t *testing.T) {
	svc, mock, pub := newOrderService(t)
	pub.err = errors.New("broker down")

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT name, price, stock FROM products")).
		WillReturnRows(sqlmock.NewRows([]string{"name", "price", "stock"}).AddRow("Ao thun", "50000", 100))
	mock.ExpectQuery(q("INSERT INTO orders")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec(q("INSERT INTO order_items")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	expectHydrate(mock, 11, 7, models.OrderStatusPending, "50000", nil)

	_, err := svc.CreateOrder(context.Background(), 7, models.CreateOrderRequest{
		ShippingAddress: "addr",
		Items:           []models.OrderLine{{ProductID: 1, Quantity: 1}},
	})
	assert.NoError(t, err)
}

func TestCreateOrder_FromCartStockShortageKeepsCart(t *testing.T) {
	svc, mock, pub := newOrderService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM carts WHERE user_id = $1 FOR UPDATE")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectQuery(q("SELECT product_id, quantity FROM cart_items")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity"}).AddRow(1, 2).AddRow(2, 6))
	mock.ExpectQuery(q("SELECT name, price, stock FROM products")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "price", "stock"}).AddRow("Ao thun", "50000", 10))
	mock.ExpectQuery(q("SELECT name, price, stock FROM products")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "price", "stock"}).AddRow("Mu", "25000", 5))
	mock.ExpectRollback()

	_, err := svc.CreateOrder(context.Background(), 7, models.CreateOrderRequest{ShippingAddress: "addr"})

	var stockErr *models.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(2), stockErr.ProductID)
	assert.Empty(t, pub.events)
	// No order insert and no cart_items delete were issued.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_LocksProductsInIDOrder(t *testing.T) {
	svc, mock, _ := newOrderService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT name, price, stock FROM products")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "price", "stock"}).AddRow("Ao thun", "50000", 10))
	mock.ExpectQuery(q("SELECT name, price, stock FROM products")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "price", "stock"}).AddRow("Mu", "25000", 10))
	mock.ExpectQuery(q("INSERT INTO orders")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(13))
	mock.ExpectExec(q("INSERT INTO order_items")).
		WithArgs(int64(13), int64(1), 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(q("INSERT INTO order_items")).
		WithArgs(int64(13), int64(2), 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()
	expectHydrate(mock, 13, 7, models.OrderStatusPending, "125000", [][]driver.Value{
		{1, 13, 1, 1, "50000", "Ao thun"},
		{2, 13, 2, 3, "25000", "Mu"},
	})

	_, err := svc.CreateOrder(context.Background(), 7, models.CreateOrderRequest{
		ShippingAddress: "addr",
		Items:           []models.OrderLine{{ProductID: 2, Quantity: 3}, {ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrder_ReturnsCapturedItemPrice(t *testing.T) {
	svc, mock, _ := newOrderService(t)

	// Product 1 sold at 50000 and now lists at 65000. Line prices come from
	// order_items only; products contributes the name.
	now := time.Now()
	mock.ExpectQuery(q("SELECT o.id, o.user_id")).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow(11, 7, "100000", string(models.OrderStatusPaid), "addr", "", now, now, "An", "an@example.com"))
	mock.ExpectQuery(q("SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, p.name FROM order_items oi JOIN products p")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "price", "name"}).
			AddRow(1, 11, 1, 2, "50000", "Ao thun"))
	mock.ExpectQuery(q("FROM payments WHERE order_id = ANY")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "method", "amount", "status", "transaction_code", "paid_at", "created_at", "updated_at"}))

	order, err := svc.GetOrder(context.Background(), 7, 11)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.True(t, decimal.NewFromInt(50000).Equal(order.Items[0].Price))
	assert.True(t, decimal.NewFromInt(100000).Equal(order.TotalAmount))
	assert.NoError(t, mock.ExpectationsWereMet())
}
