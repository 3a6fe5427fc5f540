package services

import (
	"context"
	"errors"
	"testing"

	"shop-svc/models"
	"shop-svc/momo"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func expectPaymentOrder(mock sqlmock.Sqlmock, owner int64, status models.OrderStatus) {
	mock.ExpectQuery(q("SELECT user_id, status, total_amount FROM orders WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status", "total_amount"}).AddRow(owner, string(status), "50000"))
}

func TestCreateMomoPayment(t *testing.T) {
	db, mock := newMockDB(t)
	gw := &fakeGateway{resp: &momo.CreateResponse{ResultCode: 0, PayURL: "https://test-payment.momo.vn/pay/abc"}}
	svc := NewPaymentService(db, gw, zaptest.NewLogger(t))

	expectPaymentOrder(mock, 7, models.OrderStatusPending)
	mock.ExpectExec(q("INSERT INTO payments (order_id, method, amount, status) VALUES ($1, $2, $3, $4) ON CONFLICT (order_id) DO NOTHING")).
		WithArgs(int64(1), models.PaymentMethodMomo, sqlmock.AnyArg(), models.PaymentStatusPending).
		WillReturnResult(sqlmock.NewResult(1, 1))

	resp, err := svc.CreateMomoPayment(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://test-payment.momo.vn/pay/abc", resp.PayURL)

	assert.Equal(t, 1, gw.calls)
	assert.Equal(t, int64(1), gw.orderID)
	assert.True(t, decimal.NewFromInt(50000).Equal(gw.amount))
	assert.Equal(t, "Thanh toan don hang #1", gw.orderInfo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMomoPayment_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		owner  int64
		status models.OrderStatus
		check  func(t *testing.T, err error)
	}{
		{
			name:   "other user",
			owner:  8,
			status: models.OrderStatusPending,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, models.ErrForbidden) },
		},
		{
			name:   "already paid",
			owner:  7,
			status: models.OrderStatusPaid,
			check: func(t *testing.T, err error) {
				var stateErr *models.InvalidStateError
				assert.True(t, errors.As(err, &stateErr))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			gw := &fakeGateway{}
			svc := NewPaymentService(db, gw, zaptest.NewLogger(t))

			expectPaymentOrder(mock, tt.owner, tt.status)

			_, err := svc.CreateMomoPayment(context.Background(), 7, 1)
			tt.check(t, err)
			assert.Zero(t, gw.calls)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreateMomoPayment_OrderNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewPaymentService(db, &fakeGateway{}, zaptest.NewLogger(t))

	mock.ExpectQuery(q("SELECT user_id, status, total_amount FROM orders")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status", "total_amount"}))

	_, err := svc.CreateMomoPayment(context.Background(), 7, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateMomoPayment_GatewayError(t *testing.T) {
	db, mock := newMockDB(t)
	gw := &fakeGateway{err: &models.GatewayError{Op: "create", ResultCode: 1001, ProviderMessage: "insufficient funds"}}
	svc := NewPaymentService(db, gw, zaptest.NewLogger(t))

	expectPaymentOrder(mock, 7, models.OrderStatusPending)
	mock.ExpectExec(q("INSERT INTO payments")).WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := svc.CreateMomoPayment(context.Background(), 7, 1)
	var gwErr *models.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, 1001, gwErr.ResultCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}
