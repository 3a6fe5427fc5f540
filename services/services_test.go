package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"sync"
	"testing"
	"time"

	"shop-svc/config"
	"shop-svc/models"
	"shop-svc/momo"
	"shop-svc/signature"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type fakeGateway struct {
	resp      *momo.CreateResponse
	err       error
	calls     int
	orderID   int64
	amount    decimal.Decimal
	orderInfo string
}

func (g *fakeGateway) CreatePayment(ctx context.Context, orderID int64, amount decimal.Decimal, orderInfo string) (*momo.CreateResponse, error) {
	g.calls++
	g.orderID = orderID
	g.amount = amount
	g.orderInfo = orderInfo
	return g.resp, g.err
}

func (g *fakeGateway) VerifyCallback(cb momo.Callback) bool {
	return false
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func q(s string) string {
	return regexp.QuoteMeta(s)
}

// newMomoClient returns a real client so callbacks can be signed the way the provider signs them.
func newMomoClient(t *testing.T) *momo.Client {
	t.Helper()
	cfg := config.MomoConfig{
		Endpoint:    "http://unused",
		PartnerCode: "MOMO",
		AccessKey:   "F8BBA842ECF85",
		SecretKey:   "K951B6PE1waDMi640xX08PD3vg6EkVlz",
		Timeout:     time.Second,
	}
	signer, err := signature.NewSigner(cfg.SecretKey)
	require.NoError(t, err)
	return momo.NewClient(cfg, signer, zaptest.NewLogger(t))
}

var orderColumns = []string{"id", "user_id", "total_amount", "status", "shipping_address", "note", "created_at", "updated_at", "name", "email"}

func expectHydrate(mock sqlmock.Sqlmock, orderID, userID int64, status models.OrderStatus, total string, items [][]driver.Value) {
	now := time.Now()
	mock.ExpectQuery(q("SELECT o.id, o.user_id")).
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow(orderID, userID, total, string(status), "12 Le Loi, HCMC", "", now, now, "An", "an@example.com"))

	itemRows := sqlmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "price", "name"})
	for _, item := range items {
		itemRows.AddRow(item...)
	}
	mock.ExpectQuery(q("FROM order_items oi")).WithArgs(sqlmock.AnyArg()).WillReturnRows(itemRows)
	mock.ExpectQuery(q("FROM payments WHERE order_id = ANY")).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "method", "amount", "status", "transaction_code", "paid_at", "created_at", "updated_at"}))
}

var testTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
