package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"shop-svc/cache"
	"shop-svc/database"
	"shop-svc/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type OrderService struct {
	db        *sql.DB
	publisher EventPublisher
	cache     *cache.Cache
	logger    *zap.Logger
}

func NewOrderService(db *sql.DB, publisher EventPublisher, cache *cache.Cache, logger *zap.Logger) *OrderService {
	return &OrderService{
		db:        db,
		publisher: publisher,
		cache:     cache,
		logger:    logger,
	}
}

type pricedLine struct {
	productID int64
	quantity  int
	price     decimal.Decimal
}

// CreateOrder validates stock and prices against the catalog and persists the
// order, its items and (in cart mode) the cart drain in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, req models.CreateOrderRequest) (*models.Order, error) {
	ctx, span := otel.Tracer("shop-svc").Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	address := strings.TrimSpace(req.ShippingAddress)
	if address == "" {
		return nil, fmt.Errorf("%w: shipping address is required", models.ErrInvalidInput)
	}
	fromCart := len(req.Items) == 0
	span.SetAttributes(attribute.Int64("user.id", userID), attribute.Bool("from_cart", fromCart))

	var (
		orderID int64
		total   decimal.Decimal
	)
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var (
			cartID int64
			lines  []models.OrderLine
			err    error
		)
		if fromCart {
			cartID, lines, err = loadCartLines(ctx, tx, userID)
			if err != nil {
				return err
			}
		} else {
			lines, err = mergeLines(req.Items)
			if err != nil {
				return err
			}
		}

		sortByProduct(lines)
		priced, sum, err := priceLines(ctx, tx, lines)
		if err != nil {
			return err
		}
		total = sum

		err = tx.QueryRowContext(ctx,
			"INSERT INTO orders (user_id, total_amount, status, shipping_address, note) VALUES ($1, $2, $3, $4, $5) RETURNING id",
			userID, total, models.OrderStatusPending, address, strings.TrimSpace(req.Note),
		).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, line := range priced {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO order_items (order_id, product_id, quantity, price) VALUES ($1, $2, $3, $4)",
				orderID, line.productID, line.quantity, line.price,
			); err != nil {
				return fmt.Errorf("insert order item for product %d: %w", line.productID, err)
			}
		}

		if fromCart {
			if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID); err != nil {
				return fmt.Errorf("clear cart: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("order.id", orderID))

	if req.TotalAmount != nil && !req.TotalAmount.Equal(total) {
		s.logger.Warn("Client declared total differs from computed total",
			zap.Int64("order_id", orderID),
			zap.String("declared", req.TotalAmount.String()),
			zap.String("computed", total.String()),
		)
	}

	if fromCart {
		if err := s.cache.DeleteCart(ctx, userID); err != nil {
			s.logger.Warn("Failed to evict cart cache", zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	order, err := s.loadOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, order, models.EventOrderCreated)
	s.logger.Info("Order created",
		zap.Int64("order_id", orderID),
		zap.Int64("user_id", userID),
		zap.String("total", total.String()),
		zap.Bool("from_cart", fromCart),
	)
	return order, nil
}

// loadCartLines locks the cart row so that two concurrent checkouts of the
// same cart serialize; the second one then sees an empty cart.
func loadCartLines(ctx context.Context, tx *sql.Tx, userID int64) (int64, []models.OrderLine, error) {
	var cartID int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM carts WHERE user_id = $1 FOR UPDATE", userID).Scan(&cartID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, models.ErrEmptyCart
	}
	if err != nil {
		return 0, nil, fmt.Errorf("load cart: %w", err)
	}

	rows, err := tx.QueryContext(ctx, "SELECT product_id, quantity FROM cart_items WHERE cart_id = $1 ORDER BY id", cartID)
	if err != nil {
		return 0, nil, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	var lines []models.OrderLine
	for rows.Next() {
		var l models.OrderLine
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			return 0, nil, fmt.Errorf("scan cart item: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("load cart items: %w", err)
	}
	if len(lines) == 0 {
		return 0, nil, models.ErrEmptyCart
	}
	return cartID, lines, nil
}

// mergeLines folds duplicate product lines so stock is checked against the
// combined quantity. First-seen order is kept.
func mergeLines(items []models.OrderLine) ([]models.OrderLine, error) {
	merged := make([]models.OrderLine, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, item := range items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %d quantity %d", models.ErrInvalidInput, item.ProductID, item.Quantity)
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

// sortByProduct orders lines by product id so that concurrent transactions
// lock product rows in the same order.
func sortByProduct(lines []models.OrderLine) {
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
}

// priceLines reads price and stock inside the transaction. Prices sent by the
// client never reach this point.
func priceLines(ctx context.Context, tx *sql.Tx, lines []models.OrderLine) ([]pricedLine, decimal.Decimal, error) {
	priced := make([]pricedLine, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		var (
			name  string
			price decimal.Decimal
			stock int
		)
		err := tx.QueryRowContext(ctx,
			"SELECT name, price, stock FROM products WHERE id = $1 FOR SHARE",
			line.ProductID,
		).Scan(&name, &price, &stock)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, decimal.Zero, &models.ProductNotFoundError{ProductID: line.ProductID}
		}
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("load product %d: %w", line.ProductID, err)
		}
		if stock < line.Quantity {
			return nil, decimal.Zero, &models.InsufficientStockError{
				ProductID: line.ProductID,
				Name:      name,
				Requested: line.Quantity,
				Available: stock,
			}
		}
		priced = append(priced, pricedLine{productID: line.ProductID, quantity: line.Quantity, price: price})
		total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return priced, total, nil
}

// GetOrder returns the order only to its owner.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	order, err := s.loadOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, models.ErrForbidden
	}
	return order, nil
}

func (s *OrderService) AdminGetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.loadOrder(ctx, s.db, orderID)
}

func (s *OrderService) ListOrders(ctx context.Context, userID int64, q models.ListOrdersQuery) (*models.OrderList, error) {
	return s.listOrders(ctx, &userID, q)
}

func (s *OrderService) AdminListOrders(ctx context.Context, q models.ListOrdersQuery) (*models.OrderList, error) {
	return s.listOrders(ctx, nil, q)
}

func (s *OrderService) listOrders(ctx context.Context, userID *int64, q models.ListOrdersQuery) (*models.OrderList, error) {
	q = q.Normalize()
	if q.Status != "" && !q.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, q.Status)
	}

	where := []string{}
	args := []any{}
	if userID != nil {
		args = append(args, *userID)
		where = append(where, "o.user_id = $"+strconv.Itoa(len(args)))
	}
	if q.Status != "" {
		args = append(args, q.Status)
		where = append(where, "o.status = $"+strconv.Itoa(len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders o"+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	list := &models.OrderList{
		Orders:     []models.Order{},
		Pagination: models.NewPagination(q.Page, q.Limit, total),
	}
	if total == 0 || q.Offset() >= total {
		return list, nil
	}

	pageArgs := append(append([]any{}, args...), q.Limit, q.Offset())
	query := orderSelect + clause +
		" ORDER BY o.created_at DESC, o.id DESC LIMIT $" + strconv.Itoa(len(args)+1) +
		" OFFSET $" + strconv.Itoa(len(args)+2)

	rows, err := s.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		list.Orders = append(list.Orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	if err := s.attachDetails(ctx, s.db, list.Orders); err != nil {
		return nil, err
	}
	return list, nil
}

// CancelOrder lets the owner withdraw an order that has not been paid yet.
// Stock is untouched because it is only decremented on payment success.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var (
			owner  int64
			status models.OrderStatus
		)
		err := tx.QueryRowContext(ctx, "SELECT user_id, status FROM orders WHERE id = $1 FOR UPDATE", orderID).Scan(&owner, &status)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if owner != userID {
			return models.ErrForbidden
		}
		if status != models.OrderStatusPending {
			return &models.InvalidStateError{Current: status, Action: "cancel"}
		}

		result, err := tx.ExecContext(ctx,
			"UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND status = $3",
			models.OrderStatusCancelled, orderID, models.OrderStatusPending,
		)
		if err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return &models.InvalidStateError{Current: status, Action: "cancel"}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := s.loadOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, order, models.EventOrderCancelled)
	s.logger.Info("Order cancelled by owner", zap.Int64("order_id", orderID), zap.Int64("user_id", userID))
	return order, nil
}

// AdminUpdateStatus overwrites the status without state machine checks.
// Every override is logged with the acting admin.
func (s *OrderService) AdminUpdateStatus(ctx context.Context, adminID, orderID int64, status models.OrderStatus) (*models.Order, models.OrderStatus, error) {
	if !status.Valid() {
		return nil, "", fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, status)
	}

	var previous models.OrderStatus
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, "SELECT status FROM orders WHERE id = $1 FOR UPDATE", orderID).Scan(&previous)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
			status, orderID,
		); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	s.logger.Warn("Order status overridden by admin",
		zap.Int64("order_id", orderID),
		zap.Int64("admin_id", adminID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
	)

	order, err := s.loadOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, "", err
	}
	s.publish(ctx, order, models.EventOrderStatusOverridden)
	return order, previous, nil
}

// AdminDeleteOrder removes the order with its items and payment.
func (s *OrderService) AdminDeleteOrder(ctx context.Context, adminID, orderID int64) error {
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM payments WHERE order_id = $1", orderID); err != nil {
			return fmt.Errorf("delete payment: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = $1", orderID); err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		result, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", orderID)
		if err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return models.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Warn("Order deleted by admin", zap.Int64("order_id", orderID), zap.Int64("admin_id", adminID))
	return nil
}

func (s *OrderService) publish(ctx context.Context, order *models.Order, eventType string) {
	if err := s.publisher.PublishOrderEvent(ctx, newOrderEvent(order, eventType)); err != nil {
		// The order is committed; losing the event only delays downstream consumers.
		s.logger.Error("Failed to publish order event",
			zap.String("event_type", eventType),
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)
	}
}

func newOrderEvent(order *models.Order, eventType string) models.OrderEvent {
	ids := make([]int64, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	return models.OrderEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		ProductIDs:  ids,
		EventType:   eventType,
	}
}

const orderSelect = "SELECT o.id, o.user_id, o.total_amount, o.status, o.shipping_address, o.note, o.created_at, o.updated_at, u.name, u.email FROM orders o JOIN users u ON u.id = o.user_id"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o    models.Order
		user models.UserSummary
	)
	err := row.Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &o.ShippingAddress, &o.Note,
		&o.CreatedAt, &o.UpdatedAt, &user.Name, &user.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	user.ID = o.UserID
	o.User = &user
	o.Items = []models.OrderItem{}
	return &o, nil
}

// loadOrder returns the order with items, product summaries, payment and owner.
func (s *OrderService) loadOrder(ctx context.Context, q queryer, orderID int64) (*models.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx, orderSelect+" WHERE o.id = $1", orderID))
	if err != nil {
		return nil, err
	}
	orders := []models.Order{*order}
	if err := s.attachDetails(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// attachDetails loads items and payments for all orders with one query each.
func (s *OrderService) attachDetails(ctx context.Context, q queryer, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	pos := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		pos[o.ID] = i
	}

	rows, err := q.QueryContext(ctx,
		"SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, p.name FROM order_items oi JOIN products p ON p.id = oi.product_id WHERE oi.order_id = ANY($1) ORDER BY oi.order_id, oi.id",
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	for rows.Next() {
		var (
			item    models.OrderItem
			product models.ProductSummary
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price, &product.Name); err != nil {
			rows.Close()
			return fmt.Errorf("scan order item: %w", err)
		}
		product.ID = item.ProductID
		item.Product = &product
		if i, ok := pos[item.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("load order items: %w", err)
	}
	rows.Close()

	payments, err := loadPayments(ctx, q, ids)
	if err != nil {
		return err
	}
	for _, p := range payments {
		if i, ok := pos[p.OrderID]; ok {
			orders[i].Payment = p
		}
	}
	return nil
}

const paymentSelect = "SELECT id, order_id, method, amount, status, transaction_code, paid_at, created_at, updated_at FROM payments"

func loadPayments(ctx context.Context, q queryer, orderIDs []int64) ([]*models.Payment, error) {
	rows, err := q.QueryContext(ctx, paymentSelect+" WHERE order_id = ANY($1)", pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	return payments, nil
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		p      models.Payment
		code   sql.NullString
		paidAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.OrderID, &p.Method, &p.Amount, &p.Status, &code, &paidAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	p.TransactionCode = code.String
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	return &p, nil
}
