package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shop-svc/cache"
	"shop-svc/database"
	"shop-svc/events"
	"shop-svc/models"

	"go.uber.org/zap"
)

type CartService struct {
	db     *sql.DB
	cache  *cache.Cache
	logger *zap.Logger
}

func NewCartService(db *sql.DB, cache *cache.Cache, logger *zap.Logger) *CartService {
	return &CartService{db: db, cache: cache, logger: logger}
}

// GetCart returns the user's cart priced at current catalog prices.
func (s *CartService) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var cached models.Cart
	hit, err := s.cache.GetCart(ctx, userID, &cached)
	if err != nil {
		s.logger.Warn("Cart cache read failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	if hit {
		return &cached, nil
	}

	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetCart(ctx, userID, cart); err != nil {
		s.logger.Warn("Cart cache write failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	return cart, nil
}

func (s *CartService) loadCart(ctx context.Context, userID int64) (*models.Cart, error) {
	cart := &models.Cart{UserID: userID, Items: []models.CartItem{}}
	err := s.db.QueryRowContext(ctx, "SELECT id FROM carts WHERE user_id = $1", userID).Scan(&cart.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return cart, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT ci.id, ci.product_id, p.name, p.price, p.stock, ci.quantity FROM cart_items ci JOIN products p ON p.id = ci.product_id WHERE ci.cart_id = $1 ORDER BY ci.id",
		cart.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Name, &item.Price, &item.Stock, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	return cart, nil
}

// AddItem adds quantity to the line for productID, creating the cart and the
// line when missing. Stock is checked at checkout, not here.
func (s *CartService) AddItem(ctx context.Context, userID int64, req models.AddCartItemRequest) (*models.Cart, error) {
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", req.ProductID).Scan(&exists); err != nil {
			return fmt.Errorf("check product: %w", err)
		}
		if !exists {
			return &models.ProductNotFoundError{ProductID: req.ProductID}
		}

		cartID, err := ensureCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)
			ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
			cartID, req.ProductID, req.Quantity,
		); err != nil {
			return fmt.Errorf("add cart item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, userID)
}

// UpdateItem sets the quantity of an existing line.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", models.ErrInvalidInput)
	}
	result, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE product_id = $2 AND cart_id = (SELECT id FROM carts WHERE user_id = $3)",
		quantity, productID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, models.ErrNotFound
	}
	return s.refresh(ctx, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64) (*models.Cart, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE product_id = $1 AND cart_id = (SELECT id FROM carts WHERE user_id = $2)",
		productID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("remove cart item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, models.ErrNotFound
	}
	return s.refresh(ctx, userID)
}

func (s *CartService) Clear(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE cart_id = (SELECT id FROM carts WHERE user_id = $1)",
		userID,
	); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	s.evict(ctx, userID)
	return nil
}

// EnsureCart creates the user's cart row if it does not exist and returns its id.
func (s *CartService) EnsureCart(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		id, err = ensureCart(ctx, tx, userID)
		return err
	})
	return id, err
}

func ensureCart(ctx context.Context, tx *sql.Tx, userID int64) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		"INSERT INTO carts (user_id) VALUES ($1) ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id RETURNING id",
		userID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure cart: %w", err)
	}
	return id, nil
}

// OnSession keeps the cart cache in step with the user's login session.
func (s *CartService) OnSession(ctx context.Context, ev events.SessionEvent) error {
	switch ev.Kind {
	case events.SessionStarted:
		if _, err := s.EnsureCart(ctx, ev.UserID); err != nil {
			return err
		}
		cart, err := s.loadCart(ctx, ev.UserID)
		if err != nil {
			return err
		}
		return s.cache.SetCart(ctx, ev.UserID, cart)
	case events.SessionEnded:
		return s.cache.DeleteCart(ctx, ev.UserID)
	}
	return nil
}

func (s *CartService) refresh(ctx context.Context, userID int64) (*models.Cart, error) {
	s.evict(ctx, userID)
	return s.loadCart(ctx, userID)
}

func (s *CartService) evict(ctx context.Context, userID int64) {
	if err := s.cache.DeleteCart(ctx, userID); err != nil {
		s.logger.Warn("Failed to evict cart cache", zap.Int64("user_id", userID), zap.Error(err))
	}
}
