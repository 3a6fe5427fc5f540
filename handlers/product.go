package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shop-svc/cache"
	"shop-svc/circuitbreaker"
	"shop-svc/models"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const productColumns = "id, name, price, stock, created_at, updated_at"

type ProductHandler struct {
	db             *sql.DB
	cache          *cache.Cache
	logger         *zap.Logger
	circuitBreaker *circuitbreaker.CircuitBreaker
}

func NewProductHandler(db *sql.DB, cache *cache.Cache, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		db:             db,
		cache:          cache,
		logger:         logger,
		circuitBreaker: circuitbreaker.NewCircuitBreaker(5, 30*time.Second),
	}
}

func (h *ProductHandler) GetProducts(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "GetProducts")
	defer span.End()

	rows, err := h.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY id")
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan product", zap.Error(err))
			continue
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		respondError(c, h.logger, fmt.Errorf("list products: %w", err))
		return
	}

	span.SetAttributes(attribute.Int("products.count", len(products)))
	c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "GetProduct")
	defer span.End()

	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("product.id", id))

	var product models.Product
	hit, err := h.cache.GetProduct(ctx, id, &product)
	if err != nil {
		h.logger.Warn("Product cache read failed", zap.Int64("product_id", id), zap.Error(err))
	}
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	if hit {
		c.JSON(http.StatusOK, product)
		return
	}

	// A missing row is a healthy answer and must not trip the breaker.
	found := true
	dbErr := h.circuitBreaker.Execute(ctx, func() error {
		err := h.db.QueryRowContext(ctx,
			"SELECT "+productColumns+" FROM products WHERE id = $1", id,
		).Scan(&product.ID, &product.Name, &product.Price, &product.Stock, &product.CreatedAt, &product.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	if dbErr == nil && !found {
		dbErr = &models.ProductNotFoundError{ProductID: id}
	}
	if dbErr != nil {
		if errors.Is(dbErr, circuitbreaker.ErrCircuitOpen) {
			span.SetAttributes(attribute.String("circuit.state", "open"))
		} else {
			span.RecordError(dbErr)
		}
		respondError(c, h.logger, dbErr)
		return
	}

	if err := h.cache.SetProduct(ctx, id, product); err != nil {
		h.logger.Warn("Product cache write failed", zap.Int64("product_id", id), zap.Error(err))
	}
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "CreateProduct")
	defer span.End()

	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required and price must not be negative"})
		return
	}

	var product models.Product
	err := h.db.QueryRowContext(ctx,
		"INSERT INTO products (name, price, stock) VALUES ($1, $2, $3) RETURNING "+productColumns,
		strings.TrimSpace(req.Name), req.Price, req.Stock,
	).Scan(&product.ID, &product.Name, &product.Price, &product.Stock, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}

	span.SetAttributes(attribute.Int64("product.id", product.ID))
	h.logger.Info("Product created", zap.Int64("product_id", product.ID))
	c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "UpdateProduct")
	defer span.End()

	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("product.id", id))

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	query := "UPDATE products SET updated_at = CURRENT_TIMESTAMP"
	args := []any{}
	if req.Name != nil {
		args = append(args, strings.TrimSpace(*req.Name))
		query += ", name = $" + strconv.Itoa(len(args))
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Price must not be negative"})
			return
		}
		args = append(args, *req.Price)
		query += ", price = $" + strconv.Itoa(len(args))
	}
	if req.Stock != nil {
		args = append(args, *req.Stock)
		query += ", stock = $" + strconv.Itoa(len(args))
	}
	args = append(args, id)
	query += " WHERE id = $" + strconv.Itoa(len(args)) + " RETURNING " + productColumns

	var product models.Product
	err := h.db.QueryRowContext(ctx, query, args...).
		Scan(&product.ID, &product.Name, &product.Price, &product.Stock, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = &models.ProductNotFoundError{ProductID: id}
		} else {
			span.RecordError(err)
		}
		respondError(c, h.logger, err)
		return
	}

	if err := h.cache.DeleteProducts(ctx, id); err != nil {
		h.logger.Warn("Failed to invalidate product cache", zap.Int64("product_id", id), zap.Error(err))
	}

	h.logger.Info("Product updated", zap.Int64("product_id", id))
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "DeleteProduct")
	defer span.End()

	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("product.id", id))

	result, err := h.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			c.JSON(http.StatusConflict, gin.H{"error": "Product is referenced by existing orders"})
			return
		}
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}

	if n, _ := result.RowsAffected(); n == 0 {
		respondError(c, h.logger, &models.ProductNotFoundError{ProductID: id})
		return
	}

	if err := h.cache.DeleteProducts(ctx, id); err != nil {
		h.logger.Warn("Failed to invalidate product cache", zap.Int64("product_id", id), zap.Error(err))
	}

	h.logger.Info("Product deleted", zap.Int64("product_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}
