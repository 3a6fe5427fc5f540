package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"shop-svc/circuitbreaker"
	"shop-svc/middleware"
	"shop-svc/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps domain errors to status codes. Anything unrecognised is
// logged and answered with a generic 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		productErr *models.ProductNotFoundError
		stockErr   *models.InsufficientStockError
		stateErr   *models.InvalidStateError
		gwErr      *models.GatewayError
	)

	switch {
	case errors.As(err, &productErr):
		c.JSON(http.StatusNotFound, gin.H{"error": productErr.Error(), "product_id": productErr.ProductID})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":      "Insufficient stock",
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{"error": stateErr.Error()})
	case errors.Is(err, models.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &gwErr):
		logger.Error("Payment gateway error",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment provider unavailable"})
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
	default:
		_ = c.Error(err)
		logger.Error("Request failed",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// idParam parses a positive int64 path parameter and answers 400 otherwise.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := parseID(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}
