package handlers

import (
	"net/http"

	"shop-svc/middleware"
	"shop-svc/models"
	"shop-svc/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler serves the back-office order routes. Mounted behind RequireAdmin.
type AdminHandler struct {
	orders *services.OrderService
	logger *zap.Logger
}

func NewAdminHandler(orders *services.OrderService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{orders: orders, logger: logger}
}

func (h *AdminHandler) ListOrders(c *gin.Context) {
	var q models.ListOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := h.orders.AdminListOrders(c.Request.Context(), q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *AdminHandler) GetOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.AdminGetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *AdminHandler) UpdateOrderStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, previous, err := h.orders.AdminUpdateStatus(c.Request.Context(), middleware.UserID(c), id, req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	middleware.RecordStatusOverride(string(previous), string(req.Status))
	c.JSON(http.StatusOK, order)
}

func (h *AdminHandler) DeleteOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.orders.AdminDeleteOrder(c.Request.Context(), middleware.UserID(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
