package handlers

import (
	"net/http"

	"shop-svc/middleware"
	"shop-svc/models"
	"shop-svc/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CartHandler struct {
	carts  *services.CartService
	logger *zap.Logger
}

func NewCartHandler(carts *services.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

type cartResponse struct {
	*models.Cart
	Total string `json:"total"`
}

func (h *CartHandler) writeCart(c *gin.Context, cart *models.Cart) {
	c.JSON(http.StatusOK, cartResponse{Cart: cart, Total: cart.Total().String()})
}

func (h *CartHandler) GetCart(c *gin.Context) {
	cart, err := h.carts.GetCart(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.writeCart(c, cart)
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var req models.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cart, err := h.carts.AddItem(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.writeCart(c, cart)
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	productID, ok := idParam(c, "productId")
	if !ok {
		return
	}
	var req models.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cart, err := h.carts.UpdateItem(c.Request.Context(), middleware.UserID(c), productID, req.Quantity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.writeCart(c, cart)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	productID, ok := idParam(c, "productId")
	if !ok {
		return
	}
	cart, err := h.carts.RemoveItem(c.Request.Context(), middleware.UserID(c), productID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.writeCart(c, cart)
}

func (h *CartHandler) Clear(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), middleware.UserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
