package handlers

import (
	"errors"
	"net/http"

	"shop-svc/middleware"
	"shop-svc/models"
	"shop-svc/momo"
	"shop-svc/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	payments   *services.PaymentService
	reconciler *services.Reconciler
	logger     *zap.Logger
}

func NewPaymentHandler(payments *services.PaymentService, reconciler *services.Reconciler, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, reconciler: reconciler, logger: logger}
}

func (h *PaymentHandler) CreateMomoPayment(c *gin.Context) {
	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.payments.CreateMomoPayment(c.Request.Context(), middleware.UserID(c), req.OrderID)
	if err != nil {
		var gwErr *models.GatewayError
		if errors.As(err, &gwErr) {
			middleware.RecordPaymentRequest("gateway_error")
		}
		respondError(c, h.logger, err)
		return
	}

	middleware.RecordPaymentRequest("created")
	c.JSON(http.StatusOK, resp)
}

// MomoCallback is the provider's IPN endpoint. It is public and trusts only
// the signature. Any 5xx makes the provider redeliver.
func (h *PaymentHandler) MomoCallback(c *gin.Context) {
	var cb momo.Callback
	if err := c.ShouldBindJSON(&cb); err != nil {
		h.logger.Warn("Malformed MoMo callback body", zap.Error(err))
		middleware.RecordPaymentCallback("malformed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	outcome, err := h.reconciler.HandleCallback(c.Request.Context(), cb)
	switch {
	case err == nil:
		middleware.RecordPaymentCallback(string(outcome))
		c.Status(http.StatusNoContent)
	case errors.Is(err, models.ErrInvalidSignature):
		middleware.RecordPaymentCallback("invalid_signature")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
	case errors.Is(err, models.ErrMalformedCallback):
		middleware.RecordPaymentCallback("malformed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
	case errors.Is(err, models.ErrNotFound):
		middleware.RecordPaymentCallback("unknown_order")
		c.JSON(http.StatusNotFound, gin.H{"error": "Invalid request"})
	default:
		middleware.RecordPaymentCallback("error")
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
