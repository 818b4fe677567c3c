package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payment-portal/internal/service"
)

type PortalHandler struct {
	service *service.PortalService
	logger  *zap.Logger
}

func NewPortalHandler(service *service.PortalService, logger *zap.Logger) *PortalHandler {
	return &PortalHandler{service: service, logger: logger}
}

type createLinkRequest struct {
	OrderID string           `json:"order_id" binding:"required"`
	Amount  *decimal.Decimal `json:"amount"`
}

// CreateLink handles POST /create-link (authenticated, tenant-scoped)
func (h *PortalHandler) CreateLink(c *gin.Context) {
	var req createLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": err.Error()})
		return
	}

	tenantID := c.GetString("tenant_id")
	result, err := h.service.CreateLink(c.Request.Context(), tenantID, req.OrderID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"code": "order_not_found", "message": "Order not found"})
		case errors.Is(err, service.ErrPortalDisabled):
			c.JSON(http.StatusForbidden, gin.H{"code": "portal_disabled", "message": "Payment portal is not configured"})
		case errors.Is(err, service.ErrOrderAlreadyPaid):
			c.JSON(http.StatusBadRequest, gin.H{"code": "order_paid", "message": "Order is already fully paid"})
		case errors.Is(err, service.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"code": "invalid_amount", "message": "Amount must be positive"})
		default:
			h.logger.Error("failed to create payment link", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"code": "internal", "message": "Failed to create payment link"})
		}
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetStatus handles GET /status/:token (public payment page)
func (h *PortalHandler) GetStatus(c *gin.Context) {
	token := c.Param("token")

	result, err := h.service.Status(c.Request.Context(), token, time.Now())
	if err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "Payment not found"})
			return
		}
		// Never leak internals on the public page.
		h.logger.Error("failed to load payment status", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "unavailable", "message": "Please try again"})
		return
	}

	c.JSON(http.StatusOK, result)
}
