package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"payment-portal/internal/gateway"
)

var webhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "webhook_requests_total",
	Help: "Provider webhook requests by provider and outcome",
}, []string{"provider", "outcome"})

// WebhookHandler dispatches provider callbacks to the matching adapter.
// These routes never carry tenant or user authentication; the adapter's
// signature or credential check is the authentication. Responses are always
// HTTP 200 with the provider's own body shape, because both providers treat
// non-2xx and malformed bodies as reasons to retry or disable the webhook.
type WebhookHandler struct {
	click  *gateway.ClickAdapter
	payme  *gateway.PaymeAdapter
	logger *zap.Logger
}

func NewWebhookHandler(click *gateway.ClickAdapter, payme *gateway.PaymeAdapter, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{click: click, payme: payme, logger: logger}
}

// Click handles POST /webhook/click
func (h *WebhookHandler) Click(c *gin.Context) {
	var req gateway.ClickRequest
	if err := c.ShouldBind(&req); err != nil {
		webhookRequests.WithLabelValues("click", "malformed").Inc()
		c.JSON(http.StatusOK, gin.H{"error": -3, "error_note": "Action not found"})
		return
	}

	resp := h.click.Handle(c.Request.Context(), &req)
	webhookRequests.WithLabelValues("click", outcome(resp.Error == 0)).Inc()
	c.JSON(http.StatusOK, resp)
}

// Payme handles POST /webhook/payme
func (h *WebhookHandler) Payme(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		webhookRequests.WithLabelValues("payme", "malformed").Inc()
		c.JSON(http.StatusOK, gin.H{"error": gin.H{"code": -32700}})
		return
	}

	resp := h.payme.Handle(c.Request.Context(), c.GetHeader("Authorization"), body)
	webhookRequests.WithLabelValues("payme", outcome(resp.Error == nil)).Inc()
	c.JSON(http.StatusOK, resp)
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
