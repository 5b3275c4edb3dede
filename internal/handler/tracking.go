package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Djtrixuk/moltydex-sub000/internal/model"
	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/apperrors"
	"github.com/Djtrixuk/moltydex-sub000/internal/service"
)

type TrackingHandler struct {
	svc      *service.TrackingService
	webhooks *service.WebhookRegistry
}

func NewTrackingHandler(svc *service.TrackingService, webhooks *service.WebhookRegistry) *TrackingHandler {
	return &TrackingHandler{svc: svc, webhooks: webhooks}
}

// WalletSwaps handles GET /v1/wallets/:wallet/swaps
func (h *TrackingHandler) WalletSwaps(c *gin.Context) {
	wallet := c.Param("wallet")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	swaps := h.svc.WalletSwaps(c.Request.Context(), wallet, limit)
	c.JSON(http.StatusOK, gin.H{"wallet": wallet, "swaps": swaps})
}

// RecentSwaps handles GET /v1/swaps/recent
func (h *TrackingHandler) RecentSwaps(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	c.JSON(http.StatusOK, gin.H{"swaps": h.svc.RecentSwaps(c.Request.Context(), limit)})
}

// WalletPoints handles GET /v1/wallets/:wallet/points
func (h *TrackingHandler) WalletPoints(c *gin.Context) {
	wallet := c.Param("wallet")
	c.JSON(http.StatusOK, h.svc.Points(c.Request.Context(), wallet))
}

// Leaderboard handles GET /v1/leaderboard
func (h *TrackingHandler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	c.JSON(http.StatusOK, gin.H{"leaderboard": h.svc.Leaderboard(c.Request.Context(), limit)})
}

// Stats handles GET /v1/stats
func (h *TrackingHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats(c.Request.Context()))
}

// RegisterWebhook handles POST /v1/webhooks
func (h *TrackingHandler) RegisterWebhook(c *gin.Context) {
	var req model.WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidation(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, h.webhooks.Register(req.URL))
}

// ListWebhooks handles GET /v1/webhooks
func (h *TrackingHandler) ListWebhooks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"webhooks": h.webhooks.List()})
}

// DeleteWebhook handles DELETE /v1/webhooks/:id
func (h *TrackingHandler) DeleteWebhook(c *gin.Context) {
	if !h.webhooks.Delete(c.Param("id")) {
		c.Error(apperrors.New("WEBHOOK_NOT_FOUND", apperrors.CatNotFound, "unknown webhook id", nil))
		return
	}
	c.Status(http.StatusNoContent)
}
