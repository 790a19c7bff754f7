package alerts

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fraudshield/fraudshield/internal/transaction"
)

// Handler provides HTTP endpoints for fraud alerts.
type Handler struct {
	txStore transaction.Store
	tracker *Tracker
}

// NewHandler creates a new alerts handler.
func NewHandler(txStore transaction.Store, tracker *Tracker) *Handler {
	return &Handler{txStore: txStore, tracker: tracker}
}

// RegisterProtectedRoutes sets up auth-required alert routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/alerts", h.ListAlerts)
	r.GET("/alerts/unread", h.UnreadCount)
	r.POST("/alerts/viewed", h.MarkViewed)
}

// ListAlerts handles GET /v1/alerts
func (h *Handler) ListAlerts(c *gin.Context) {
	accountID := c.GetString("authAccountID")

	limit := 100
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	txs, err := h.txStore.ListByAccount(c.Request.Context(), accountID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	alerts := From(txs)
	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
		"unread": h.tracker.Unread(accountID),
	})
}

// UnreadCount handles GET /v1/alerts/unread
func (h *Handler) UnreadCount(c *gin.Context) {
	accountID := c.GetString("authAccountID")
	c.JSON(http.StatusOK, gin.H{"unread": h.tracker.Unread(accountID)})
}

// MarkViewed handles POST /v1/alerts/viewed
func (h *Handler) MarkViewed(c *gin.Context) {
	accountID := c.GetString("authAccountID")
	h.tracker.MarkViewed(accountID)
	c.JSON(http.StatusOK, gin.H{"unread": 0})
}
