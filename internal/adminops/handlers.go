package adminops

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fraudshield/fraudshield/internal/account"
	"github.com/fraudshield/fraudshield/internal/alerts"
	"github.com/fraudshield/fraudshield/internal/pagination"
	"github.com/fraudshield/fraudshield/internal/transaction"
)

const defaultAdminListLimit = 100

// adminListWindow caps how far back the paginated admin lists reach.
const adminListWindow = 1000

// Handler provides the operations console HTTP endpoints.
type Handler struct {
	dispatcher *Dispatcher
	accounts   account.Store
	txs        transaction.Store
}

// NewHandler creates a new admin handler.
func NewHandler(dispatcher *Dispatcher, accounts account.Store, txs transaction.Store) *Handler {
	return &Handler{dispatcher: dispatcher, accounts: accounts, txs: txs}
}

// RegisterAdminRoutes sets up admin-only routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/admin/stats", h.Stats)
	r.GET("/admin/accounts", h.ListAccounts)
	r.GET("/admin/transactions", h.ListTransactions)
	r.GET("/admin/alerts", h.ListAlerts)
	r.POST("/admin/accounts/:id/unhold", h.action(ActionUnhold))
	r.POST("/admin/accounts/:id/block", h.action(ActionBlock))
	r.POST("/admin/accounts/:id/unblock", h.action(ActionUnblock))
}

// Stats handles GET /v1/admin/stats
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.dispatcher.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to gather stats",
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListAccounts handles GET /v1/admin/accounts
//
// Cursor-paginated, newest accounts first.
func (h *Handler) ListAccounts(c *gin.Context) {
	cur, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "invalid cursor",
		})
		return
	}

	accounts, err := h.accounts.List(c.Request.Context(), adminListWindow)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list accounts",
		})
		return
	}

	limit := listLimit(c)
	key := func(a *account.Account) (time.Time, string) { return a.CreatedAt, a.ID }
	window := clampPage(pageAfter(accounts, cur, key), limit)
	page, next, more := pagination.ComputePage(window, limit, key)
	c.JSON(http.StatusOK, gin.H{
		"accounts":   page,
		"count":      len(page),
		"nextCursor": next,
		"hasMore":    more,
	})
}

// ListTransactions handles GET /v1/admin/transactions
//
// Cursor-paginated, newest transactions first.
func (h *Handler) ListTransactions(c *gin.Context) {
	cur, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "invalid cursor",
		})
		return
	}

	txs, err := h.txs.ListRecent(c.Request.Context(), adminListWindow)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list transactions",
		})
		return
	}

	limit := listLimit(c)
	key := func(tx *transaction.Transaction) (time.Time, string) { return tx.Timestamp, tx.ID }
	window := clampPage(pageAfter(txs, cur, key), limit)
	page, next, more := pagination.ComputePage(window, limit, key)
	c.JSON(http.StatusOK, gin.H{
		"transactions": page,
		"count":        len(page),
		"nextCursor":   next,
		"hasMore":      more,
	})
}

// ListAlerts handles GET /v1/admin/alerts
//
// Same derivation the customer endpoint uses, but across all accounts.
func (h *Handler) ListAlerts(c *gin.Context) {
	txs, err := h.txs.ListRecent(c.Request.Context(), listLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list alerts",
		})
		return
	}
	flagged := alerts.From(txs)
	c.JSON(http.StatusOK, gin.H{
		"alerts": flagged,
		"count":  len(flagged),
	})
}

// action builds the handler for one POST /v1/admin/accounts/:id/<action>
func (h *Handler) action(a Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		updated, err := h.dispatcher.Apply(c.Request.Context(), c.Param("id"), a)
		if err != nil {
			status, code := actionErrorStatus(err)
			c.JSON(status, gin.H{"error": code, "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"account": updated})
	}
}

func actionErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, account.ErrAccountNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, account.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, ErrUnknownAction):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// pageAfter returns the items strictly after the cursor position in a
// list already ordered newest first. A cursor that fell out of the
// window resolves by timestamp instead of dropping the page.
func pageAfter[T any](items []T, cur *pagination.Cursor, key func(T) (time.Time, string)) []T {
	if cur == nil {
		return items
	}
	for i, it := range items {
		ts, id := key(it)
		if id == cur.ID && ts.UnixNano() == cur.CreatedAt.UnixNano() {
			return items[i+1:]
		}
	}
	for i, it := range items {
		ts, _ := key(it)
		if ts.UnixNano() < cur.CreatedAt.UnixNano() {
			return items[i:]
		}
	}
	return nil
}

// clampPage trims the window to limit+1 items so ComputePage can tell
// whether another page exists.
func clampPage[T any](items []T, limit int) []T {
	if len(items) > limit+1 {
		return items[:limit+1]
	}
	return items
}

func listLimit(c *gin.Context) int {
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return defaultAdminListLimit
}
