package report

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fraudshield/fraudshield/internal/transaction"
)

// Handler provides HTTP endpoints for fraud report views.
type Handler struct {
	txStore transaction.Store
}

// NewHandler creates a new report handler.
func NewHandler(txStore transaction.Store) *Handler {
	return &Handler{txStore: txStore}
}

// RegisterProtectedRoutes sets up auth-required report routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/transactions/:id/report", h.GetReport)
}

// GetReport handles GET /v1/transactions/:id/report
func (h *Handler) GetReport(c *gin.Context) {
	tx, err := h.txStore.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == transaction.ErrTransactionNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Transaction not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	if tx.AccountID != c.GetString("authAccountID") {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Transaction not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": ToView(tx)})
}
