package decision

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fraudshield/fraudshield/internal/account"
	"github.com/fraudshield/fraudshield/internal/report"
	"github.com/fraudshield/fraudshield/internal/riskeval"
	"github.com/fraudshield/fraudshield/internal/transaction"
)

// SubmitBody is the request body for submitting a transfer.
type SubmitBody struct {
	ReceiverAccount string  `json:"receiverAccount" binding:"required"`
	Amount          float64 `json:"amount" binding:"required"`
	Type            string  `json:"type" binding:"required"`
}

// Handler provides the HTTP endpoint for transaction submission.
type Handler struct {
	engine *Engine
}

// NewHandler creates a new decision handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterProtectedRoutes sets up auth-required submission routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/transactions", h.Submit)
}

// Submit handles POST /v1/transactions
func (h *Handler) Submit(c *gin.Context) {
	var body SubmitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "receiverAccount, amount, and type are required",
		})
		return
	}

	result, err := h.engine.Submit(c.Request.Context(), SubmitRequest{
		AccountID:       c.GetString("authAccountID"),
		ReceiverAccount: body.ReceiverAccount,
		Amount:          body.Amount,
		Type:            transaction.Type(body.Type),
	})
	if err != nil {
		status, code := submitErrorStatus(err)
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"transaction": result.Transaction,
		"account":     result.Account,
		"report":      report.ToView(result.Transaction),
	})
}

// submitErrorStatus maps engine errors to HTTP status and error codes.
func submitErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ErrAccountRestricted):
		return http.StatusForbidden, "account_restricted"
	case errors.Is(err, account.ErrInsufficientBalance):
		return http.StatusBadRequest, "insufficient_balance"
	case errors.Is(err, account.ErrAccountNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, riskeval.ErrEvaluationUnavailable):
		return http.StatusServiceUnavailable, "evaluation_unavailable"
	case errors.Is(err, ErrSubmissionInFlight):
		return http.StatusTooManyRequests, "submission_in_flight"
	case errors.Is(err, ErrEngineClosed):
		return http.StatusServiceUnavailable, "shutting_down"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
