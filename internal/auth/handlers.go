package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fraudshield/fraudshield/internal/account"
	"github.com/fraudshield/fraudshield/internal/alerts"
	"github.com/fraudshield/fraudshield/internal/idgen"
	"github.com/fraudshield/fraudshield/internal/logging"
	"github.com/fraudshield/fraudshield/internal/validation"
)

// Handler provides HTTP endpoints for registration and sessions.
type Handler struct {
	manager        *Manager
	accounts       account.Store
	tracker        *alerts.Tracker
	openingBalance float64
}

// NewHandler creates a new auth handler.
func NewHandler(m *Manager, accounts account.Store, tracker *alerts.Tracker, openingBalance float64) *Handler {
	return &Handler{
		manager:        m,
		accounts:       accounts,
		tracker:        tracker,
		openingBalance: openingBalance,
	}
}

// RegisterRoutes sets up the public auth routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/admin/login", h.AdminLogin)
}

// RegisterProtectedRoutes sets up the auth routes that need a session.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/auth/logout", h.Logout)
	r.GET("/me", h.Me)
}

// RegisterBody is the request body for creating a customer.
type RegisterBody struct {
	OwnerName string `json:"ownerName" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Phone     string `json:"phone"`
	Password  string `json:"password" binding:"required,min=8"`
}

// Register handles POST /v1/auth/register
//
// Creates the banking account and the login in one step. The account
// opens ACTIVE with the configured opening balance.
func (h *Handler) Register(c *gin.Context) {
	var body RegisterBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "ownerName, email, and a password of at least 8 characters are required",
		})
		return
	}
	if !validation.IsValidEmail(body.Email) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "email address is not valid",
		})
		return
	}

	ctx := c.Request.Context()

	if _, err := h.manager.store.GetUserByEmail(ctx, body.Email); err == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "email_taken",
			"message": ErrUserExists.Error(),
		})
		return
	}

	now := time.Now()
	acct := &account.Account{
		ID:            idgen.WithPrefix("acc_"),
		OwnerName:     validation.SanitizeString(body.OwnerName, 200),
		Email:         body.Email,
		Phone:         validation.SanitizeString(body.Phone, 32),
		AccountNumber: account.NewNumber(),
		Balance:       h.openingBalance,
		Status:        account.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, account.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "email_taken",
				"message": err.Error(),
			})
			return
		}
		logging.L(ctx).Error("create account", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to create account",
		})
		return
	}

	user, err := h.manager.RegisterUser(ctx, body.Email, body.Password, acct.ID)
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "email_taken",
				"message": err.Error(),
			})
			return
		}
		logging.L(ctx).Error("register user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to register",
		})
		return
	}

	logging.L(ctx).Info("user registered", "userId", user.ID, "accountId", acct.ID)
	c.JSON(http.StatusCreated, gin.H{
		"user":    user,
		"account": acct,
	})
}

// LoginBody is the request body for both customer and admin login.
type LoginBody struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var body LoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "email and password are required",
		})
		return
	}

	ctx := c.Request.Context()
	token, user, err := h.manager.LoginUser(ctx, body.Email, body.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": ErrInvalidCredentials.Error(),
		})
		return
	}

	// A fresh session starts with a clean unread counter.
	h.tracker.Drop(user.AccountID)

	acct, err := h.accounts.Get(ctx, user.AccountID)
	if err != nil {
		logging.L(ctx).Error("load account on login", "error", err, "accountId", user.AccountID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load account",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"user":    user,
		"account": acct,
	})
}

// AdminLogin handles POST /v1/auth/admin/login
func (h *Handler) AdminLogin(c *gin.Context) {
	var body LoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "email and password are required",
		})
		return
	}

	token, admin, err := h.manager.LoginAdmin(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": ErrInvalidCredentials.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"admin": admin,
	})
}

// Logout handles POST /v1/auth/logout
//
// Tokens are stateless, so logout only tears down the session's
// unread-alert state.
func (h *Handler) Logout(c *gin.Context) {
	if accountID := AccountID(c); accountID != "" {
		h.tracker.Drop(accountID)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me handles GET /v1/me
func (h *Handler) Me(c *gin.Context) {
	sess, ok := GetSession(c)
	if !ok || sess.AccountID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Session token required.",
		})
		return
	}

	acct, err := h.accounts.Get(c.Request.Context(), sess.AccountID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Account not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account": acct,
		"unread":  h.tracker.Unread(sess.AccountID),
	})
}
