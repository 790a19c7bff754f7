package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// ContextKeySession is the key for storing the decoded session in gin context
	ContextKeySession = "authSession"
	// ContextKeyAccountID is the key for storing the authenticated account id
	ContextKeyAccountID = "authAccountID"
	// ContextKeyRole is the key for storing the authenticated role
	ContextKeyRole = "authRole"
)

// Middleware extracts and validates the bearer token from the request.
// Sets the session, account id, and role in context if valid. Requests
// without a token pass through unauthenticated.
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		if raw != "" {
			sess, err := m.ValidateToken(raw)
			if err == nil {
				c.Set(ContextKeySession, sess)
				c.Set(ContextKeyAccountID, sess.AccountID)
				c.Set(ContextKeyRole, string(sess.Role))
			}
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a valid session.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextKeySession); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Session token required. Include 'Authorization: Bearer <token>' header.",
			})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects requests without a valid admin session.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := GetSession(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Session token required.",
			})
			return
		}
		if sess.Role != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Admin access required.",
			})
			return
		}
		c.Next()
	}
}

// GetSession returns the decoded session from context (if authenticated).
func GetSession(c *gin.Context) (*Session, bool) {
	v, exists := c.Get(ContextKeySession)
	if !exists {
		return nil, false
	}
	sess, ok := v.(*Session)
	return sess, ok
}

// AccountID returns the authenticated account id, or "" when anonymous.
func AccountID(c *gin.Context) string {
	return c.GetString(ContextKeyAccountID)
}

// IsAuthenticated checks if the request carries a valid session.
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get(ContextKeySession)
	return exists
}
