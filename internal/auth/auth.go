// Package auth provides user and admin authentication for FraudShield.
//
// Authentication model:
// - Customers register with email + password and get a JWT bearer token on login
// - Admins have a separate login and a separate role claim
// - Passwords are stored as bcrypt hashes, tokens are HS256 with a configurable TTL
//
// Tokens are stateless; an expired or missing token means the caller
// re-authenticates. Nothing here retries on the caller's behalf.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/fraudshield/fraudshield/internal/idgen"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("a user with this email already exists")
	ErrNoToken            = errors.New("bearer token required")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Role distinguishes customer and admin sessions.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User is a customer login bound to an account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AccountID    string    `json:"accountId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Admin is an operations login with no account of its own.
type Admin struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is the decoded identity of a validated token.
type Session struct {
	UserID    string
	Email     string
	AccountID string
	Role      Role
}

// Store persists users and admins.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CreateAdmin(ctx context.Context, a *Admin) error
	GetAdminByEmail(ctx context.Context, email string) (*Admin, error)
}

// claims is the JWT payload for both roles.
type claims struct {
	AccountID string `json:"accountId,omitempty"`
	Role      Role   `json:"role"`
	jwt.RegisteredClaims
}

// Manager handles registration, login, and token validation.
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
}

// NewManager creates a new auth manager.
func NewManager(store Store, secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{store: store, secret: []byte(secret), ttl: ttl}
}

// RegisterUser creates a customer login bound to an account.
func (m *Manager) RegisterUser(ctx context.Context, email, password, accountID string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := m.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:           idgen.WithPrefix("usr_"),
		Email:        email,
		PasswordHash: string(hash),
		AccountID:    accountID,
		CreatedAt:    time.Now(),
	}
	if err := m.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// LoginUser checks credentials and issues a session token.
func (m *Manager) LoginUser(ctx context.Context, email, password string) (string, *User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := m.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := m.issueToken(u.ID, u.Email, u.AccountID, RoleUser)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// LoginAdmin checks admin credentials and issues an admin session token.
func (m *Manager) LoginAdmin(ctx context.Context, email, password string) (string, *Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	a, err := m.store.GetAdminByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := m.issueToken(a.ID, a.Email, "", RoleAdmin)
	if err != nil {
		return "", nil, err
	}
	return token, a, nil
}

// EnsureAdmin creates the bootstrap admin if it doesn't exist yet.
// A blank password disables bootstrap (production deployments seed admins
// out of band).
func (m *Manager) EnsureAdmin(ctx context.Context, email, password string) error {
	if password == "" {
		return nil
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := m.store.GetAdminByEmail(ctx, email); err == nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return m.store.CreateAdmin(ctx, &Admin{
		ID:           idgen.WithPrefix("adm_"),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	})
}

// ValidateToken parses and verifies a bearer token.
func (m *Manager) ValidateToken(raw string) (*Session, error) {
	raw = strings.TrimPrefix(raw, "Bearer ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoToken
	}

	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return &Session{
		UserID:    c.Subject,
		Email:     c.ID,
		AccountID: c.AccountID,
		Role:      c.Role,
	}, nil
}

// issueToken signs a session token for the given identity.
func (m *Manager) issueToken(userID, email, accountID string, role Role) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		AccountID: accountID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Issuer:    "fraudshield",
		},
	})
	return token.SignedString(m.secret)
}
