package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fraudshield/fraudshield/internal/account"
	"github.com/fraudshield/fraudshield/internal/alerts"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- Middleware() ---

func TestMiddlewareValidTokenSetsContext(t *testing.T) {
	mgr := newTestManager(time.Hour)
	ctx := context.Background()
	if _, err := mgr.RegisterUser(ctx, "mw@example.com", "password-123", "acc_mw"); err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	token, _, err := mgr.LoginUser(ctx, "mw@example.com", "password-123")
	if err != nil {
		t.Fatalf("LoginUser failed: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/test", nil)
	c.Request.Header.Set("Authorization", "Bearer "+token)

	Middleware(mgr)(c)

	if got := AccountID(c); got != "acc_mw" {
		t.Errorf("AccountID = %q, want acc_mw", got)
	}
	sess, ok := GetSession(c)
	if !ok {
		t.Fatal("expected session in context")
	}
	if sess.Role != RoleUser {
		t.Errorf("role = %s, want USER", sess.Role)
	}
}

func TestMiddlewareInvalidTokenDoesNotAbort(t *testing.T) {
	mgr := newTestManager(time.Hour)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/test", nil)
	c.Request.Header.Set("Authorization", "Bearer garbage")

	Middleware(mgr)(c)

	if IsAuthenticated(c) {
		t.Error("garbage token must not authenticate")
	}
	if c.IsAborted() {
		t.Error("optional middleware must not abort")
	}
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/test", nil)

	RequireAuth()(c)

	if !c.IsAborted() || w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous request: aborted=%v code=%d, want abort with 401", c.IsAborted(), w.Code)
	}
}

func TestRequireAdminRejectsUserRole(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/test", nil)
	c.Set(ContextKeySession, &Session{UserID: "usr_1", Role: RoleUser, AccountID: "acc_1"})

	RequireAdmin()(c)

	if !c.IsAborted() || w.Code != http.StatusForbidden {
		t.Errorf("user session: aborted=%v code=%d, want abort with 403", c.IsAborted(), w.Code)
	}
}

// --- HTTP handlers ---

func setupAuthRouter(t *testing.T) (*gin.Engine, *Handler, *Manager, account.Store) {
	t.Helper()

	mgr := newTestManager(time.Hour)
	accounts := account.NewMemoryStore()
	tracker := alerts.NewTracker()
	h := NewHandler(mgr, accounts, tracker, 50_000)

	router := gin.New()
	v1 := router.Group("/v1")
	h.RegisterRoutes(v1)

	protected := router.Group("/v1")
	protected.Use(Middleware(mgr), RequireAuth())
	h.RegisterProtectedRoutes(protected)

	return router, h, mgr, accounts
}

func postJSON(router *gin.Engine, path string, body map[string]interface{}, token string) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterEndpointCreatesAccount(t *testing.T) {
	router, _, _, accounts := setupAuthRouter(t)

	w := postJSON(router, "/v1/auth/register", map[string]interface{}{
		"ownerName": "Eve Example",
		"email":     "eve@example.com",
		"password":  "long-enough-password",
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Account account.Account `json:"account"`
		User    User            `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Account.Status != account.StatusActive {
		t.Errorf("new account status = %s, want ACTIVE", resp.Account.Status)
	}
	if resp.Account.Balance != 50_000 {
		t.Errorf("opening balance = %v, want 50000", resp.Account.Balance)
	}
	if len(resp.Account.AccountNumber) != 10 {
		t.Errorf("account number = %q, want 10 digits", resp.Account.AccountNumber)
	}
	if resp.User.AccountID != resp.Account.ID {
		t.Errorf("user bound to %s, account is %s", resp.User.AccountID, resp.Account.ID)
	}

	stored, err := accounts.Get(context.Background(), resp.Account.ID)
	if err != nil {
		t.Fatalf("account not persisted: %v", err)
	}
	if stored.Email != "eve@example.com" {
		t.Errorf("stored email = %s", stored.Email)
	}

	// Same email again conflicts.
	w = postJSON(router, "/v1/auth/register", map[string]interface{}{
		"ownerName": "Eve Again",
		"email":     "eve@example.com",
		"password":  "another-password",
	}, "")
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", w.Code)
	}
}

func TestRegisterEndpointValidation(t *testing.T) {
	router, _, _, _ := setupAuthRouter(t)

	// Short password fails binding.
	w := postJSON(router, "/v1/auth/register", map[string]interface{}{
		"ownerName": "Shorty",
		"email":     "short@example.com",
		"password":  "short",
	}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("short password status = %d, want 400", w.Code)
	}

	// Bad email shape.
	w = postJSON(router, "/v1/auth/register", map[string]interface{}{
		"ownerName": "Bad Email",
		"email":     "not-an-email",
		"password":  "long-enough-password",
	}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad email status = %d, want 400", w.Code)
	}
}

func TestLoginLogoutFlow(t *testing.T) {
	router, h, _, _ := setupAuthRouter(t)

	w := postJSON(router, "/v1/auth/register", map[string]interface{}{
		"ownerName": "Frank",
		"email":     "frank@example.com",
		"password":  "long-enough-password",
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d", w.Code)
	}

	w = postJSON(router, "/v1/auth/login", map[string]interface{}{
		"email":    "frank@example.com",
		"password": "long-enough-password",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
	var loginResp struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if loginResp.Token == "" {
		t.Fatal("expected a token")
	}

	// Unread alert state is per session; simulate a pending alert and
	// check logout drops it.
	h.tracker.IncrementBlock(loginResp.User.AccountID)
	if h.tracker.Unread(loginResp.User.AccountID) != 1 {
		t.Fatal("seed unread failed")
	}

	w = postJSON(router, "/v1/auth/logout", nil, loginResp.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d", w.Code)
	}
	if h.tracker.Unread(loginResp.User.AccountID) != 0 {
		t.Error("logout should drop unread state")
	}

	// Wrong password.
	w = postJSON(router, "/v1/auth/login", map[string]interface{}{
		"email":    "frank@example.com",
		"password": "wrong",
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", w.Code)
	}
}

func TestMeEndpoint(t *testing.T) {
	router, _, _, _ := setupAuthRouter(t)

	w := postJSON(router, "/v1/auth/register", map[string]interface{}{
		"ownerName": "Grace",
		"email":     "grace@example.com",
		"password":  "long-enough-password",
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d", w.Code)
	}
	w = postJSON(router, "/v1/auth/login", map[string]interface{}{
		"email":    "grace@example.com",
		"password": "long-enough-password",
	}, "")
	var loginResp struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &loginResp)

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var me struct {
		Account account.Account `json:"account"`
		Unread  int             `json:"unread"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Account.Email != "grace@example.com" {
		t.Errorf("me account email = %s", me.Account.Email)
	}
	if me.Unread != 0 {
		t.Errorf("fresh session unread = %d, want 0", me.Unread)
	}

	// Anonymous is rejected.
	req = httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous me status = %d, want 401", rec.Code)
	}
}
