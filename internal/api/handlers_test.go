package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/internal/service"
	"github.com/hashpoint/go-wallet-gateway/internal/session"
	"github.com/hashpoint/go-wallet-gateway/internal/storage/memory"
	"github.com/hashpoint/go-wallet-gateway/pkg/config"
)

type testHarness struct {
	router  *gin.Engine
	store   *memory.Store
	bridge  *session.Bridge
	cfg     *config.Config
	handler *Handlers
}

func newHarness(t *testing.T, environment string) *testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{Environment: environment}
	cfg.Session.CookieName = "gateway_session"
	cfg.Session.TTLDays = 7

	store := memory.NewStore()
	sessions := session.NewMemoryStore(zap.NewNop())
	bridge := session.NewBridge(sessions, session.NewResolver(store), 7*24*time.Hour, zap.NewNop())
	services := service.NewServices(store, zap.NewNop())
	handlers := NewHandlers(services, bridge, cfg, zap.NewNop())

	router := gin.New()
	handlers.RegisterRoutes(router)

	return &testHarness{
		router:  router,
		store:   store,
		bridge:  bridge,
		cfg:     cfg,
		handler: handlers,
	}
}

func (h *testHarness) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", name)
	return nil
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t, config.EnvProduction)

	w := h.do(t, http.MethodPost, "/api/register", gin.H{"username": "alice", "password": "hunter22"}, nil)
	require.Equal(t, 201, w.Code, w.Body.String())

	w = h.do(t, http.MethodPost, "/api/register", gin.H{"username": "alice", "password": "other"}, nil)
	assert.Equal(t, 409, w.Code)

	w = h.do(t, http.MethodPost, "/api/login", gin.H{"username": "alice", "password": "hunter22"}, nil)
	require.Equal(t, 200, w.Code, w.Body.String())

	cookie := sessionCookie(t, w, "gateway_session")
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)
	assert.NotEmpty(t, cookie.Value)

	var resp struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, resp.SessionID, cookie.Value)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newHarness(t, config.EnvProduction)

	w := h.do(t, http.MethodPost, "/api/register", gin.H{"username": "alice", "password": "hunter22"}, nil)
	require.Equal(t, 201, w.Code)

	w = h.do(t, http.MethodPost, "/api/login", gin.H{"username": "alice", "password": "wrong"}, nil)
	assert.Equal(t, 401, w.Code)

	w = h.do(t, http.MethodPost, "/api/login", gin.H{"username": "alice"}, nil)
	assert.Equal(t, 400, w.Code)
}

func TestWalletLoginEstablishesWalletSession(t *testing.T) {
	h := newHarness(t, config.EnvProduction)

	w := h.do(t, http.MethodPost, "/api/wallet/login", gin.H{"accountId": "0.0.777"}, nil)
	require.Equal(t, 200, w.Code, w.Body.String())

	cookie := sessionCookie(t, w, "gateway_session")
	data, err := h.bridge.Store().Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "wallet:0.0.777", data.IdentityKey)
	assert.True(t, data.Shadow.IsLoggedIn)

	// The wallet account row was created on first login.
	account, err := h.store.WalletAccounts().GetByAccountID(context.Background(), "0.0.777")
	require.NoError(t, err)
	assert.Equal(t, "0.0.777", account.AccountID)
}

func TestWalletLoginRequiresAccountID(t *testing.T) {
	h := newHarness(t, config.EnvProduction)

	w := h.do(t, http.MethodPost, "/api/wallet/login", gin.H{}, nil)
	assert.Equal(t, 400, w.Code)
}

func TestLogoutDestroysSessionAndClearsCookie(t *testing.T) {
	h := newHarness(t, config.EnvProduction)

	w := h.do(t, http.MethodPost, "/api/wallet/login", gin.H{"accountId": "0.0.777"}, nil)
	require.Equal(t, 200, w.Code)
	cookie := sessionCookie(t, w, "gateway_session")

	w = h.do(t, http.MethodPost, "/api/logout", nil, cookie)
	require.Equal(t, 200, w.Code)

	cleared := sessionCookie(t, w, "gateway_session")
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)

	_, err := h.bridge.Store().Get(context.Background(), cookie.Value)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestLoginReplacesExistingSession(t *testing.T) {
	h := newHarness(t, config.EnvProduction)

	first := h.do(t, http.MethodPost, "/api/wallet/login", gin.H{"accountId": "0.0.777"}, nil)
	require.Equal(t, 200, first.Code)
	firstCookie := sessionCookie(t, first, "gateway_session")

	second := h.do(t, http.MethodPost, "/api/wallet/login", gin.H{"accountId": "0.0.888"}, firstCookie)
	require.Equal(t, 200, second.Code)
	secondCookie := sessionCookie(t, second, "gateway_session")
	assert.NotEqual(t, firstCookie.Value, secondCookie.Value)

	_, err := h.bridge.Store().Get(context.Background(), firstCookie.Value)
	assert.ErrorIs(t, err, session.ErrSessionNotFound, "the replaced session is destroyed")
}
