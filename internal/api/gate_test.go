package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashpoint/go-wallet-gateway/pkg/config"
)

func (h *testHarness) loginWallet(t *testing.T, accountID string) *http.Cookie {
	t.Helper()
	w := h.do(t, http.MethodPost, "/api/wallet/login", gin.H{"accountId": accountID}, nil)
	require.Equal(t, 200, w.Code, w.Body.String())
	return sessionCookie(t, w, "gateway_session")
}

func (h *testHarness) loginUser(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	w := h.do(t, http.MethodPost, "/api/register", gin.H{"username": username, "password": password}, nil)
	require.Equal(t, 201, w.Code, w.Body.String())
	w = h.do(t, http.MethodPost, "/api/login", gin.H{"username": username, "password": password}, nil)
	require.Equal(t, 200, w.Code, w.Body.String())
	return sessionCookie(t, w, "gateway_session")
}

func TestGateRejectsAnonymousRequests(t *testing.T) {
	h := newHarness(t, config.EnvDevelopment)

	w := h.do(t, http.MethodGet, "/api/admin/user", nil, nil)
	assert.Equal(t, 401, w.Code)

	w = h.do(t, http.MethodGet, "/api/admin/user", nil,
		&http.Cookie{Name: "gateway_session", Value: "stale"})
	assert.Equal(t, 401, w.Code)
}

func TestGateDevShortcutAdmitsNumericWalletAccount(t *testing.T) {
	h := newHarness(t, config.EnvDevelopment)
	cookie := h.loginWallet(t, "0.0.777")

	w := h.do(t, http.MethodGet, "/api/admin/user", nil, cookie)
	require.Equal(t, 200, w.Code, w.Body.String())

	var resp struct {
		Kind      string `json:"kind"`
		AccountID string `json:"accountId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "wallet", resp.Kind)
	assert.Equal(t, "0.0.777", resp.AccountID)
}

func TestGateDevShortcutRequiresNumericPattern(t *testing.T) {
	h := newHarness(t, config.EnvDevelopment)
	cookie := h.loginWallet(t, "alias-account")

	w := h.do(t, http.MethodGet, "/api/admin/user", nil, cookie)
	assert.Equal(t, 403, w.Code, "non-numeric accounts take the normal path")
}

func TestGateDevShortcutDisabledInProduction(t *testing.T) {
	h := newHarness(t, config.EnvProduction)
	cookie := h.loginWallet(t, "0.0.777")

	w := h.do(t, http.MethodGet, "/api/admin/user", nil, cookie)
	assert.Equal(t, 403, w.Code, "numeric wallet accounts are not admins in production")
}

func TestGateShadowAdminFlagShortCircuits(t *testing.T) {
	h := newHarness(t, config.EnvProduction)
	ctx := context.Background()

	cookie := h.loginWallet(t, "0.0.777")
	require.NoError(t, h.store.WalletAccounts().SetAdmin(ctx, "0.0.777", true))

	// The shadow is stale (written before the promotion), so this request
	// falls through to the resolver and backfills.
	w := h.do(t, http.MethodGet, "/api/admin/user", nil, cookie)
	require.Equal(t, 200, w.Code, w.Body.String())

	stored, err := h.bridge.Store().Get(ctx, cookie.Value)
	require.NoError(t, err)
	assert.True(t, stored.Shadow.User.IsAdmin, "resolver result is backfilled into the shadow")

	// Demote in the store; the shadow now short-circuits and still admits.
	require.NoError(t, h.store.WalletAccounts().SetAdmin(ctx, "0.0.777", false))
	w = h.do(t, http.MethodGet, "/api/admin/user", nil, cookie)
	assert.Equal(t, 200, w.Code, "shadow admin flag wins before the resolver runs")
}

func TestGateResolverPathForPasswordAdmin(t *testing.T) {
	h := newHarness(t, config.EnvProduction)
	ctx := context.Background()

	cookie := h.loginUser(t, "alice", "hunter22")

	w := h.do(t, http.MethodGet, "/api/admin/user", nil, cookie)
	assert.Equal(t, 403, w.Code)

	user, err := h.store.Users().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	user.IsAdmin = true
	require.NoError(t, h.store.Users().Update(ctx, user))

	w = h.do(t, http.MethodGet, "/api/admin/user", nil, cookie)
	require.Equal(t, 200, w.Code, w.Body.String())

	var resp struct {
		Kind     string `json:"kind"`
		Username string `json:"username"`
		IsAdmin  bool   `json:"isAdmin"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "id", resp.Kind)
	assert.Equal(t, "alice", resp.Username)
	assert.True(t, resp.IsAdmin)
}

func TestGateDeletedIdentityForcesReauth(t *testing.T) {
	h := newHarness(t, config.EnvProduction)
	ctx := context.Background()

	cookie := h.loginUser(t, "alice", "hunter22")

	user, err := h.store.Users().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, h.store.Users().Delete(ctx, user.ID))

	w := h.do(t, http.MethodGet, "/api/admin/user", nil, cookie)
	assert.Equal(t, 401, w.Code, "a session for a deleted identity must re-authenticate")
}

func TestGateDecisionIsPerRequest(t *testing.T) {
	h := newHarness(t, config.EnvDevelopment)
	cookie := h.loginWallet(t, "0.0.777")

	w := h.do(t, http.MethodGet, "/api/admin/user", nil, cookie)
	require.Equal(t, 200, w.Code)

	// Destroying the session revokes access immediately.
	w = h.do(t, http.MethodPost, "/api/logout", nil, cookie)
	require.Equal(t, 200, w.Code)

	w = h.do(t, http.MethodGet, "/api/admin/user", nil, cookie)
	assert.Equal(t, 401, w.Code)
}
