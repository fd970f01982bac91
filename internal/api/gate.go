package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/internal/domain"
	"github.com/hashpoint/go-wallet-gateway/internal/session"
	"github.com/hashpoint/go-wallet-gateway/pkg/middleware"
)

// adminShadowKey is where the gate leaves the identity it admitted.
const adminShadowKey = "admin_shadow"

// RequireAdmin is the admin authorization gate. The checks run in a fixed
// order and the first conclusive one wins:
//
//  1. Development shortcut: outside production, a session whose wallet
//     account matches the ledger-native numeric pattern is admitted without
//     touching the identity stores.
//  2. The session's shadow record already marks the user admin.
//  3. The serialized identity is resolved against the identity stores; on
//     success the shadow record is backfilled so the next request stops at
//     step 2.
//
// No identity at all yields 401, a resolved non-admin identity yields 403.
// The decision is derived per request and never cached beyond the shadow
// backfill.
func (h *Handlers) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		data, ok := middleware.SessionFromContext(c)
		if !ok {
			c.JSON(401, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		shadow := data.Shadow.User

		// Step 1: development-mode wallet shortcut.
		if !h.cfg.IsProduction() && shadow != nil &&
			shadow.AccountID != "" && domain.IsNumericAccountID(shadow.AccountID) {
			h.logger.Debug("Admin granted via development wallet shortcut",
				zap.String("account_id", shadow.AccountID))
			c.Set(adminShadowKey, shadow)
			c.Next()
			return
		}

		// Step 2: shadow record already carries the admin flag.
		if data.Shadow.IsLoggedIn && shadow != nil && shadow.IsAdmin {
			c.Set(adminShadowKey, shadow)
			c.Next()
			return
		}

		// Step 3: resolve the serialized identity and backfill the shadow.
		resolved, err := h.bridge.Resolve(c.Request.Context(), data)
		if err != nil {
			if errors.Is(err, session.ErrUserNotFound) {
				c.JSON(401, gin.H{"error": "Session identity no longer exists"})
				c.Abort()
				return
			}
			h.logger.Error("Identity resolution failed", zap.Error(err))
			c.JSON(500, gin.H{"error": "Failed to resolve identity"})
			c.Abort()
			return
		}

		if err := h.bridge.Backfill(c.Request.Context(), data, resolved); err != nil {
			// Authorization still proceeds from the resolved identity.
			h.logger.Warn("Shadow backfill failed", zap.Error(err))
		}

		if !resolved.IsAdmin() {
			c.JSON(403, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}

		c.Set(adminShadowKey, data.Shadow.User)
		c.Next()
	}
}

// adminShadowFromContext returns the identity the gate admitted
func adminShadowFromContext(c *gin.Context) (*session.ShadowUser, bool) {
	v, ok := c.Get(adminShadowKey)
	if !ok {
		return nil, false
	}
	shadow, ok := v.(*session.ShadowUser)
	return shadow, ok
}
