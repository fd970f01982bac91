package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/internal/session"
)

// SessionContextKey is the gin context key the session middleware stores the
// loaded session under.
const SessionContextKey = "gateway_session"

// Session returns a middleware that reads the opaque session cookie and, when
// a live server session exists for it, attaches the session to the request
// context. A missing or stale cookie is not an error here; route handlers
// decide whether an identity is required.
func Session(store session.Store, cookieName string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(cookieName)
		if err != nil || sessionID == "" {
			c.Next()
			return
		}

		data, err := store.Get(c.Request.Context(), sessionID)
		if err != nil {
			if !errors.Is(err, session.ErrSessionNotFound) {
				logger.Warn("Session lookup failed", zap.Error(err))
			}
			c.Next()
			return
		}

		c.Set(SessionContextKey, data)
		c.Next()
	}
}

// SessionFromContext returns the session attached by the Session middleware
func SessionFromContext(c *gin.Context) (*session.Data, bool) {
	v, ok := c.Get(SessionContextKey)
	if !ok {
		return nil, false
	}
	data, ok := v.(*session.Data)
	return data, ok
}

// WriteSessionCookie sets the opaque session cookie. The cookie is httpOnly
// and SameSite=None with Secure, so browser clients on other origins can
// carry it on credentialed requests.
func WriteSessionCookie(c *gin.Context, name string, data *session.Data) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    data.ID,
		Path:     "/",
		Expires:  data.ExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// ClearSessionCookie expires the session cookie
func ClearSessionCookie(c *gin.Context, name string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}
