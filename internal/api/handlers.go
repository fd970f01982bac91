// Package api contains the HTTP handlers and the authorization gate for the
// gateway's public API.
package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/internal/domain"
	"github.com/hashpoint/go-wallet-gateway/internal/service"
	"github.com/hashpoint/go-wallet-gateway/internal/session"
	"github.com/hashpoint/go-wallet-gateway/pkg/config"
	"github.com/hashpoint/go-wallet-gateway/pkg/middleware"
)

// Handlers aggregates all HTTP handlers
type Handlers struct {
	services *service.Services
	bridge   *session.Bridge
	cfg      *config.Config
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services *service.Services, bridge *session.Bridge, cfg *config.Config, logger *zap.Logger) *Handlers {
	return &Handlers{
		services: services,
		bridge:   bridge,
		cfg:      cfg,
		logger:   logger.Named("handlers"),
	}
}

// RegisterRoutes adds the gateway's public routes to the router
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	apiGroup := router.Group("/api")
	apiGroup.Use(middleware.Session(h.bridge.Store(), h.cfg.Session.CookieName, h.logger))
	{
		apiGroup.POST("/register", h.Register)
		apiGroup.POST("/login", h.Login)
		apiGroup.POST("/wallet/login", h.WalletLogin)
		apiGroup.POST("/logout", h.Logout)

		admin := apiGroup.Group("/admin")
		admin.Use(h.RequireAdmin())
		{
			admin.GET("/user", h.AdminUser)
		}
	}
}

// Register handles password user registration
func (h *Handlers) Register(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Username and password are required"})
		return
	}

	user, err := h.services.Auth.Register(c.Request.Context(), req.Username, req.Password, false)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			c.JSON(409, gin.H{"error": "Username already taken"})
			return
		}
		h.logger.Error("Registration failed", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to register user"})
		return
	}

	c.JSON(201, gin.H{"id": user.ID, "username": user.Username})
}

// Login handles password login and establishes a session
func (h *Handlers) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Username and password are required"})
		return
	}

	user, err := h.services.Auth.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(401, gin.H{"error": "Invalid username or password"})
			return
		}
		h.logger.Error("Login failed", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to log in"})
		return
	}

	h.establishSession(c, domain.PasswordIdentity(user.ID))
}

// WalletLogin writes a connected wallet account into the session
func (h *Handlers) WalletLogin(c *gin.Context) {
	var req domain.WalletLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "accountId is required"})
		return
	}

	if _, err := h.services.Auth.WalletLogin(c.Request.Context(), req.AccountID); err != nil {
		h.logger.Error("Wallet login failed", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to log in"})
		return
	}

	h.establishSession(c, domain.WalletIdentity(req.AccountID))
}

// Logout destroys the session and clears the cookie
func (h *Handlers) Logout(c *gin.Context) {
	if data, ok := middleware.SessionFromContext(c); ok {
		if err := h.bridge.Logout(c.Request.Context(), data.ID); err != nil {
			h.logger.Warn("Session delete failed", zap.Error(err))
		}
	}
	middleware.ClearSessionCookie(c, h.cfg.Session.CookieName)
	c.JSON(200, gin.H{"status": "logged out"})
}

// AdminUser returns the identity behind an admin session. The RequireAdmin
// gate has already run; this handler only reads what the gate attached.
func (h *Handlers) AdminUser(c *gin.Context) {
	shadow, ok := adminShadowFromContext(c)
	if !ok {
		c.JSON(500, gin.H{"error": "No admin identity in context"})
		return
	}

	c.JSON(200, gin.H{
		"kind":      shadow.Kind,
		"accountId": shadow.AccountID,
		"userId":    shadow.UserID,
		"username":  shadow.Username,
		"isAdmin":   shadow.IsAdmin,
	})
}

// establishSession replaces any existing session with one for identity and
// writes the cookie.
func (h *Handlers) establishSession(c *gin.Context, identity domain.SessionIdentity) {
	if old, ok := middleware.SessionFromContext(c); ok {
		_ = h.bridge.Logout(c.Request.Context(), old.ID)
	}

	data, err := h.bridge.Login(c.Request.Context(), identity)
	if err != nil {
		if errors.Is(err, session.ErrUserNotFound) {
			c.JSON(401, gin.H{"error": "Identity no longer exists"})
			return
		}
		h.logger.Error("Session establish failed", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to establish session"})
		return
	}

	middleware.WriteSessionCookie(c, h.cfg.Session.CookieName, data)
	c.JSON(200, gin.H{
		"sessionId": data.ID,
		"identity":  data.Shadow.User,
		"expiresAt": data.ExpiresAt,
	})
}
