package handler

import (
	"errors"
	"net/http"

	"authgate/internal/auth/credentials"
	"authgate/internal/logger"
	"authgate/internal/session"

	"github.com/gin-gonic/gin"
)

type localAuthRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterLocal creates password credentials for an email.
func (h *Handler) RegisterLocal(c *gin.Context) {
	var req localAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID, err := h.credentialService.Register(
		c.Request.Context(),
		req.Email,
		req.Password,
	)
	if err != nil {
		if errors.Is(err, credentials.ErrAlreadyRegistered) {
			c.JSON(http.StatusConflict, gin.H{"error": "already registered"})
			return
		}
		logger.Error("registration failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user_id": userID})
}

// LoginLocal authenticates email/password credentials and mints session
// tokens, same as a completed federated flow.
func (h *Handler) LoginLocal(c *gin.Context) {
	var req localAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID, err := h.credentialService.Authenticate(
		c.Request.Context(),
		req.Email,
		req.Password,
	)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	pair, err := h.issuer.Issue(c.Request.Context(), userID)
	if err != nil {
		logger.Error("failed to mint session tokens", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return
	}

	session.SetAuthCookies(c.Writer, pair, authCookieOptions())
	c.JSON(http.StatusOK, gin.H{"status": "logged_in"})
}

// Logout revokes both session tokens (best-effort) and clears cookies.
// Idempotent.
func (h *Handler) Logout(c *gin.Context) {
	var access, refresh string
	if cookie, err := c.Request.Cookie(session.AccessCookieName); err == nil {
		access = cookie.Value
	}
	if cookie, err := c.Request.Cookie(session.RefreshCookieName); err == nil {
		refresh = cookie.Value
	}

	if access != "" || refresh != "" {
		if err := h.issuer.Revoke(c.Request.Context(), access, refresh); err != nil {
			logger.Warn("token revocation failed", map[string]any{"error": err.Error()})
		}
	}

	session.ClearAuthCookies(c.Writer, authCookieOptions())
	c.Status(http.StatusNoContent)
}
