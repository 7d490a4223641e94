package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"authgate/internal/auth"
	"authgate/internal/auth/credentials"
	"authgate/internal/auth/flowstate"
	"authgate/internal/auth/provider"
	"authgate/internal/auth/reconciler"
	"authgate/internal/logger"
	"authgate/internal/session"
	"authgate/internal/user"

	"github.com/gin-gonic/gin"
)

const (
	defaultLandingPath = "/"
	loginPath          = "/login"

	// shown for internal failures; details stay in the logs
	loginFailedMessage = "Login failed. Please try again."
)

type Handler struct {
	providers         *provider.Registry
	states            *flowstate.Codec
	reconciler        reconciler.Reconciler
	issuer            *session.Issuer
	credentialService *credentials.Service
	baseURL           string
	flowTTL           time.Duration
}

func NewHandler(
	registry *provider.Registry,
	states *flowstate.Codec,
	rec reconciler.Reconciler,
	issuer *session.Issuer,
	credentialService *credentials.Service,
	baseURL string,
	flowTTL time.Duration,
) *Handler {
	return &Handler{
		providers:         registry,
		states:            states,
		reconciler:        rec,
		issuer:            issuer,
		credentialService: credentialService,
		baseURL:           strings.TrimRight(baseURL, "/"),
		flowTTL:           flowTTL,
	}
}

// RegisterRoutes wires the login flow routes. Rate limiting is applied
// by the caller, upstream of these handlers.
func (h *Handler) RegisterRoutes(r *gin.Engine, loginLimiter, tokensLimiter gin.HandlerFunc) {
	r.POST("/oauth2/:idpName/login", loginLimiter, h.Login)
	r.GET("/oauth2/:idpName/tokens", tokensLimiter, h.CreateTokens)
	r.POST("/auth/register", h.RegisterLocal)
	r.POST("/auth/login", h.LoginLocal)
	r.POST("/auth/logout", h.Logout)
}

// callbackURL must be identical at initiate and exchange time.
func (h *Handler) callbackURL(idpName string) string {
	return h.baseURL + "/oauth2/" + idpName + "/tokens"
}

// Login initiates the OAuth2 authorization code flow: it signs the
// transient state, sets the two flow cookies and redirects the browser
// to the IDP's authorization endpoint.
func (h *Handler) Login(c *gin.Context) {
	idpName := c.Param("idpName")

	p, err := h.providers.Get(idpName)
	if err != nil {
		h.redirectToLogin(c, fmt.Sprintf("Unknown IDP: %s.", idpName))
		return
	}

	csrfToken, err := flowstate.GenerateToken()
	if err != nil {
		h.internalError(c, "failed to generate flow state", err)
		return
	}

	signed, err := h.states.Encode(csrfToken, c.Query("returnUrl"))
	if err != nil {
		h.internalError(c, "failed to sign flow state", err)
		return
	}

	req, err := p.AuthorizationRequest(
		c.Request.Context(),
		h.callbackURL(p.Name()),
		signed,
	)
	if err != nil {
		h.internalError(c, "failed to build authorization url", err)
		return
	}

	setFlowCookies(c.Writer, req.State, req.Nonce, h.flowTTL)
	c.Redirect(http.StatusFound, req.URL)
}

// CreateTokens completes the flow after the IDP redirects back: it
// validates state and return URL, exchanges the code, verifies the
// identity token, reconciles the local user and mints session tokens.
// Every rejection redirects to the login page with a readable message.
func (h *Handler) CreateTokens(c *gin.Context) {
	idpName := c.Param("idpName")
	state := c.Query("state")

	storedState, stateErr := c.Cookie(stateCookieName)
	if state == "" || stateErr != nil || state != storedState {
		h.redirectToLogin(c, invalidStateMessage(idpName))
		return
	}

	valid, returnURL := h.states.Decode(state)
	if !valid {
		h.redirectToLogin(c, invalidStateMessage(idpName))
		return
	}

	if returnURL != "" {
		unquoted, err := url.QueryUnescape(returnURL)
		if err != nil || !flowstate.IsRelativeURL(unquoted) {
			h.redirectToLogin(c, "Attempting login with unsafe return URL.")
			return
		}
	}

	storedNonce, nonceErr := c.Cookie(nonceCookieName)
	if nonceErr != nil || storedNonce == "" {
		h.redirectToLogin(c, invalidStateMessage(idpName))
		return
	}

	p, err := h.providers.Get(idpName)
	if err != nil {
		h.redirectToLogin(c, fmt.Sprintf("Unknown IDP: %s.", idpName))
		return
	}

	// authorization errors reported via callback query parameters
	// (e.g. the user denied consent) are surfaced verbatim
	if errParam := c.Query("error"); errParam != "" {
		msg := errParam
		if desc := c.Query("error_description"); desc != "" {
			msg = errParam + ": " + desc
		}
		h.redirectToLogin(c, msg)
		return
	}

	code := c.Query("code")
	if code == "" {
		h.redirectToLogin(c, "Missing authorization code in IDP callback.")
		return
	}

	bundle, err := p.Exchange(c.Request.Context(), code, h.callbackURL(p.Name()))
	if err != nil {
		var authErr *provider.AuthError
		if errors.As(err, &authErr) {
			h.redirectToLogin(c, authErr.Error())
			return
		}
		h.internalError(c, "token exchange failed", err)
		return
	}

	if bundle.AccessToken == "" || strings.ToLower(bundle.TokenType) != "bearer" {
		h.redirectToLogin(c, "Received an invalid token response from the IDP.")
		return
	}

	if bundle.RawIDToken == "" {
		h.redirectToLogin(c, fmt.Sprintf(
			"OAuth2 IDP %s does not appear to support OpenID Connect.", idpName,
		))
		return
	}

	claims, err := p.ParseIDToken(c.Request.Context(), bundle, storedNonce)
	if err != nil {
		h.redirectToLogin(c, "Failed to verify the identity token returned by the IDP.")
		return
	}

	identity, err := auth.ParseIdentity(claims)
	if err != nil {
		h.redirectToLogin(c, "Received malformed identity claims from the IDP.")
		return
	}

	resolved, err := h.reconciler.Resolve(c.Request.Context(), p.ClientID(), identity)
	if err != nil {
		var conflict *user.ConflictError
		if errors.As(err, &conflict) {
			h.redirectToLogin(c, conflict.Error())
			return
		}
		h.internalError(c, "user reconciliation failed", err)
		return
	}

	pair, err := h.issuer.Issue(c.Request.Context(), resolved.ID.String())
	if err != nil {
		h.internalError(c, "failed to mint session tokens", err)
		return
	}

	clearFlowCookies(c.Writer)
	session.SetAuthCookies(c.Writer, pair, authCookieOptions())

	logger.Info("oauth2 login success", map[string]any{
		"idp":     idpName,
		"user_id": resolved.ID.String(),
		"ip":      c.ClientIP(),
	})

	target := returnURL
	if target == "" {
		target = defaultLandingPath
	}
	c.Redirect(http.StatusFound, target)
}

// redirectToLogin converts any rejection into a login-page redirect
// carrying a human-readable error. Flow cookies are always cleared.
func (h *Handler) redirectToLogin(c *gin.Context, message string) {
	clearFlowCookies(c.Writer)
	c.Redirect(http.StatusFound, loginPath+"?error="+url.QueryEscape(message))
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	logger.Error(msg, map[string]any{"error": err.Error()})
	h.redirectToLogin(c, loginFailedMessage)
}

func invalidStateMessage(idpName string) string {
	return fmt.Sprintf(
		"Received invalid state parameter during OAuth2 authorization code flow for IDP %s.",
		idpName,
	)
}

func authCookieOptions() session.CookieOptions {
	return session.CookieOptions{
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
