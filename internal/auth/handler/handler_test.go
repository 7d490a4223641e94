package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"authgate/internal/auth"
	"authgate/internal/auth/flowstate"
	"authgate/internal/auth/provider"
	"authgate/internal/auth/provider/github"
	"authgate/internal/session"
	"authgate/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

type fakeProvider struct {
	name          string
	exchangeCalls int
	bundle        *provider.TokenBundle
	exchangeErr   error
	claims        map[string]any
	parseErr      error
	seenNonce     string
}

func (p *fakeProvider) Name() string     { return p.name }
func (p *fakeProvider) ClientID() string { return p.name + "-client-id" }

func (p *fakeProvider) AuthorizationRequest(_ context.Context, redirectURI, state string) (*provider.AuthRequest, error) {
	return &provider.AuthRequest{
		URL: "https://idp.example.com/authorize?state=" + url.QueryEscape(state) +
			"&redirect_uri=" + url.QueryEscape(redirectURI),
		State: state,
		Nonce: "test-nonce",
	}, nil
}

func (p *fakeProvider) Exchange(context.Context, string, string) (*provider.TokenBundle, error) {
	p.exchangeCalls++
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return p.bundle, nil
}

func (p *fakeProvider) ParseIDToken(_ context.Context, _ *provider.TokenBundle, nonce string) (map[string]any, error) {
	p.seenNonce = nonce
	if p.parseErr != nil {
		return nil, p.parseErr
	}
	return p.claims, nil
}

type fakeReconciler struct {
	resolved *user.User
	err      error
	calls    int
}

func (r *fakeReconciler) Resolve(_ context.Context, _ string, _ *auth.Identity) (*user.User, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.resolved, nil
}

type memoryTokenStore struct {
	records map[string]session.Record
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{records: map[string]session.Record{}}
}

func (s *memoryTokenStore) Create(_ context.Context, r session.Record) error {
	s.records[string(r.Kind)+":"+r.Token] = r
	return nil
}

func (s *memoryTokenStore) Get(_ context.Context, kind session.TokenKind, token string) (*session.Record, error) {
	r, ok := s.records[string(kind)+":"+token]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *memoryTokenStore) Delete(_ context.Context, kind session.TokenKind, token string) error {
	delete(s.records, string(kind)+":"+token)
	return nil
}

func passthrough(c *gin.Context) { c.Next() }

func newTestRouter(t *testing.T, providers *provider.Registry, rec *fakeReconciler) (*gin.Engine, *flowstate.Codec) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	codec := flowstate.NewCodec(testSecret)
	issuer := session.NewIssuer(newMemoryTokenStore(), 15*time.Minute, 7*24*time.Hour)

	h := NewHandler(
		providers,
		codec,
		rec,
		issuer,
		nil,
		"http://localhost:8080",
		10*time.Minute,
	)

	r := gin.New()
	h.RegisterRoutes(r, passthrough, passthrough)
	return r, codec
}

func memberUser() *user.User {
	username := "Alice"
	return &user.User{
		ID:             uuid.New(),
		Role:           user.RoleMember,
		OAuth2ClientID: "fakeidp-client-id",
		OAuth2UserID:   "idp-user-1",
		Email:          "alice@example.com",
		Username:       &username,
	}
}

func oidcBundle() *provider.TokenBundle {
	return &provider.TokenBundle{
		AccessToken: "access-123",
		TokenType:   "Bearer",
		RawIDToken:  "raw-id-token",
	}
}

func oidcClaims() map[string]any {
	return map[string]any{
		"sub":     "idp-user-1",
		"email":   "alice@example.com",
		"name":    "Alice",
		"picture": "https://cdn.example.com/alice.png",
	}
}

func loginErrorMessage(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	location := resp.Header().Get("Location")
	require.NotEmpty(t, location)
	parsed, err := url.Parse(location)
	require.NoError(t, err)
	require.Equal(t, "/login", parsed.Path)
	return parsed.Query().Get("error")
}

func completeRequest(signedState, cookieState, cookieNonce string) *http.Request {
	req := httptest.NewRequest(
		http.MethodGet,
		"/oauth2/fakeidp/tokens?state="+url.QueryEscape(signedState)+"&code=auth-code",
		nil,
	)
	if cookieState != "" {
		req.AddCookie(&http.Cookie{Name: stateCookieName, Value: cookieState})
	}
	if cookieNonce != "" {
		req.AddCookie(&http.Cookie{Name: nonceCookieName, Value: cookieNonce})
	}
	return req
}

func TestLoginRedirectsToAuthorizationEndpoint(t *testing.T) {
	gh, err := github.New("gh-client-id", "gh-client-secret")
	require.NoError(t, err)
	router, codec := newTestRouter(t, provider.NewRegistry(gh), &fakeReconciler{})

	req := httptest.NewRequest(http.MethodPost, "/oauth2/github/login?returnUrl=/settings", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusFound, resp.Code)

	location, err := url.Parse(resp.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "github.com", location.Host)

	// the state query parameter decodes with the server secret and
	// carries the return URL
	state := location.Query().Get("state")
	require.NotEmpty(t, state)
	valid, returnURL := codec.Decode(state)
	assert.True(t, valid)
	assert.Equal(t, "/settings", returnURL)

	cookies := resp.Result().Cookies()
	names := map[string]string{}
	for _, cookie := range cookies {
		names[cookie.Name] = cookie.Value
	}
	assert.Equal(t, state, names[stateCookieName])
	assert.NotEmpty(t, names[nonceCookieName])
}

func TestLoginRejectsUnknownProvider(t *testing.T) {
	router, _ := newTestRouter(t, provider.NewRegistry(), &fakeReconciler{})

	req := httptest.NewRequest(http.MethodPost, "/oauth2/gitlab/login", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusFound, resp.Code)
	assert.Equal(t, "Unknown IDP: gitlab.", loginErrorMessage(t, resp))
}

func TestCreateTokensRejectsStateMismatchWithoutCallingProvider(t *testing.T) {
	fake := &fakeProvider{name: "fakeidp"}
	router, codec := newTestRouter(t, provider.NewRegistry(fake), &fakeReconciler{})

	signed, err := codec.Encode("csrf-token", "")
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, completeRequest(signed, "a-different-value", "test-nonce"))

	require.Equal(t, http.StatusFound, resp.Code)
	assert.Contains(t, loginErrorMessage(t, resp), "invalid state parameter")
	assert.Equal(t, 0, fake.exchangeCalls)
}

func TestCreateTokensRejectsMissingStateCookie(t *testing.T) {
	fake := &fakeProvider{name: "fakeidp"}
	router, codec := newTestRouter(t, provider.NewRegistry(fake), &fakeReconciler{})

	signed, err := codec.Encode("csrf-token", "")
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, completeRequest(signed, "", "test-nonce"))

	require.Equal(t, http.StatusFound, resp.Code)
	assert.Contains(t, loginErrorMessage(t, resp), "invalid state parameter")
	assert.Equal(t, 0, fake.exchangeCalls)
}

func TestCreateTokensRejectsForgedState(t *testing.T) {
	fake := &fakeProvider{name: "fakeidp"}
	router, _ := newTestRouter(t, provider.NewRegistry(fake), &fakeReconciler{})

	forged := "forged.state.value"
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, completeRequest(forged, forged, "test-nonce"))

	require.Equal(t, http.StatusFound, resp.Code)
	assert.Contains(t, loginErrorMessage(t, resp), "invalid state parameter")
	assert.Equal(t, 0, fake.exchangeCalls)
}

func TestCreateTokensRejectsUnsafeReturnURL(t *testing.T) {
	fake := &fakeProvider{name: "fakeidp"}
	router, codec := newTestRouter(t, provider.NewRegistry(fake), &fakeReconciler{})

	signed, err := codec.Encode("csrf-token", "//evil.com")
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, completeRequest(signed, signed, "test-nonce"))

	require.Equal(t, http.StatusFound, resp.Code)
	assert.Equal(t, "Attempting login with unsafe return URL.", loginErrorMessage(t, resp))
	assert.Equal(t, 0, fake.exchangeCalls)
}

func TestCreateTokensSurfacesProviderErrorVerbatim(t *testing.T) {
	fake := &fakeProvider{
		name: "fakeidp",
		exchangeErr: &provider.AuthError{
			Code:        "access_denied",
			Description: "The user denied the request",
		},
	}
	router, codec := newTestRouter(t, provider.NewRegistry(fake), &fakeReconciler{})

	signed, err := codec.Encode("csrf-token", "")
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, completeRequest(signed, signed, "test-nonce"))

	require.Equal(t, http.StatusFound, resp.Code)
	assert.Equal(t, "access_denied: The user denied the request", loginErrorMessage(t, resp))
}

func TestCreateTokensRejectsMissingIDToken(t *testing.T) {
	fake := &fakeProvider{
		name: "fakeidp",
		bundle: &provider.TokenBundle{
			AccessToken: "access-123",
			TokenType:   "bearer",
		},
	}
	router, codec := newTestRouter(t, provider.NewRegistry(fake), &fakeReconciler{})

	signed, err := codec.Encode("csrf-token", "")
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, completeRequest(signed, signed, "test-nonce"))

	require.Equal(t, http.StatusFound, resp.Code)
	assert.Contains(t, loginErrorMessage(t, resp), "does not appear to support OpenID Connect")
}

func TestCreateTokensRejectsMalformedTokenResponse(t *testing.T) {
	fake := &fakeProvider{
		name: "fakeidp",
		bundle: &provider.TokenBundle{
			AccessToken: "access-123",
			TokenType:   "mac",
			RawIDToken:  "raw-id-token",
		},
	}
	router, codec := newTestRouter(t, provider.NewRegistry(fake), &fakeReconciler{})

	signed, err := codec.Encode("csrf-token", "")
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, completeRequest(signed, signed, "test-nonce"))

	require.Equal(t, http.StatusFound, resp.Code)
	assert.Contains(t, loginErrorMessage(t, resp), "invalid token response")
}

func TestCreateTokensRejectsMalformedClaims(t *testing.T) {
	fake := &fakeProvider{
		name:   "fakeidp",
		bundle: oidcBundle(),
		claims: map[string]any{
			"sub":   "idp-user-1",
			"email": "alice@example.com",
			"name":  42, // present but wrong type
		},
	}
	rec := &fakeReconciler{resolved: memberUser()}
	router, codec := newTestRouter(t, provider.NewRegistry(fake), rec)

	signed, err := codec.Encode("csrf-token", "")
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, completeRequest(signed, signed, "test-nonce"))

	require.Equal(t, http.StatusFound, resp.Code)
	assert.Contains(t, loginErrorMessage(t, resp), "malformed identity claims")
	assert.Equal(t, 0, rec.calls)
}

func TestCreateTokensSurfacesConflict(t *testing.T) {
	fake := &fakeProvider{name: "fakeidp", bundle: oidcBundle(), claims: oidcClaims()}
	rec := &fakeReconciler{
		err: &user.ConflictError{Field: user.ConflictEmail, Value: "alice@example.com"},
	}
	router, codec := newTestRouter(t, provider.NewRegistry(fake), rec)

	signed, err := codec.Encode("csrf-token", "")
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, completeRequest(signed, signed, "test-nonce"))

	require.Equal(t, http.StatusFound, resp.Code)
	assert.Equal(t, "An account for alice@example.com is already in use.", loginErrorMessage(t, resp))
}

func TestCreateTokensSuccess(t *testing.T) {
	fake := &fakeProvider{name: "fakeidp", bundle: oidcBundle(), claims: oidcClaims()}
	rec := &fakeReconciler{resolved: memberUser()}
	router, codec := newTestRouter(t, provider.NewRegistry(fake), rec)

	signed, err := codec.Encode("csrf-token", "/settings")
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, completeRequest(signed, signed, "test-nonce"))

	require.Equal(t, http.StatusFound, resp.Code)
	assert.Equal(t, "/settings", resp.Header().Get("Location"))
	assert.Equal(t, 1, fake.exchangeCalls)
	assert.Equal(t, "test-nonce", fake.seenNonce)
	assert.Equal(t, 1, rec.calls)

	var (
		accessSet  bool
		refreshSet bool
		flowState  *http.Cookie
		flowNonce  *http.Cookie
	)
	for _, cookie := range resp.Result().Cookies() {
		switch cookie.Name {
		case session.AccessCookieName:
			accessSet = cookie.Value != ""
		case session.RefreshCookieName:
			refreshSet = cookie.Value != ""
		case stateCookieName:
			flowState = cookie
		case nonceCookieName:
			flowNonce = cookie
		}
	}
	assert.True(t, accessSet, "access cookie should be set")
	assert.True(t, refreshSet, "refresh cookie should be set")
	require.NotNil(t, flowState, "state cookie should be cleared")
	assert.Empty(t, flowState.Value)
	require.NotNil(t, flowNonce, "nonce cookie should be cleared")
	assert.Empty(t, flowNonce.Value)
}

func TestCreateTokensDefaultsToLandingPath(t *testing.T) {
	fake := &fakeProvider{name: "fakeidp", bundle: oidcBundle(), claims: oidcClaims()}
	rec := &fakeReconciler{resolved: memberUser()}
	router, codec := newTestRouter(t, provider.NewRegistry(fake), rec)

	signed, err := codec.Encode("csrf-token", "")
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, completeRequest(signed, signed, "test-nonce"))

	require.Equal(t, http.StatusFound, resp.Code)
	assert.Equal(t, "/", resp.Header().Get("Location"))
}
