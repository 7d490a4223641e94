package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"authgate/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenStore struct {
	records map[string]session.Record
	deleted []string
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{records: map[string]session.Record{}}
}

func (s *fakeTokenStore) Create(_ context.Context, r session.Record) error {
	s.records[string(r.Kind)+":"+r.Token] = r
	return nil
}

func (s *fakeTokenStore) Get(_ context.Context, kind session.TokenKind, token string) (*session.Record, error) {
	r, ok := s.records[string(kind)+":"+token]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *fakeTokenStore) Delete(_ context.Context, kind session.TokenKind, token string) error {
	key := string(kind) + ":" + token
	delete(s.records, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func protectedRouter(store session.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinRequireAuth(NewAuthMiddleware(store)))
	r.GET("/me", func(c *gin.Context) {
		userID, _ := UserIDFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	return r
}

func requestWithToken(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: session.AccessCookieName, Value: token})
	}
	return req
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	store := newFakeTokenStore()
	require.NoError(t, store.Create(context.Background(), session.Record{
		Token:     "good-token",
		Kind:      session.KindAccess,
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	resp := httptest.NewRecorder()
	protectedRouter(store).ServeHTTP(resp, requestWithToken("good-token"))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"user_id":"user-1"`)
}

func TestRequireAuthRejectsMissingCookie(t *testing.T) {
	resp := httptest.NewRecorder()
	protectedRouter(newFakeTokenStore()).ServeHTTP(resp, requestWithToken(""))

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRequireAuthRejectsUnknownToken(t *testing.T) {
	resp := httptest.NewRecorder()
	protectedRouter(newFakeTokenStore()).ServeHTTP(resp, requestWithToken("nope"))

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRequireAuthRejectsAndDeletesExpiredToken(t *testing.T) {
	store := newFakeTokenStore()
	require.NoError(t, store.Create(context.Background(), session.Record{
		Token:     "stale-token",
		Kind:      session.KindAccess,
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	resp := httptest.NewRecorder()
	protectedRouter(store).ServeHTTP(resp, requestWithToken("stale-token"))

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Contains(t, store.deleted, "access:stale-token")
}
