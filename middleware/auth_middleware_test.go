package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gamewrld/server/cache"
	"github.com/gamewrld/server/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewCache(cache.CacheConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func testSecurity() config.SecurityConfig {
	return config.SecurityConfig{JWTSecret: testSecret, JWTTTLH: time.Hour}
}

func newProtectedRouter(sec config.SecurityConfig, c cache.Cache) *gin.Engine {
	r := gin.New()
	r.Use(Auth(sec, c))
	r.GET("/protected", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"user_id": GetUserID(ctx),
			"token":   GetSessionToken(ctx),
		})
	})
	return r
}

func doAuthRequest(r http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_Rejects(t *testing.T) {
	c := setupTestCache(t)
	r := newProtectedRouter(testSecurity(), c)

	// Valid signature but no session in the cache.
	orphan, err := GenerateToken(42, "alice", testSecret, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Token abc123"},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer notavalidtoken"},
		{"no session", "Bearer " + orphan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doAuthRequest(r, tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestAuth_ValidSession(t *testing.T) {
	c := setupTestCache(t)
	r := newProtectedRouter(testSecurity(), c)

	token, err := GenerateToken(42, "alice", testSecret, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), SessionKey(token), "42", time.Hour))

	w := doAuthRequest(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":42`)
	assert.Contains(t, w.Body.String(), token)
}

func TestAuth_RevokedSession(t *testing.T) {
	c := setupTestCache(t)
	r := newProtectedRouter(testSecurity(), c)
	ctx := context.Background()

	token, err := GenerateToken(42, "alice", testSecret, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, SessionKey(token), "42", time.Hour))
	require.Equal(t, http.StatusOK, doAuthRequest(r, "Bearer "+token).Code)

	require.NoError(t, c.Del(ctx, SessionKey(token)))
	assert.Equal(t, http.StatusUnauthorized, doAuthRequest(r, "Bearer "+token).Code)
}

func TestAuth_SessionOwnedByAnotherUser(t *testing.T) {
	c := setupTestCache(t)
	r := newProtectedRouter(testSecurity(), c)

	token, err := GenerateToken(42, "alice", testSecret, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), SessionKey(token), "7", time.Hour))

	w := doAuthRequest(r, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "session does not match token")
}

func TestGetUserID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, int64(0), GetUserID(c))

	c.Set(UserIDKey, int64(99))
	assert.Equal(t, int64(99), GetUserID(c))

	c.Set(UserIDKey, "not-an-id")
	assert.Equal(t, int64(0), GetUserID(c))
}

func TestBearerToken(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := BearerToken(c)
	assert.False(t, ok)

	c.Request.Header.Set("Authorization", "Bearer abc")
	tok, ok := BearerToken(c)
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)
}

func TestRecovery_CatchesPanic(t *testing.T) {
	r := gin.New()
	r.Use(TraceID())
	r.Use(Recovery(zap.NewNop()))
	r.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
}

func TestRecovery_NoPanic_PassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/ok", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogger_StatusLevels(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	r := gin.New()
	r.Use(TraceID())
	r.Use(Logger(logger))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for path, want := range map[string]int{
		"/ok":   http.StatusOK,
		"/bad":  http.StatusBadRequest,
		"/fail": http.StatusInternalServerError,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
	}
}
