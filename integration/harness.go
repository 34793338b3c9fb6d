package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gamewrld/server/api/rest"
	"github.com/gamewrld/server/audit"
	"github.com/gamewrld/server/cache"
	"github.com/gamewrld/server/config"
	mw "github.com/gamewrld/server/middleware"
	"github.com/gamewrld/server/social/chat"
	"github.com/gamewrld/server/social/friend"
	"github.com/gamewrld/server/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestServer is a real HTTP server wired the same way main.go wires it.
type TestServer struct {
	DB     *gorm.DB
	Cache  cache.Cache
	Audit  *audit.Service
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	Sec    config.SecurityConfig

	limiter *mw.RateLimiter
}

// NewTestServer starts a fully wired server on a private in-memory database.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		JWTTTLH:        72 * time.Hour,
		BcryptCost:     bcrypt.MinCost,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
		AllowedOrigins: []string{}, // allow all origins
	}
	social := config.SocialConfig{ConversationLimit: 1000}

	auditSvc := audit.New(db, logger)
	friendSvc := friend.NewService(db, logger)
	chatSvc := chat.NewService(chat.NewGormStore(db), social.ConversationLimit, logger)
	limiter := mw.NewRateLimiter(sec.RateLimitRPS, sec.RateLimitBurst)

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.CORS(sec.AllowedOrigins))
	r.Use(limiter.Handler())
	rest.Mount(r, rest.Handlers{
		Users:          rest.NewUserHandler(db, c, sec, auditSvc, logger),
		FriendRequests: rest.NewFriendRequestHandler(friendSvc, social, auditSvc, logger),
		Chat:           rest.NewChatHandler(chatSvc, auditSvc, logger),
	}, sec, c)

	server := httptest.NewServer(r)
	return &TestServer{
		DB:      db,
		Cache:   c,
		Audit:   auditSvc,
		Server:  server,
		URL:     server.URL,
		Sec:     sec,
		limiter: limiter,
	}
}

// Close shuts the server down and flushes the audit trail.
func (ts *TestServer) Close() {
	ts.Server.Close()
	ts.limiter.Stop()
	ts.Audit.Stop(context.Background())
}

// --- HTTP helpers ---

func (ts *TestServer) do(t *testing.T, method, path string, body interface{}, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, bodyReader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPost, path, body, token)
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodGet, path, nil, token)
}

// Patch sends a PATCH request without a body.
func (ts *TestServer) Patch(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPatch, path, nil, token)
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// Drain discards and closes a response body.
func Drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// --- Account helpers ---

// Register creates an account and returns its user id.
func (ts *TestServer) Register(t *testing.T, username, password string) int64 {
	t.Helper()
	resp := ts.PostJSON(t, "/api/users", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": password,
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result struct {
		UserID int64 `json:"userId"`
	}
	ReadJSON(t, resp, &result)
	return result.UserID
}

// Login returns a session token for an existing account.
func (ts *TestServer) Login(t *testing.T, username, password string) string {
	t.Helper()
	resp := ts.PostJSON(t, "/api/users/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Token string `json:"token"`
	}
	ReadJSON(t, resp, &result)
	return result.Token
}

var testCounter uint64

// UniqueID returns a short name that is unique within the test binary.
func UniqueID(prefix string) string {
	n := atomic.AddUint64(&testCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano()%100000, n)
}
