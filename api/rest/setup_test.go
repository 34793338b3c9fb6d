package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gamewrld/server/api/rest"
	"github.com/gamewrld/server/audit"
	"github.com/gamewrld/server/cache"
	"github.com/gamewrld/server/config"
	"github.com/gamewrld/server/social/chat"
	"github.com/gamewrld/server/social/friend"
	"github.com/gamewrld/server/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memRecorder keeps audit entries in memory.
type memRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memRecorder) Log(e audit.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *memRecorder) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}

type apiEnv struct {
	r      *gin.Engine
	db     *gorm.DB
	cache  cache.Cache
	audit  *memRecorder
	sec    config.SecurityConfig
	social config.SocialConfig
}

type envOption func(*apiEnv)

func withSocial(s config.SocialConfig) envOption {
	return func(e *apiEnv) { e.social = s }
}

func withAllowedIPs(ips ...string) envOption {
	return func(e *apiEnv) { e.sec.AllowedIPs = ips }
}

func newAPI(t *testing.T, opts ...envOption) *apiEnv {
	t.Helper()
	env := &apiEnv{
		db:    testutil.SetupTestDB(t),
		cache: testutil.SetupTestCache(t),
		audit: &memRecorder{},
		sec: config.SecurityConfig{
			JWTSecret:  "test-secret",
			JWTTTLH:    72 * time.Hour,
			BcryptCost: bcrypt.MinCost,
		},
		social: config.SocialConfig{ConversationLimit: 1000},
	}
	for _, o := range opts {
		o(env)
	}

	logger := zap.NewNop()
	h := rest.Handlers{
		Users: rest.NewUserHandler(env.db, env.cache, env.sec, env.audit, logger),
		FriendRequests: rest.NewFriendRequestHandler(
			friend.NewService(env.db, logger), env.social, env.audit, logger),
		Chat: rest.NewChatHandler(
			chat.NewService(chat.NewGormStore(env.db), env.social.ConversationLimit, logger), env.audit, logger),
	}
	env.r = gin.New()
	rest.Mount(env.r, h, env.sec, env.cache)
	return env
}

func doJSON(r *gin.Engine, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var buf *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		buf = bytes.NewReader(b)
	} else {
		buf = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	return doJSON(r, http.MethodPost, path, body, headers...)
}

func get(r *gin.Engine, path string, headers ...string) *httptest.ResponseRecorder {
	return doJSON(r, http.MethodGet, path, nil, headers...)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decode(t, w, &body)
	return body["error"]
}
