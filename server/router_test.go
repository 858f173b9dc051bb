package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkedpost/infrastructure/realtime"
	"linkedpost/infrastructure/utils"
	httpHandler "linkedpost/interfaces/http"
)

const testSecret = "router-secret"

type stubHandlers struct{}

func (stubHandlers) ok(c *gin.Context) { c.String(http.StatusOK, c.FullPath()) }

func (s stubHandlers) Trigger(c *gin.Context)          { s.ok(c) }
func (s stubHandlers) MethodNotAllowed(c *gin.Context) { c.Status(http.StatusMethodNotAllowed) }
func (s stubHandlers) Share(c *gin.Context)            { s.ok(c) }
func (s stubHandlers) List(c *gin.Context)             { s.ok(c) }
func (s stubHandlers) Delete(c *gin.Context)           { s.ok(c) }
func (s stubHandlers) GetAuthURL(c *gin.Context)       { s.ok(c) }
func (s stubHandlers) Callback(c *gin.Context)         { s.ok(c) }
func (s stubHandlers) Status(c *gin.Context)           { s.ok(c) }
func (s stubHandlers) Disconnect(c *gin.Context)       { s.ok(c) }
func (s stubHandlers) Healthz(c *gin.Context)          { s.ok(c) }

var (
	_ httpHandler.ISweepHandler         = stubHandlers{}
	_ httpHandler.IPostHandler          = stubHandlers{}
	_ httpHandler.ILinkedInOAuthHandler = stubHandlers{}
	_ httpHandler.IHealthHandler        = stubHandlers{}
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := stubHandlers{}
	return InitiateRouter(h, h, h, h, realtime.NewPostHub(), testSecret, []string{"http://localhost:3000"})
}

func serve(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicRoutes(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPost, "/api/cron/post-scheduled", http.StatusOK},
		{http.MethodGet, "/api/cron/post-scheduled", http.StatusMethodNotAllowed},
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/auth/linkedin/callback", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, serve(router, tt.method, tt.path, "").Code)
		})
	}
}

func TestRouter_ProtectedRoutes(t *testing.T) {
	router := newTestRouter()
	token, err := utils.GenerateToken("user-1", "alice", testSecret, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/linkedin/post"},
		{http.MethodGet, "/api/linkedin/auth"},
		{http.MethodGet, "/api/linkedin/status"},
		{http.MethodPost, "/api/linkedin/disconnect"},
		{http.MethodGet, "/api/posts"},
		{http.MethodDelete, "/api/posts/abc"},
		{http.MethodDelete, "/api/posts?id=abc"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, serve(router, tt.method, tt.path, "").Code)
			assert.Equal(t, http.StatusOK, serve(router, tt.method, tt.path, token).Code)
		})
	}
}
