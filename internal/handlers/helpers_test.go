package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cached-task-api/internal/auth"
	"cached-task-api/internal/database"
	"cached-task-api/internal/middleware"
	"cached-task-api/internal/realtime"
	"cached-task-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testStatsKey = "cache:stats"

type testEnv struct {
	db     *gorm.DB
	tokens *auth.TokenManager
	hub    *realtime.Hub
	h      *Handler
	router *gin.Engine
}

func newTestCaches(db *gorm.DB) *Caches {
	return NewCaches(CacheConfig{
		TTL:         time.Minute,
		MaxSize:     50,
		StatsMedium: database.NewKVMedium(db),
		StatsKey:    testStatsKey,
		Logger:      log.New(io.Discard, "", 0),
	})
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	env := &testEnv{
		db:     db,
		tokens: auth.NewTokenManager("test-secret", "task-management-api", "task-management-clients", time.Hour),
		hub:    realtime.NewHub(),
	}
	env.h = New(db, env.tokens, env.hub, newTestCaches(db), log.New(io.Discard, "", 0))

	r := gin.New()
	r.POST("/api/login", env.h.Login)
	api := r.Group("/api", middleware.JWTAuthMiddleware(env.tokens))
	api.GET("/tasks", env.h.GetTasks)
	api.GET("/tasks/:id", env.h.GetTaskByID)
	api.POST("/tasks", env.h.CreateTask)
	api.PUT("/tasks/:id", env.h.UpdateTask)
	api.PATCH("/tasks/:id/status", env.h.UpdateTaskStatus)
	api.DELETE("/tasks/:id", env.h.DeleteTask)
	api.GET("/stats/:userid", env.h.GetStatsByUser)
	api.GET("/users", env.h.GetAllUsers)
	api.GET("/cache/stats", env.h.GetCacheStats)
	api.POST("/cache/invalidate", env.h.InvalidateCache)
	api.DELETE("/cache", env.h.ClearCaches)
	env.router = r
	return env
}

func (e *testEnv) token(t *testing.T, userID, username string) string {
	t.Helper()
	token, err := e.tokens.GenerateToken(userID, username)
	require.NoError(t, err)
	return token
}

// do sends a request; body is JSON-encoded when not nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// recordingClient is a realtime.Client that keeps every message it is sent.
type recordingClient struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (r *recordingClient) Send(message []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, message)
	return true
}

func (r *recordingClient) Close() {}

func (r *recordingClient) messages() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.msgs...)
}
