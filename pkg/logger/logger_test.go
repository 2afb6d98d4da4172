package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGinMiddlewareLogsAndEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, hook := test.NewNullLogger()

	r := gin.New()
	r.Use(GinMiddleware(log))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, "req-1", hook.LastEntry().Data["request_id"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestGinMiddlewareSkipsPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, hook := test.NewNullLogger()

	r := gin.New()
	r.Use(GinMiddleware(log, "/api/health"))
	r.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Empty(t, hook.Entries)
}

func TestNewFallsBackToInfo(t *testing.T) {
	log := New("production", "not-a-level")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	_, isJSON := log.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}
