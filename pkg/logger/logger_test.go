package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/formation-lms-api/pkg/config"
)

func TestBuildConfigLevels(t *testing.T) {
	prod := buildConfig(&config.Config{Env: config.EnvProduction})
	assert.Equal(t, zapcore.InfoLevel, prod.Level.Level())
	assert.Equal(t, "json", prod.Encoding)

	dev := buildConfig(&config.Config{Env: "development", Log: config.LogConfig{Format: "Console"}})
	assert.Equal(t, zapcore.DebugLevel, dev.Level.Level())
	assert.Equal(t, "console", dev.Encoding)

	explicit := buildConfig(&config.Config{Log: config.LogConfig{Level: "warn"}})
	assert.Equal(t, zapcore.WarnLevel, explicit.Level.Level())

	bogus := buildConfig(&config.Config{Log: config.LogConfig{Level: "loud"}})
	assert.Equal(t, zapcore.InfoLevel, bogus.Level.Level())
}

func TestGinMiddlewareLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(GinMiddleware(zap.New(core)))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/items/:id", func(c *gin.Context) {
		c.Set(ContextUserIDKey, "u1")
		c.Status(http.StatusNotFound)
	})
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/health", "/items/42", "/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "/items/:id", entries[1].ContextMap()["route"])
	assert.Equal(t, "u1", entries[1].ContextMap()["user_id"])
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}
