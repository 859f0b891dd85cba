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

	"github.com/noah-isme/loan-portal-api/pkg/middleware/requestid"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "p***@example.com", MaskEmail("priya@example.com"))
	assert.Equal(t, "***", MaskEmail("not-an-email"))
	assert.Equal(t, "", MaskEmail(""))
}

func TestGinMiddlewareLogsRouteAndMaskedActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(requestid.Middleware(), GinMiddleware(zap.New(core)))
	r.GET("/user-applications/:id/history", func(c *gin.Context) {
		SetActor(c, "applicant", "priya@example.com")
		c.Status(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/user-applications/AB12CD34/history", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/user-applications/:id/history", fields["route"])
	assert.Equal(t, "applicant:p***@example.com", fields["actor"])
	assert.NotEmpty(t, fields["request_id"])
}
