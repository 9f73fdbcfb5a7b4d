package http

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) (time.Duration, error)   { return 3 * time.Millisecond, nil }
func down(context.Context) (time.Duration, error) { return 0, stderrors.New("connection refused") }

func newRouter(db, cache Backend) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler("1.2.3", "test", db, cache).RegisterRoutes(r)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name          string
		db, cache     Backend
		status        string
		dbStatus      string
		cacheStatus   string
		readyHTTPCode int
	}{
		{"all up", Backend{"database", ok}, Backend{"cache", ok}, StatusHealthy, StatusHealthy, StatusHealthy, http.StatusOK},
		{"cache down", Backend{"database", ok}, Backend{"cache", down}, StatusDegraded, StatusHealthy, StatusUnhealthy, http.StatusServiceUnavailable},
		{"memory store", Backend{Name: "database"}, Backend{Name: "cache"}, StatusHealthy, StatusNotConfigured, StatusNotConfigured, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(tt.db, tt.cache)

			w := get(r, "/health")
			require.Equal(t, http.StatusOK, w.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.dbStatus, resp.Database)
			assert.Equal(t, tt.cacheStatus, resp.Cache)
			assert.Equal(t, "1.2.3", resp.Version)
			assert.Equal(t, "test", resp.Environment)

			assert.Equal(t, tt.readyHTTPCode, get(r, "/ready").Code)
			assert.Equal(t, http.StatusOK, get(r, "/live").Code)
		})
	}
}

func TestHealthDetailed(t *testing.T) {
	r := newRouter(Backend{"database", ok}, Backend{"cache", down})

	w := get(r, "/health/detailed")
	require.Equal(t, http.StatusOK, w.Code)
	var resp DetailedHealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Positive(t, resp.Goroutines)
	assert.Positive(t, resp.Memory.SysMB)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, 0.0)
	assert.Equal(t, StatusHealthy, resp.Checks["database"].Status)
	assert.InDelta(t, 3.0, resp.Checks["database"].LatencyMS, 0.001)
	assert.Equal(t, StatusUnhealthy, resp.Checks["cache"].Status)
	assert.Equal(t, "connection refused", resp.Checks["cache"].Error)
}

func TestReady_DegradedStartup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler("1.2.3", "test", Backend{Name: "database"}, Backend{"cache", ok}).
		WithReadiness(func() bool { return false }).
		RegisterRoutes(r)

	w := get(r, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, StatusNotConfigured, resp.Database)
	assert.Equal(t, StatusHealthy, resp.Cache)

	assert.Equal(t, http.StatusServiceUnavailable, get(r, "/ready").Code)
	assert.Equal(t, http.StatusOK, get(r, "/live").Code)
}
