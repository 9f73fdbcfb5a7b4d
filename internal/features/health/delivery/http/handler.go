package http

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	StatusHealthy       = "healthy"
	StatusUnhealthy     = "unhealthy"
	StatusNotConfigured = "not_configured"
	StatusDegraded      = "degraded"

	checkTimeout = 2 * time.Second
)

// Backend pings one dependency. A nil Check means the backend is not configured.
type Backend struct {
	Name  string
	Check func(ctx context.Context) (time.Duration, error)
}

type HealthResponse struct {
	Status      string    `json:"status"`
	Version     string    `json:"version"`
	Environment string    `json:"environment"`
	Database    string    `json:"database"`
	Cache       string    `json:"cache"`
	Timestamp   time.Time `json:"timestamp"`
}

type CheckResult struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
	Error     string  `json:"error,omitempty"`
}

type MemoryStats struct {
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	SysMB       float64 `json:"sys_mb"`
	NumGC       uint32  `json:"num_gc"`
}

type DetailedHealthResponse struct {
	HealthResponse
	UptimeSeconds float64                `json:"uptime_seconds"`
	Goroutines    int                    `json:"goroutines"`
	Memory        MemoryStats            `json:"memory"`
	Checks        map[string]CheckResult `json:"checks"`
}

type Handler struct {
	version     string
	environment string
	started     time.Time
	database    Backend
	cache       Backend
	ready       func() bool
}

func NewHandler(version, environment string, database, cache Backend) *Handler {
	return &Handler{
		version:     version,
		environment: environment,
		started:     time.Now(),
		database:    database,
		cache:       cache,
		ready:       func() bool { return true },
	}
}

// WithReadiness adds a gate checked before the backend pings, for startup failures
// that leave a backend not configured.
func (h *Handler) WithReadiness(ready func() bool) *Handler {
	h.ready = ready
	return h
}

// RegisterRoutes mounts the endpoints at the router root, outside /api/v1.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)
	router.GET("/health/detailed", h.Detailed)
	router.GET("/live", h.Live)
	router.GET("/ready", h.Ready)
}

func run(ctx context.Context, p Backend) CheckResult {
	if p.Check == nil {
		return CheckResult{Status: StatusNotConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	latency, err := p.Check(ctx)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{
		Status:    StatusHealthy,
		LatencyMS: float64(latency.Microseconds()) / 1000,
	}
}

func (h *Handler) summary(db, cache CheckResult) HealthResponse {
	status := StatusHealthy
	if !h.ready() || db.Status == StatusUnhealthy || cache.Status == StatusUnhealthy {
		status = StatusDegraded
	}
	return HealthResponse{
		Status:      status,
		Version:     h.version,
		Environment: h.environment,
		Database:    db.Status,
		Cache:       cache.Status,
		Timestamp:   time.Now().UTC(),
	}
}

// @Summary Health check
// @Description Service status with database and cache state
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, h.summary(run(ctx, h.database), run(ctx, h.cache)))
}

// @Summary Detailed health check
// @Description Health plus uptime, memory, goroutines and backend latency
// @Tags health
// @Produce json
// @Success 200 {object} DetailedHealthResponse
// @Router /health/detailed [get]
func (h *Handler) Detailed(c *gin.Context) {
	ctx := c.Request.Context()
	db := run(ctx, h.database)
	cache := run(ctx, h.cache)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.JSON(http.StatusOK, DetailedHealthResponse{
		HealthResponse: h.summary(db, cache),
		UptimeSeconds:  time.Since(h.started).Seconds(),
		Goroutines:     runtime.NumGoroutine(),
		Memory: MemoryStats{
			HeapAllocMB: float64(mem.HeapAlloc) / 1024 / 1024,
			SysMB:       float64(mem.Sys) / 1024 / 1024,
			NumGC:       mem.NumGC,
		},
		Checks: map[string]CheckResult{
			h.database.Name: db,
			h.cache.Name:    cache,
		},
	})
}

// @Summary Liveness check
// @Tags health
// @Success 200
// @Router /live [get]
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// @Summary Readiness check
// @Description 503 until every configured backend answers
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /ready [get]
func (h *Handler) Ready(c *gin.Context) {
	if !h.ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unready",
			"error":  "degraded startup",
		})
		return
	}
	ctx := c.Request.Context()
	for _, p := range []Backend{h.database, h.cache} {
		if res := run(ctx, p); res.Status == StatusUnhealthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unready",
				"error":  p.Name + " unavailable",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
	})
}
