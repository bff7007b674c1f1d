// Package api wires together the HTTP routes of the events service.
//
// The ingest route (/events/batch) is the only one that is rate limited; it is
// called by the pipeline push step, not by browsers. The read routes serve the
// HTML table and its JSON equivalent.
package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/event-scraper/event-scraper/internal/api/events"
	"github.com/event-scraper/event-scraper/internal/config"
	"github.com/event-scraper/event-scraper/internal/jobs"
	"github.com/event-scraper/event-scraper/internal/middleware"
	"github.com/event-scraper/event-scraper/internal/storage"
)

// Version is reported by GET /version
var Version = "0.1.0"

// Services are optional collaborators. A nil Storage disables the storage
// readiness check; a nil PipelineJob leaves /api/scrape unregistered.
type Services struct {
	Storage     storage.Storage
	PipelineJob *jobs.PipelineJob
}

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	pipelineJob  *jobs.PipelineJob
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.pipelineJob != nil {
		bg.pipelineJob.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB, svc Services) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	sqlxDB := sqlx.NewDb(db, "postgres")

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))

	api := middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig())
	page := middleware.SecurityHeadersMiddleware(middleware.PageSecurityHeadersConfig())

	router.GET("/health", api, healthCheckHandler(db))
	router.GET("/ready", api, readinessHandler(db, svc.Storage))
	router.GET("/version", api, versionHandler())

	bg := &BackgroundServices{pipelineJob: svc.PipelineJob}

	ingest := []gin.HandlerFunc{api}
	if cfg.Security.RateLimiting.Enabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimitConfigFrom(cfg.Security.RateLimiting))
		bg.rateLimiters = append(bg.rateLimiters, limiter)
		ingest = append(ingest, middleware.RateLimitMiddleware(limiter))
	}
	ingest = append(ingest, events.BatchHandler(sqlxDB, cfg.Server.MaxBatchBytes))
	router.POST("/events/batch", ingest...)

	router.GET("/events", page, events.PageHandler(sqlxDB))

	apiGroup := router.Group("/api", api)
	{
		apiGroup.GET("/events", events.ListHandler(sqlxDB))
		if svc.PipelineJob != nil {
			apiGroup.POST("/scrape", scrapeHandler(svc.PipelineJob))
			apiGroup.GET("/scrape", scrapeStatusHandler(svc.PipelineJob))
		}
	}

	return router, bg
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler also checks the storage backend the pipeline reads and
// writes, when one is configured.
func readinessHandler(db *sql.DB, store storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "checks": checks, "error": "database not ready"})
			return
		}
		checks["database"] = "healthy"

		if store != nil {
			if _, err := store.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
				checks["storage"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "checks": checks, "error": "storage backend not ready"})
				return
			}
			checks["storage"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version"
// @Router       /version [get]
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": Version})
	}
}

// LoggerMiddleware emits one slog record per request. Server errors log at
// error level and client errors at warn.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		slog.LogAttrs(
			c.Request.Context(),
			level,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", status),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", middleware.RequestID(c)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS. Preflight requests are answered with 204.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
	if methods == "" {
		methods = "GET, POST, OPTIONS"
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		wildcard := false
		for _, o := range cfg.Security.CORS.AllowedOrigins {
			if o == "*" {
				allowed, wildcard = true, true
				break
			}
			if o == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if wildcard || origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-Request-ID")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
