package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trending-service/internal/core/domain"
	"trending-service/internal/infra/storage"
)

// Config holds API server settings.
type Config struct {
	Port int
}

// StatusService is the control surface the API exposes.
type StatusService interface {
	Sources() []string
	FetchStatus(ctx context.Context) map[string]domain.SourceStatus
	ForceRetrySource(ctx context.Context, source string) bool
	RefreshAll()
	RetryQueueSize() int
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server provides the HTTP status and control endpoints.
type Server struct {
	svc    StatusService
	items  storage.ItemRepository
	checks map[string]HealthChecker
	server *http.Server
}

// NewServer creates the API server. checks maps a component name to its
// health probe; nil checkers are skipped.
func NewServer(cfg Config, svc StatusService, items storage.ItemRepository, checks map[string]HealthChecker) *Server {
	s := &Server{
		svc:    svc,
		items:  items,
		checks: make(map[string]HealthChecker),
	}
	for name, check := range checks {
		if check != nil {
			s.checks[name] = check
		}
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.Router(),
	}
	return s
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/health", s.handleHealth)
	api.GET("/items", s.handleItems) // ?source=&date=YYYY-MM-DD&limit=20
	api.POST("/refresh/:source", s.handleRefreshSource)
	api.POST("/refresh-all", s.handleRefreshAll)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sources":     s.svc.FetchStatus(c.Request.Context()),
		"retry_queue": s.svc.RetryQueueSize(),
		"updated_at":  time.Now(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	components := make(map[string]string, len(s.checks))
	healthy := true
	for name, check := range s.checks {
		if err := check.Health(c.Request.Context()); err != nil {
			components[name] = err.Error()
			healthy = false
			continue
		}
		components[name] = "ok"
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "components": components})
}

func (s *Server) handleItems(c *gin.Context) {
	source := c.Query("source")
	if source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source is required"})
		return
	}

	day := time.Now()
	if v := c.Query("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	items, err := s.items.GetItems(c.Request.Context(), source, day, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"source": source,
		"date":   day.Format("2006-01-02"),
		"count":  len(items),
		"items":  items,
	})
}

func (s *Server) handleRefreshSource(c *gin.Context) {
	source := c.Param("source")
	if !s.isKnownSource(source) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown source %q", source)})
		return
	}

	refreshed := s.svc.ForceRetrySource(c.Request.Context(), source)
	c.JSON(http.StatusOK, gin.H{"source": source, "refreshed": refreshed})
}

func (s *Server) handleRefreshAll(c *gin.Context) {
	s.svc.RefreshAll()
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh started"})
}

func (s *Server) isKnownSource(name string) bool {
	for _, source := range s.svc.Sources() {
		if source == name {
			return true
		}
	}
	return false
}
