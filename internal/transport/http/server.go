// Package httpapi exposes the run trigger and read-only portfolio views.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"glbfolio/internal/logger"
	"glbfolio/internal/runner"
	"glbfolio/internal/store/gormstore"
)

// Server hosts the glbfolio HTTP API.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig describes the server dependencies. CronSecret guards the
// mutating endpoints; when empty they are disabled rather than left open.
type ServerConfig struct {
	Addr       string
	CronSecret string
	Runner     *runner.Runner
	Store      *gormstore.GormStore
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Runner == nil || cfg.Store == nil {
		return nil, errors.New("http server requires runner and store")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	h := &handlers{runner: cfg.Runner, store: cfg.Store}
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	api := router.Group("/api")
	api.GET("/portfolio", h.portfolio)
	api.GET("/runs", h.runs)
	api.GET("/equity", h.equityHistory)

	guarded := api.Group("", bearerAuth(cfg.CronSecret))
	guarded.GET("/cron", h.cron)
	guarded.POST("/cron", h.cron)
	guarded.POST("/prices/refresh", h.refreshPrices)

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	if s == nil {
		return nil
	}
	return s.router
}

// Start serves until the context ends, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func bearerAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "cron secret not configured"})
			return
		}
		if c.GetHeader("Authorization") != "Bearer "+secret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}
