// Package server exposes the management console API and the Telegram
// webhook endpoint over a single gin router.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmelo/groupwarden/internal/bot"
	"github.com/dmelo/groupwarden/internal/config"
	"github.com/dmelo/groupwarden/internal/database"
)

const shutdownTimeout = 10 * time.Second

// Server wires the console handlers, the webhook receiver, and the HTTP
// listener together.
type Server struct {
	router  *gin.Engine
	http    *http.Server
	cfg     *config.Config
	store   database.Store
	cache   *bot.ConfigCache
	manager *bot.Manager
	logger  *slog.Logger
}

// New builds the router. Console routes sit behind JWT auth; the webhook
// and health endpoints are open.
func New(cfg *config.Config, store database.Store, cache *bot.ConfigCache, manager *bot.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:  router,
		cfg:     cfg,
		store:   store,
		cache:   cache,
		manager: manager,
		logger:  logger.With("component", "server"),
	}
	s.http = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.health)
	s.router.POST("/webhook", s.receiveWebhook)

	s.router.POST("/api/auth/login", s.login)

	api := s.router.Group("/api")
	api.Use(s.requireAuth())
	{
		api.GET("/bot/status", s.botStatus)
		api.POST("/bot/start", s.startBot)
		api.POST("/bot/stop", s.stopBot)

		api.GET("/groups", s.listGroups)
		api.POST("/groups", s.createGroup)
		api.PATCH("/groups/:id", s.updateGroup)
		api.DELETE("/groups/:id", s.deleteGroup)
		api.DELETE("/groups", s.clearGroups)
		api.POST("/groups/:id/refresh", s.refreshGroup)

		api.GET("/commands", s.listCommands)
		api.POST("/commands", s.createCommand)
		api.PATCH("/commands/:id", s.updateCommand)
		api.DELETE("/commands/:id", s.deleteCommand)

		api.GET("/logs", s.listLogs)
		api.GET("/logs/system", s.listSystemLogs)
	}
}

// Start runs the listener until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
