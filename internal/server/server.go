package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kanban/internal/storage"
	"kanban/internal/taskstore"
	"kanban/web"
)

// Server provides HTTP handlers for the kanban board.
type Server struct {
	engine    *gin.Engine
	store     *taskstore.Store
	logger    *slog.Logger
	staticDir string
}

// New constructs the HTTP server with routes and middleware configured.
func New(store *taskstore.Store, logger *slog.Logger, staticDir string) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))
	router.SetHTMLTemplate(tmpl)

	srv := &Server{
		engine:    router,
		store:     store,
		logger:    logger,
		staticDir: staticDir,
	}

	if err := srv.registerRoutes(); err != nil {
		return nil, err
	}
	return srv, nil
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API, page and static handlers together.
func (s *Server) registerRoutes() error {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.GET("/stats", s.handleStats)

		api.GET("/tasks", s.handleListTasks)
		api.GET("/tasks/:id", s.handleGetTask)
		api.PUT("/tasks/:id/status", s.handleUpdateStatus)
		api.DELETE("/tasks/:id", s.handleDeleteTask)

		api.POST("/task", s.handleCreateTask)
		api.POST("/move", s.handleMoveTask)
		api.POST("/delete", s.handleDeleteByBody)
	}

	s.engine.GET("/", s.handleBoardPage)
	s.engine.GET("/board", s.handleInteractivePage)
	s.engine.POST("/tasks", s.handleCreateForm)
	s.engine.POST("/tasks/:id/move", s.handleMoveForm)
	s.engine.POST("/tasks/:id/delete", s.handleDeleteForm)

	return s.mountStatic()
}

// handleHealth reports readiness, including the storage backend.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.respondError(c, http.StatusServiceUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStats exposes the task store counters.
func (s *Server) handleStats(c *gin.Context) {
	respondSuccess(c, http.StatusOK, s.store.Stats())
}

// parseID converts a path parameter to int64 with error handling.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return id, true
}

// statusFor maps store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, taskstore.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	} else {
		s.logger.Debug("request rejected", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
