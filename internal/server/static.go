package server

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"kanban/web"
)

// mountStatic serves board assets under /static, preferring the configured
// directory over the embedded copies.
func (s *Server) mountStatic() error {
	if s.staticDir != "" {
		info, err := os.Stat(s.staticDir)
		if err == nil && info.IsDir() {
			s.logger.Info("serving static assets from disk", "path", s.staticDir)
			s.engine.Static("/static", s.staticDir)
			s.mountNoRoute()
			return nil
		}
		s.logger.Warn("static directory missing; using embedded assets", "path", s.staticDir, "error", err)
	}

	assets, err := web.Static()
	if err != nil {
		return fmt.Errorf("embedded assets: %w", err)
	}
	s.engine.StaticFS("/static", http.FS(assets))
	s.mountNoRoute()
	return nil
}

func (s *Server) mountNoRoute() {
	s.engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
			return
		}
		c.String(http.StatusNotFound, "page not found")
	})
}
