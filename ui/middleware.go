package ui

import (
	"net/http"
	"strings"
	"time"

	"tidyframe/domain/core"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultSessionCookie names the cookie carrying the session id
	DefaultSessionCookie = "tidyframe_session"
	// SessionHeader lets non-browser clients pass the session id explicitly
	SessionHeader = "X-Session-ID"

	shutdownTimeout = 10 * time.Second
)

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	if origins := allowedOrigins(s.config.AllowedOrigins); len(origins) > 0 {
		s.router.Use(corsMiddleware(origins))
	}
	s.router.Use(s.limitUploads())
}

// limitUploads caps request bodies on the upload route
func (s *Server) limitUploads() gin.HandlerFunc {
	limit := s.config.UploadMaxMB << 20
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Method == http.MethodPost && c.FullPath() == "/upload" {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

func allowedOrigins(raw string) map[string]bool {
	out := make(map[string]bool)
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out[o] = true
		}
	}
	return out
}

func corsMiddleware(origins map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origins["*"] || origins[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Content-Type, "+SessionHeader)
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Expose-Headers", SessionHeader+", Content-Disposition")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// sessionID reads the session id from the header, falling back to the cookie
func (s *Server) sessionID(c *gin.Context) core.SessionID {
	if id := strings.TrimSpace(c.GetHeader(SessionHeader)); id != "" {
		return core.SessionID(id)
	}
	if id, err := c.Cookie(s.config.SessionCookie); err == nil {
		return core.SessionID(id)
	}
	return ""
}

func (s *Server) setSession(c *gin.Context, id core.SessionID) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.config.SessionCookie, id.String(), 0, "/", "", s.config.CookieSecure, true)
	c.Header(SessionHeader, id.String())
}

func (s *Server) clearSession(c *gin.Context) {
	c.SetCookie(s.config.SessionCookie, "", -1, "/", "", s.config.CookieSecure, true)
}
