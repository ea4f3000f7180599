package ui

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SessionCounter reports how many sessions are live
type SessionCounter interface {
	SessionCount() int
}

// OpsConfig holds ops router configuration
type OpsConfig struct {
	Port          string
	EnableProfile bool
}

// OpsApp serves health checks and profiling on a separate port
type OpsApp struct {
	router   *chi.Mux
	sessions SessionCounter
	started  time.Time
}

// NewOpsApp creates the ops router
func NewOpsApp(sessions SessionCounter, config OpsConfig) *OpsApp {
	a := &OpsApp{
		router:   chi.NewRouter(),
		sessions: sessions,
		started:  time.Now(),
	}
	a.setupMiddleware()
	a.setupRoutes(config)
	return a
}

// Handler exposes the router
func (a *OpsApp) Handler() http.Handler {
	return a.router
}

// setupMiddleware configures HTTP middleware
func (a *OpsApp) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the ops routes
func (a *OpsApp) setupRoutes(config OpsConfig) {
	a.router.Get("/healthz", a.handleHealth)
	if config.EnableProfile {
		a.router.Mount("/debug", middleware.Profiler())
		log.Printf("[Ops] Profiling enabled at /debug/pprof/")
	}
}

func (a *OpsApp) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"sessions": a.sessions.SessionCount(),
		"uptime":   time.Since(a.started).Round(time.Second).String(),
	})
}
