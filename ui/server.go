package ui

import (
	"context"
	"errors"
	"log"
	"net/http"

	"tidyframe/app"
	"tidyframe/internal/config"

	"github.com/gin-gonic/gin"
)

// Server is the JSON API the browser client drives
type Server struct {
	router  *gin.Engine
	service *app.CleaningService
	config  config.ServerConfig
	http    *http.Server
}

// NewServer creates the API server around the cleaning service
func NewServer(service *app.CleaningService, cfg config.ServerConfig) *Server {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = DefaultSessionCookie
	}

	s := &Server{
		router:  gin.Default(),
		service: service,
		config:  cfg,
	}
	s.router.MaxMultipartMemory = cfg.UploadMaxMB << 20
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router

	// Dataset lifecycle
	r.POST("/upload", s.handleUpload)
	r.POST("/database_query", s.handleDatabaseQuery)
	r.GET("/table", s.handleTable)
	r.POST("/reset", s.handleReset)
	r.GET("/history", s.handleHistory)

	// Mutating operations
	r.POST("/clean_operation", s.handleCleanOperation)
	r.POST("/undo", s.handleUndo)
	r.POST("/redo", s.handleRedo)
	r.POST("/auto_clean", s.handleAutoClean)
	r.POST("/optimize_categories", s.handleOptimizeCategories)

	// Auto-clean configuration
	r.GET("/get_auto_clean_config", s.handleGetAutoCleanConfig)
	r.POST("/save_auto_clean_config", s.handleSaveAutoCleanConfig)

	// Read-only analysis
	r.GET("/calculate_outlier_ranges", s.handleOutlierRanges)
	r.GET("/column_stats/*column", s.handleColumnStats)
	r.GET("/get_suggestions", s.handleSuggestions)
	r.GET("/get_valid_columns_for_formula", s.handleValidFormulaColumns)
	r.POST("/apply_formula", s.handleApplyFormula)

	// Search view
	r.POST("/perform_search", s.handlePerformSearch)
	r.POST("/clear_search_filter", s.handleClearSearch)

	// Saved sessions and downloads
	r.POST("/save", s.handleSave)
	r.GET("/saved_sessions", s.handleListSaved)
	r.POST("/open_saved/:filename", s.handleOpenSaved)
	r.DELETE("/saved_sessions/:filename", s.handleDeleteSaved)
	r.POST("/delete_saved/:filename", s.handleDeleteSaved)
	r.GET("/download/:filetype", s.handleDownload)
	r.GET("/download_saved_file/:filename/:filetype", s.handleDownloadSaved)
}

// Start serves the API until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting tidyframe API on http://%s", addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Printf("Shutting down tidyframe API")
	return s.http.Shutdown(shutdownCtx)
}
