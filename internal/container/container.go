package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"tidyframe/adapters/excel"
	"tidyframe/adapters/memory"
	"tidyframe/adapters/postgres"
	"tidyframe/adapters/sqlsource"
	"tidyframe/adapters/sqlite"
	"tidyframe/app"
	"tidyframe/internal"
	"tidyframe/internal/cleaning"
	"tidyframe/internal/config"
	"tidyframe/internal/render"
	"tidyframe/internal/session"
	"tidyframe/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Storage
	SavedRepo  ports.SavedSessionRepository
	FrameStore session.FrameStore

	// Engines and sessions
	Sessions *session.Manager
	Engine   *cleaning.Engine
	Renderer *render.Renderer
	Reader   *excel.DataReader
	Writer   *excel.DataWriter
	Queries  *sqlsource.Loader

	Service *app.CleaningService

	cancel context.CancelFunc
}

// New creates a container with in-memory saved-session metadata. Call InitWithDatabase to
// switch metadata to PostgreSQL.
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	logger := internal.DefaultLogger.With("container")
	if level, ok := internal.ParseLogLevel(cfg.LogLevel); ok {
		internal.DefaultLogger.SetLevel(level)
		logger.SetLevel(level)
	}

	frames, err := session.NewLocalFrameStore(cfg.Storage.SavedDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize frame store: %w", err)
	}

	c := &Container{
		Config:     cfg,
		Logger:     logger,
		SavedRepo:  memory.NewSavedSessionRepository(),
		FrameStore: frames,
		Sessions: session.NewManager(session.ManagerConfig{
			HistoryDepth: cfg.Session.HistoryDepth,
			TTL:          cfg.Session.TTL,
		}),
		Engine:   cleaning.NewEngine(nil),
		Renderer: render.NewRenderer(cfg.Display.MaxRows),
		Reader:   excel.NewDataReader(excel.DefaultReaderConfig(), nil),
		Writer:   excel.NewDataWriter(excel.DefaultWriterConfig()),
	}
	if cfg.Query.Enabled {
		c.Queries = sqlsource.NewLoader(sqlsource.Config{Timeout: cfg.Query.Timeout, MaxRows: cfg.Query.MaxRows}, nil)
	}
	c.initService()

	logger.Info("Container initialized (saved sessions in %s, history depth %d)", cfg.Storage.SavedDir, cfg.Session.HistoryDepth)
	return c, nil
}

// InitWithDatabase stores saved-session metadata in PostgreSQL or SQLite, by driver name
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	c.DB = db
	switch db.DriverName() {
	case config.DriverSQLite:
		c.SavedRepo = sqlite.NewSavedSessionRepository(db)
	default:
		c.SavedRepo = postgres.NewSavedSessionRepository(db)
	}
	c.initService()

	log.Printf("Container initialized successfully with %s database connection", db.DriverName())
	return nil
}

func (c *Container) initService() {
	c.Service = app.NewCleaningService(
		c.Sessions,
		c.Engine,
		c.Renderer,
		c.Reader,
		c.Writer,
		c.FrameStore,
		c.SavedRepo,
		c.queryLoader(),
		app.ServiceConfig{
			StatsSampleCap:  c.Config.Display.StatsSampleCap,
			SuggestionLimit: c.Config.Display.SuggestionLimit,
		},
	)
}

// queryLoader returns nil when queries are disabled so the service reports them as such
func (c *Container) queryLoader() app.QueryLoader {
	if c.Queries == nil {
		return nil
	}
	return c.Queries
}

// Start launches the background janitors. They stop on Shutdown or when ctx is cancelled.
func (c *Container) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.Sessions.StartJanitor(ctx, c.Config.Session.JanitorInterval)

	retention := c.Config.Storage.SavedRetention
	if retention <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.Service.PurgeSaved(ctx, retention); err != nil {
					c.Logger.Warn("Saved session purge failed: %v", err)
				}
			}
		}
	}()
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
