package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tidyframe/adapters/sqlite"
	"tidyframe/internal/config"
	"tidyframe/internal/container"
	"tidyframe/internal/errors"
	"tidyframe/internal/migration"
	"tidyframe/ui"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

// initDatabase connects to the configured database and brings the schema up to date
func initDatabase(ctx context.Context, appConfig *config.Config) (*sqlx.DB, error) {
	if appConfig.Database.Driver() == config.DriverSQLite {
		return sqlite.Open(ctx, appConfig.Database.DSN())
	}

	db, err := sqlx.Connect(config.DriverPostgres, appConfig.Database.DSN())
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	if appConfig.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(appConfig.Database.MaxOpenConns)
	}
	if appConfig.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(appConfig.Database.MaxIdleConns)
	}

	migrator := migration.NewRunner()
	if err := migrator.Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}
	log.Printf("Database schema at version %s", migrator.Version())
	return db, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	if appConfig.Database.Enabled() {
		db, err := initDatabase(ctx, appConfig)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		if err := appContainer.InitWithDatabase(db); err != nil {
			log.Fatalf("Failed to initialize container: %v", err)
		}
	} else {
		log.Println("DATABASE_URL not set, saved-session metadata kept in memory")
	}

	appContainer.Start(ctx)

	server := ui.NewServer(appContainer.Service, appConfig.Server)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, ":"+appConfig.Server.Port)
	})

	if appConfig.Profiling.Enabled {
		ops := ui.NewOpsApp(appContainer.Service, ui.OpsConfig{
			Port:          appConfig.Profiling.Port,
			EnableProfile: true,
		})
		g.Go(func() error {
			srv := &http.Server{
				Addr:              ":" + appConfig.Profiling.Port,
				Handler:           ops.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
			log.Printf("Ops server starting on :%s (healthz, pprof)", appConfig.Profiling.Port)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Server stopped")
}
