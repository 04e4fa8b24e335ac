package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aliuyar1234/circles/internal/audit"
	"github.com/aliuyar1234/circles/internal/circles"
	"github.com/aliuyar1234/circles/internal/config"
	"github.com/aliuyar1234/circles/internal/db"
	"github.com/aliuyar1234/circles/internal/retention"
	"github.com/aliuyar1234/circles/internal/store/memory"
	"github.com/aliuyar1234/circles/internal/store/postgres"
	"github.com/aliuyar1234/circles/internal/store/sqlite"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store is everything the application persists through one backend
type Store interface {
	circles.Store
	audit.Store
	retention.Store
}

// App holds the application state
type App struct {
	Config *config.Config
	Store  Store
	Router http.Handler

	server *http.Server
}

// New creates and initializes a new application instance
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	setupLogger(cfg.LogLevel, cfg.IsDev())

	log.Info().Msg("Initializing Circles application")
	log.Info().Interface("config", cfg.RedactedValues()).Msg("Configuration loaded")

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Store:  store,
		Router: NewRouter(store, cfg),
	}

	log.Info().Msg("Application initialized successfully")
	return app, nil
}

// OpenStore connects the backend selected by CIRCLES_STORE
func OpenStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		log.Info().Msg("Connecting to database...")
		pool, err := db.Connect(ctx, cfg.DBDSN, db.PoolSettings{
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info().Msg("Database connection established")

		if cfg.IsDev() {
			log.Info().Msg("Development mode: running migrations automatically")
			if err := db.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		} else {
			log.Info().Msg("Production mode: migrations must be run manually")
		}
		return postgres.New(pool), nil

	case config.StoreSQLite:
		log.Info().Str("path", cfg.SQLitePath).Msg("Opening SQLite database")
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil

	case config.StoreMemory:
		log.Warn().Msg("Using in-memory store: all data is lost on restart")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// Start starts the HTTP server and blocks until it stops
func (a *App) Start() error {
	addr := a.Config.HTTPAddr
	log.Info().Str("addr", addr).Msg("Starting HTTP server")

	a.server = &http.Server{
		Addr:         addr,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a.server.ListenAndServe()
}

// Shutdown drains in-flight requests, then closes the store
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.server != nil {
		log.Info().Msg("Stopping HTTP server")
		err = a.server.Shutdown(ctx)
	}
	a.Close()
	return err
}

// Close releases the store
func (a *App) Close() {
	log.Info().Msg("Shutting down application")
	if a.Store != nil {
		log.Info().Msg("Closing store")
		a.Store.Close()
	}
}

// setupLogger configures the global logger
func setupLogger(level string, pretty bool) {
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Debug().Str("level", level).Msg("Logger configured")
}
