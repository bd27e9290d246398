package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"library-services/internal/api/router"
	"library-services/internal/config"
	"library-services/internal/infrastructure/cache"
	"library-services/internal/infrastructure/database"
	"library-services/internal/observability/tracing"
	"library-services/internal/service"
	"library-services/migrations"
	"library-services/pkg/logger"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"
)

const (
	ledgerService  = "ledger"
	catalogService = "catalog"
)

// serviceDefaults are applied when the matching flag was left untouched
type serviceDefaults struct {
	port   string
	dbName string
}

var defaultsFor = map[string]serviceDefaults{
	ledgerService:  {port: "8081", dbName: "library_users"},
	catalogService: {port: "8080", dbName: "library_books"},
}

// serviceFlags are the per-process overrides both server commands accept
type serviceFlags struct {
	port   string
	dbName string
}

func (f serviceFlags) apply(cfg *config.Config, name string) {
	defaults := defaultsFor[name]
	cfg.Server.Port = firstNonEmpty(f.port, defaults.port)
	cfg.Database.Name = firstNonEmpty(f.dbName, defaults.dbName)
	if cfg.Database.Driver == database.DriverSQLite && (cfg.Database.Path == "" || cfg.Database.Path == "library.db") {
		cfg.Database.Path = cfg.Database.Name + ".db"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// migrationSource prefers database.migrations_dir/<service> on disk and falls
// back to the migrations compiled into the binary.
func migrationSource(cfg *config.Config, name string) (fs.FS, error) {
	if cfg.Database.MigrationsDir != "" {
		return os.DirFS(filepath.Join(cfg.Database.MigrationsDir, name)), nil
	}
	return migrations.For(name)
}

// openDatabase connects to the service's own database and brings its schema
// up to date. It returns nil on the memory driver.
func openDatabase(cfg *config.Config, name string, models ...interface{}) (*gorm.DB, error) {
	if strings.EqualFold(cfg.Database.Driver, database.DriverMemory) {
		logger.Warn("Using in-memory %s store; data is lost on restart", name)
		return nil, nil
	}

	db, err := database.NewConnection(database.Config{
		Driver:     cfg.Database.Driver,
		Host:       cfg.Database.Host,
		Port:       cfg.Database.Port,
		User:       cfg.Database.Username,
		Password:   cfg.Database.Password,
		DBName:     cfg.Database.Name,
		SSLMode:    cfg.Database.SSLMode,
		Path:       cfg.Database.Path,
		LogQueries: cfg.Database.LogQueries,
	})
	if err != nil {
		return nil, err
	}

	source, err := migrationSource(cfg, name)
	if err != nil {
		return nil, err
	}
	if err := database.Prepare(db, cfg.Database.Driver, source, models...); err != nil {
		return nil, err
	}

	if err := database.HealthCheck(db); err != nil {
		return nil, fmt.Errorf("database health check failed: %w", err)
	}
	return db, nil
}

// needsRedis reports whether any catalog component is configured on redis
func needsRedis(cfg *config.Config) bool {
	outboxOnRedis := cfg.Catalog.ConsistencyMode == service.ConsistencyOutbox && strings.EqualFold(cfg.Queue.Type, "redis")
	idempotencyOnRedis := cfg.Idempotency.Enabled && strings.EqualFold(cfg.Idempotency.Store, "redis")
	return outboxOnRedis || idempotencyOnRedis
}

func openBackends(cfg *config.Config, name string, withRedis bool, models ...interface{}) (router.Backends, error) {
	db, err := openDatabase(cfg, name, models...)
	if err != nil {
		return router.Backends{}, err
	}

	backends := router.Backends{DB: db}
	if withRedis {
		client := cache.NewRedisClient(&cfg.Cache)
		if err := cache.HealthCheck(context.Background(), client); err != nil {
			return router.Backends{}, err
		}
		backends.Redis = client
	}
	return backends, nil
}

// serve runs handler until SIGINT or SIGTERM, then drains in-flight requests
// and runs cleanup.
func serve(cfg *config.Config, serviceName string, handler http.Handler, cleanup func()) {
	shutdownTracing, err := tracing.Init(context.Background(), cfg.Tracing.Endpoint, serviceName, cfg.App.Environment)
	if err != nil {
		logger.Warn("Tracing disabled: %v", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	srv := &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        otelhttp.NewHandler(handler, serviceName),
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Info("Starting %s on port %s", serviceName, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start %s: %v", serviceName, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down %s...", serviceName)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}
	if cleanup != nil {
		cleanup()
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("Failed to flush traces: %v", err)
	}

	logger.Info("%s exited", serviceName)
}
