package router

import (
	"context"

	"library-services/internal/api/handlers"
	"library-services/internal/api/middleware"
	"library-services/internal/config"
	"library-services/internal/infrastructure/cache"
	"library-services/internal/infrastructure/database"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Backends carries the connections a service was started with. DB is nil on
// the memory driver and Redis is nil when nothing is configured to use it.
type Backends struct {
	DB    *gorm.DB
	Redis redis.UniversalClient
}

// healthChecks probes whichever backends are present
func (b Backends) healthChecks() map[string]handlers.Checker {
	checks := make(map[string]handlers.Checker)
	if b.DB != nil {
		db := b.DB
		checks["database"] = func(ctx context.Context) error {
			return database.HealthCheck(db.WithContext(ctx))
		}
	}
	if b.Redis != nil {
		client := b.Redis
		checks["redis"] = func(ctx context.Context) error {
			return cache.HealthCheck(ctx, client)
		}
	}
	return checks
}

// newEngine builds the gin engine shared by both services: logging, metrics,
// CORS, recovery and the probe routes.
func newEngine(service string, cfg *config.Config, backends Backends) *gin.Engine {
	if cfg.App.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(service))
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(service))
	}
	r.Use(middleware.CORS())
	r.Use(gin.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.App.Version, backends.healthChecks())
	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/ready", healthHandler.ReadinessCheck)
	r.GET("/live", healthHandler.LivenessCheck)

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	return r
}
