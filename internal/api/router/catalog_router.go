package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"library-services/internal/api/handlers"
	"library-services/internal/api/middleware"
	"library-services/internal/config"
	"library-services/internal/domain/book"
	"library-services/internal/infrastructure/discovery"
	"library-services/internal/infrastructure/ledger"
	"library-services/internal/infrastructure/queue"
	"library-services/internal/infrastructure/repository"
	interfaces "library-services/internal/interfaces/infrastructure"
	serviceInterfaces "library-services/internal/interfaces/service"
	"library-services/internal/reliability/circuitbreaker"
	"library-services/internal/reliability/retry"
	"library-services/internal/service"
	"library-services/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

const CatalogServiceName = "book-service"

// RouterComponents is the catalog engine plus the background work started
// with it. QueueService is nil unless the catalog runs in outbox mode.
// Call Shutdown once the server has stopped.
type RouterComponents struct {
	Router       *gin.Engine
	QueueService interfaces.QueueService

	stopCleanup context.CancelFunc
}

// Shutdown stops the idempotency cleanup loop and the ledger sync workers
func (rc *RouterComponents) Shutdown() {
	if rc.stopCleanup != nil {
		rc.stopCleanup()
	}
	if rc.QueueService != nil {
		logger.Info("Stopping ledger sync workers...")
		rc.QueueService.StopWorkers()
	}
}

// NewCatalogRouterWithQueue wires the catalog: book store, stats, ledger
// client, optional outbox queue and idempotency store. Workers are started.
func NewCatalogRouterWithQueue(cfg *config.Config, backends Backends) (*RouterComponents, error) {
	bookRepo, statsRepo, err := newBookStores(backends.DB)
	if err != nil {
		return nil, err
	}

	ledgerClient := NewLedgerClient(cfg)

	var queueService interfaces.QueueService
	if cfg.Catalog.ConsistencyMode == service.ConsistencyOutbox {
		queueService, err = newLedgerSyncQueue(cfg, backends)
		if err != nil {
			return nil, err
		}
	}

	bookService, err := service.NewBookService(bookRepo, statsRepo, ledgerClient, queueService, service.BookServiceOptions{
		ConsistencyMode:     cfg.Catalog.ConsistencyMode,
		EligibilityPrecheck: cfg.Catalog.EligibilityPrecheck,
	})
	if err != nil {
		return nil, err
	}

	if queueService != nil {
		retryCfg := retry.Config{
			MaxAttempts:       cfg.Retry.MaxAttempts,
			InitialBackoff:    cfg.Retry.InitialBackoff,
			MaxBackoff:        cfg.Retry.MaxBackoff,
			BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		}
		syncService := service.NewLedgerSyncService(ledgerClient, bookRepo, queueService, retryCfg, cfg.Queue.MaxAttempts)
		queueService.SetProcessor(syncService)
		queueService.StartWorkers()
	}

	idempotencyService, err := newIdempotencyService(cfg, backends)
	if err != nil {
		if queueService != nil {
			queueService.StopWorkers()
		}
		return nil, err
	}

	components := &RouterComponents{
		Router:       NewCatalogRouterWithService(cfg, backends, bookService, idempotencyService),
		QueueService: queueService,
	}
	if idempotencyService != nil {
		ctx, cancel := context.WithCancel(context.Background())
		components.stopCleanup = cancel
		go idempotencyService.RunCleanup(ctx, cfg.Idempotency.CleanupInterval)
	}
	return components, nil
}

// NewCatalogRouterWithService mounts the catalog routes on top of bookService.
// idempotencyService may be nil.
func NewCatalogRouterWithService(cfg *config.Config, backends Backends, bookService book.BookService, idempotencyService *service.IdempotencyService) *gin.Engine {
	r := newEngine(CatalogServiceName, cfg, backends)

	bookHandler := handlers.NewBookHandler(bookService, idempotencyService, cfg.Server.Port)

	books := r.Group("/api/books")
	{
		books.POST("", bookHandler.CreateBook)
		books.GET("", bookHandler.ListBooks)
		books.GET("/health", bookHandler.Health)
		books.GET("/available", bookHandler.ListAvailableBooks)
		books.GET("/search", bookHandler.SearchBooks)
		books.GET("/stats", bookHandler.Stats)
		books.GET("/id/:id", bookHandler.GetBookByID)
		books.GET("/author/:author", bookHandler.ListBooksByAuthor)
		books.GET("/:isbn", bookHandler.GetBookByISBN)
		books.PUT("/:isbn", bookHandler.UpdateBook)
		books.DELETE("/:id", bookHandler.DeleteBook)

		lending := books.Group("", middleware.IdempotencyMiddleware())
		{
			lending.PUT("/:isbn/borrow", bookHandler.BorrowBook)
			lending.PUT("/:isbn/return", bookHandler.ReturnBook)
		}
	}

	return r
}

// NewLedgerClient builds the catalog's ledger client from the discovery map
func NewLedgerClient(cfg *config.Config) serviceInterfaces.LedgerClient {
	var breaker *circuitbreaker.CircuitBreaker
	if cb := cfg.Ledger.CircuitBreaker; cb.Enabled {
		breaker = circuitbreaker.NewCircuitBreaker(cb.FailureThreshold, cb.SuccessThreshold, cb.OpenTimeout)
		breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
			logger.Warn("Ledger circuit breaker moved from %s to %s", from, to)
		})
	}

	return ledger.NewClient(discovery.NewStaticResolver(cfg.Discovery.Services), ledger.Config{
		ServiceName: cfg.Ledger.ServiceName,
		Timeout:     cfg.Ledger.Timeout,
		Breaker:     breaker,
	})
}

func newBookStores(db *gorm.DB) (book.BookRepository, book.StatsRepository, error) {
	if db == nil {
		memory := repository.NewMemoryBookRepository()
		return memory, memory, nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	dialect := db.Dialector.Name()
	if dialect == "sqlite" {
		dialect = "sqlite3"
	}
	stats := repository.NewCatalogStatsRepository(sqlx.NewDb(sqlDB, dialect), dialect)
	return repository.NewBookRepository(db), stats, nil
}

func newLedgerSyncQueue(cfg *config.Config, backends Backends) (interfaces.QueueService, error) {
	switch strings.ToLower(cfg.Queue.Type) {
	case "redis":
		if backends.Redis == nil {
			return nil, errors.New("redis ledger sync queue configured without a redis client")
		}
		logger.Info("Using Redis ledger sync queue")
		return queue.NewRedisQueue(backends.Redis, cfg.Queue.Workers), nil
	case "memory", "":
		logger.Info("Using in-memory ledger sync queue")
		return queue.NewInMemoryQueue(cfg.Queue.BufferSize, cfg.Queue.Workers), nil
	default:
		return nil, fmt.Errorf("unknown queue type: %s", cfg.Queue.Type)
	}
}

func newIdempotencyService(cfg *config.Config, backends Backends) (*service.IdempotencyService, error) {
	if !cfg.Idempotency.Enabled {
		return nil, nil
	}

	var repo interfaces.IdempotencyRepository
	switch strings.ToLower(cfg.Idempotency.Store) {
	case "redis":
		if backends.Redis == nil {
			return nil, errors.New("redis idempotency store configured without a redis client")
		}
		repo = repository.NewRedisIdempotencyRepository(backends.Redis)
	case "memory", "":
		repo = repository.NewMemoryIdempotencyRepository()
	default:
		return nil, fmt.Errorf("unknown idempotency store: %s", cfg.Idempotency.Store)
	}
	return service.NewIdempotencyService(repo, cfg.Idempotency.TTL), nil
}
