package router

import (
	"library-services/internal/api/handlers"
	"library-services/internal/config"
	"library-services/internal/domain/user"
	"library-services/internal/infrastructure/repository"
	"library-services/internal/service"

	"github.com/gin-gonic/gin"
)

const LedgerServiceName = "user-service"

// NewLedgerRouter wires the user ledger on the configured store
func NewLedgerRouter(cfg *config.Config, backends Backends) *gin.Engine {
	var userRepo user.UserRepository
	if backends.DB != nil {
		userRepo = repository.NewUserRepository(backends.DB)
	} else {
		userRepo = repository.NewMemoryUserRepository()
	}

	return NewLedgerRouterWithService(cfg, backends, service.NewUserService(userRepo))
}

// NewLedgerRouterWithService mounts the ledger routes on top of userService
func NewLedgerRouterWithService(cfg *config.Config, backends Backends, userService user.UserService) *gin.Engine {
	r := newEngine(LedgerServiceName, cfg, backends)

	userHandler := handlers.NewUserHandler(userService, cfg.Server.Port)

	users := r.Group("/api/users")
	{
		users.POST("", userHandler.CreateUser)
		users.GET("", userHandler.ListUsers)
		users.GET("/health", userHandler.Health)
		users.GET("/email/:email", userHandler.GetUserByEmail)
		users.GET("/:id", userHandler.GetUser)
		users.PUT("/:id", userHandler.UpdateUser)
		users.DELETE("/:id", userHandler.DeleteUser)
		users.PUT("/:id/suspend", userHandler.SuspendUser)
		users.PUT("/:id/activate", userHandler.ActivateUser)
		users.PUT("/:id/renew", userHandler.RenewMembership)
		users.PUT("/:id/borrow", userHandler.BorrowBook)
		users.PUT("/:id/return", userHandler.ReturnBook)
		users.GET("/:id/can-borrow", userHandler.CanBorrow)
	}

	return r
}
