package handlers

import (
	"context"
	"net/http"
	"strconv"

	"library-services/internal/domain/user"
	"library-services/pkg/apperror"
	"library-services/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserHandler serves the user ledger routes
type UserHandler struct {
	userService user.UserService
	port        string
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService user.UserService, port string) *UserHandler {
	return &UserHandler{
		userService: userService,
		port:        port,
	}
}

// CreateUser handles POST /api/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req user.CreateUserRequest
	if !bindAndValidate(c, &req) {
		return
	}

	u, err := h.userService.CreateUser(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, u)
}

// ListUsers handles GET /api/users?limit=&offset=
func (h *UserHandler) ListUsers(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		respondError(c, err)
		return
	}

	users, err := h.userService.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	if users == nil {
		users = []*user.User{}
	}

	c.JSON(http.StatusOK, users)
}

// GetUser handles GET /api/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	u, err := h.userService.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, u)
}

// GetUserByEmail handles GET /api/users/email/:email
func (h *UserHandler) GetUserByEmail(c *gin.Context) {
	u, err := h.userService.GetUserByEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, u)
}

// UpdateUser handles PUT /api/users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req user.UpdateUserRequest
	if !bindAndValidate(c, &req) {
		return
	}

	u, err := h.userService.UpdateUser(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, u)
}

// DeleteUser handles DELETE /api/users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.userService.DeleteUser(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User deleted successfully",
		"userId":  id.String(),
	})
}

// SuspendUser handles PUT /api/users/:id/suspend
func (h *UserHandler) SuspendUser(c *gin.Context) {
	h.transition(c, h.userService.SuspendUser)
}

// ActivateUser handles PUT /api/users/:id/activate
func (h *UserHandler) ActivateUser(c *gin.Context) {
	h.transition(c, h.userService.ActivateUser)
}

// RenewMembership handles PUT /api/users/:id/renew
func (h *UserHandler) RenewMembership(c *gin.Context) {
	h.transition(c, h.userService.RenewMembership)
}

// BorrowBook handles PUT /api/users/:id/borrow, called by the catalog
func (h *UserHandler) BorrowBook(c *gin.Context) {
	h.transition(c, h.userService.IncrementBorrowed)
}

// ReturnBook handles PUT /api/users/:id/return, called by the catalog
func (h *UserHandler) ReturnBook(c *gin.Context) {
	h.transition(c, h.userService.DecrementBorrowed)
}

// CanBorrow handles GET /api/users/:id/can-borrow
func (h *UserHandler) CanBorrow(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	canBorrow, err := h.userService.CanBorrow(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.EligibilityResponse{CanBorrow: canBorrow})
}

// Health handles GET /api/users/health
func (h *UserHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"service": "User Service",
		"port":    h.port,
	})
}

func (h *UserHandler) transition(c *gin.Context, apply func(ctx context.Context, id uuid.UUID) (*user.User, error)) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	u, err := apply(c.Request.Context(), id)
	if err != nil {
		logger.Debug("%s %s rejected: %v", c.Request.Method, c.FullPath(), err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, u)
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.Validation("%s must be a non-negative integer", name)
	}
	return n, nil
}
