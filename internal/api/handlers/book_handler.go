package handlers

import (
	"context"
	"net/http"
	"strings"

	"library-services/internal/api/middleware"
	"library-services/internal/domain/book"
	"library-services/internal/service"
	"library-services/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BookHandler serves the catalog routes
type BookHandler struct {
	bookService        book.BookService
	idempotencyService *service.IdempotencyService
	port               string
}

// NewBookHandler creates a new book handler. idempotencyService may be nil,
// in which case Idempotency-Key headers are ignored.
func NewBookHandler(bookService book.BookService, idempotencyService *service.IdempotencyService, port string) *BookHandler {
	return &BookHandler{
		bookService:        bookService,
		idempotencyService: idempotencyService,
		port:               port,
	}
}

// CreateBook handles POST /api/books
func (h *BookHandler) CreateBook(c *gin.Context) {
	var req book.BookRequest
	if !bindAndValidate(c, &req) {
		return
	}

	b, err := h.bookService.CreateBook(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, b)
}

// ListBooks handles GET /api/books
func (h *BookHandler) ListBooks(c *gin.Context) {
	h.respondList(c)(h.bookService.ListBooks(c.Request.Context()))
}

// GetBookByID handles GET /api/books/id/:id
func (h *BookHandler) GetBookByID(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	b, err := h.bookService.GetBook(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, b)
}

// GetBookByISBN handles GET /api/books/:isbn
func (h *BookHandler) GetBookByISBN(c *gin.Context) {
	b, err := h.bookService.GetBookByISBN(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, b)
}

// ListBooksByAuthor handles GET /api/books/author/:author
func (h *BookHandler) ListBooksByAuthor(c *gin.Context) {
	h.respondList(c)(h.bookService.ListBooksByAuthor(c.Request.Context(), c.Param("author")))
}

// ListAvailableBooks handles GET /api/books/available
func (h *BookHandler) ListAvailableBooks(c *gin.Context) {
	h.respondList(c)(h.bookService.ListAvailableBooks(c.Request.Context()))
}

// SearchBooks handles GET /api/books/search?title=
func (h *BookHandler) SearchBooks(c *gin.Context) {
	h.respondList(c)(h.bookService.SearchBooks(c.Request.Context(), strings.TrimSpace(c.Query("title"))))
}

// Stats handles GET /api/books/stats
func (h *BookHandler) Stats(c *gin.Context) {
	stats, err := h.bookService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// UpdateBook handles PUT /api/books/:isbn
func (h *BookHandler) UpdateBook(c *gin.Context) {
	var req book.BookRequest
	if !bindAndValidate(c, &req) {
		return
	}

	b, err := h.bookService.UpdateBook(c.Request.Context(), c.Param("isbn"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, b)
}

// DeleteBook handles DELETE /api/books/:id
func (h *BookHandler) DeleteBook(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.bookService.DeleteBook(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Book deleted successfully",
		"bookId":  id.String(),
	})
}

// BorrowBook handles PUT /api/books/:isbn/borrow?userId=
func (h *BookHandler) BorrowBook(c *gin.Context) {
	h.lend(c, "borrow", h.bookService.BorrowBook)
}

// ReturnBook handles PUT /api/books/:isbn/return?userId=
func (h *BookHandler) ReturnBook(c *gin.Context) {
	h.lend(c, "return", h.bookService.ReturnBook)
}

// Health handles GET /api/books/health
func (h *BookHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"service": "Book Service",
		"port":    h.port,
	})
}

type lendFunc func(ctx context.Context, isbn string, userID uuid.UUID) (*book.Book, error)

// lend runs a borrow or return. With an Idempotency-Key header the key is
// claimed before anything changes: a repeated request gets the stored
// response, and one arriving while the first is still running is refused.
func (h *BookHandler) lend(c *gin.Context, operation string, apply lendFunc) {
	isbn := c.Param("isbn")
	userID, ok := parseUUID(c, "userId", c.Query("userId"))
	if !ok {
		return
	}

	ctx := c.Request.Context()
	key := ""
	if h.idempotencyService != nil {
		key = c.GetString(middleware.IdempotencyKey)
	}
	fingerprint := map[string]string{"operation": operation, "isbn": isbn}

	if key != "" {
		stored, duplicate, err := h.idempotencyService.BeginRequest(ctx, key, userID, fingerprint)
		if err != nil {
			respondError(c, err)
			return
		}
		if duplicate {
			c.Header("Idempotent-Replayed", "true")
			c.Data(stored.StatusCode, "application/json; charset=utf-8", []byte(stored.ResponseData))
			return
		}
	}

	b, err := apply(ctx, isbn, userID)
	if key != "" {
		ctx = context.WithoutCancel(ctx)
	}
	if err != nil {
		if key != "" {
			h.idempotencyService.ReleaseRequest(ctx, key)
		}
		respondError(c, err)
		return
	}

	if key != "" {
		if err := h.idempotencyService.StoreProcessedRequest(ctx, key, userID, fingerprint, b, http.StatusOK); err != nil {
			logger.Warn("Could not remember %s response for idempotency key %s: %v", operation, key, err)
		}
	}

	c.JSON(http.StatusOK, b)
}

func (h *BookHandler) respondList(c *gin.Context) func([]*book.Book, error) {
	return func(books []*book.Book, err error) {
		if err != nil {
			respondError(c, err)
			return
		}
		if books == nil {
			books = []*book.Book{}
		}
		c.JSON(http.StatusOK, books)
	}
}
