package book

import (
	"context"

	"github.com/google/uuid"
)

// BookRepository defines the interface for book data access.
// Lookups return (nil, nil) when nothing matches.
type BookRepository interface {
	Create(ctx context.Context, book *Book) error
	GetByID(ctx context.Context, id uuid.UUID) (*Book, error)
	GetByISBN(ctx context.Context, isbn string) (*Book, error)
	Update(ctx context.Context, book *Book) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Book, error)
	ListByAuthor(ctx context.Context, author string) ([]*Book, error)
	ListAvailable(ctx context.Context) ([]*Book, error)
	SearchByTitle(ctx context.Context, keyword string) ([]*Book, error)

	// ReserveCopy takes one copy off the shelf only if one is available.
	// It reports whether a row was changed.
	ReserveCopy(ctx context.Context, isbn string) (bool, error)
	// ReleaseCopy puts one copy back only if not all copies are already available.
	ReleaseCopy(ctx context.Context, isbn string) (bool, error)
}

// StatsRepository computes catalog-wide aggregates
type StatsRepository interface {
	Stats(ctx context.Context) (*Stats, error)
}

// BookService defines the interface for catalog business logic
type BookService interface {
	CreateBook(ctx context.Context, req *BookRequest) (*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	GetBookByISBN(ctx context.Context, isbn string) (*Book, error)
	ListBooks(ctx context.Context) ([]*Book, error)
	ListBooksByAuthor(ctx context.Context, author string) ([]*Book, error)
	ListAvailableBooks(ctx context.Context) ([]*Book, error)
	SearchBooks(ctx context.Context, keyword string) ([]*Book, error)
	UpdateBook(ctx context.Context, isbn string, req *BookRequest) (*Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*Stats, error)

	BorrowBook(ctx context.Context, isbn string, userID uuid.UUID) (*Book, error)
	ReturnBook(ctx context.Context, isbn string, userID uuid.UUID) (*Book, error)
}
