package book

import (
	"time"

	"github.com/google/uuid"
)

// Book represents a catalog title and its copy availability
type Book struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ISBN            string    `json:"isbn" gorm:"uniqueIndex;not null"`
	Title           string    `json:"title" gorm:"not null"`
	Author          string    `json:"author" gorm:"not null;index"`
	TotalCopies     int       `json:"totalCopies" gorm:"not null;check:total_copies >= 0"`
	AvailableCopies int       `json:"availableCopies" gorm:"not null;check:available_copies >= 0"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// BookRequest is the body of create and update calls
type BookRequest struct {
	ISBN            string `json:"isbn" validate:"required,max=32"`
	Title           string `json:"title" validate:"required,max=255"`
	Author          string `json:"author" validate:"required,max=255"`
	TotalCopies     *int   `json:"totalCopies" validate:"required,gte=0"`
	AvailableCopies *int   `json:"availableCopies" validate:"required,gte=0"`
}

// Stats summarizes the catalog
type Stats struct {
	TotalTitles     int64 `json:"totalTitles" db:"total_titles"`
	AvailableTitles int64 `json:"availableTitles" db:"available_titles"`
	TotalCopies     int64 `json:"totalCopies" db:"total_copies"`
	AvailableCopies int64 `json:"availableCopies" db:"available_copies"`
}

// NewBook creates a book with generated ID and timestamps
func NewBook(isbn, title, author string, totalCopies, availableCopies int, now time.Time) *Book {
	return &Book{
		ID:              uuid.New(),
		ISBN:            isbn,
		Title:           title,
		Author:          author,
		TotalCopies:     totalCopies,
		AvailableCopies: availableCopies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// OutOfStock reports whether no copy can be lent
func (b *Book) OutOfStock() bool {
	return b.AvailableCopies <= 0
}

// AllReturned reports whether every copy is already on the shelf
func (b *Book) AllReturned() bool {
	return b.AvailableCopies >= b.TotalCopies
}
