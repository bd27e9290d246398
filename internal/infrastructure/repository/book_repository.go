package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"library-services/internal/domain/book"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookRepository implements book.BookRepository using GORM
type BookRepository struct {
	db *gorm.DB
}

// NewBookRepository creates a new GORM book repository
func NewBookRepository(db *gorm.DB) book.BookRepository {
	return &BookRepository{db: db}
}

func (r *BookRepository) Create(ctx context.Context, b *book.Book) error {
	return translateBookError(r.db.WithContext(ctx).Create(b).Error)
}

func translateBookError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateISBN
	}
	return err
}

func (r *BookRepository) GetByID(ctx context.Context, id uuid.UUID) (*book.Book, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *BookRepository) GetByISBN(ctx context.Context, isbn string) (*book.Book, error) {
	return r.first(ctx, "isbn = ?", isbn)
}

func (r *BookRepository) first(ctx context.Context, query string, args ...interface{}) (*book.Book, error) {
	var b book.Book
	err := r.db.WithContext(ctx).Where(query, args...).First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// Update writes every column except the id and the creation time.
func (r *BookRepository) Update(ctx context.Context, b *book.Book) error {
	err := r.db.WithContext(ctx).Model(&book.Book{}).
		Where("id = ?", b.ID).
		Updates(map[string]interface{}{
			"isbn":             b.ISBN,
			"title":            b.Title,
			"author":           b.Author,
			"total_copies":     b.TotalCopies,
			"available_copies": b.AvailableCopies,
			"updated_at":       b.UpdatedAt,
		}).Error
	return translateBookError(err)
}

func (r *BookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&book.Book{}, "id = ?", id).Error
}

func (r *BookRepository) List(ctx context.Context) ([]*book.Book, error) {
	return r.find(ctx, nil)
}

func (r *BookRepository) ListByAuthor(ctx context.Context, author string) ([]*book.Book, error) {
	return r.find(ctx, func(q *gorm.DB) *gorm.DB { return q.Where("author = ?", author) })
}

func (r *BookRepository) ListAvailable(ctx context.Context) ([]*book.Book, error) {
	return r.find(ctx, func(q *gorm.DB) *gorm.DB { return q.Where("available_copies > 0") })
}

func (r *BookRepository) SearchByTitle(ctx context.Context, keyword string) ([]*book.Book, error) {
	pattern := "%" + strings.ToLower(keyword) + "%"
	return r.find(ctx, func(q *gorm.DB) *gorm.DB { return q.Where("LOWER(title) LIKE ?", pattern) })
}

func (r *BookRepository) find(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]*book.Book, error) {
	var books []*book.Book
	q := r.db.WithContext(ctx).Order("title, isbn")
	if scope != nil {
		q = scope(q)
	}
	if err := q.Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *BookRepository) ReserveCopy(ctx context.Context, isbn string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&book.Book{}).
		Where("isbn = ? AND available_copies > 0", isbn).
		Updates(map[string]interface{}{
			"available_copies": gorm.Expr("available_copies - 1"),
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *BookRepository) ReleaseCopy(ctx context.Context, isbn string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&book.Book{}).
		Where("isbn = ? AND available_copies < total_copies", isbn).
		Updates(map[string]interface{}{
			"available_copies": gorm.Expr("available_copies + 1"),
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
