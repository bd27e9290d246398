package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"library-services/internal/domain/book"

	"github.com/google/uuid"
)

var ErrDuplicateISBN = errors.New("isbn already exists")

// MemoryBookRepository keeps the catalog in a map. It also serves catalog
// statistics, which the SQL drivers compute in CatalogStatsRepository.
type MemoryBookRepository struct {
	books map[uuid.UUID]*book.Book
	mutex sync.RWMutex
}

var (
	_ book.BookRepository  = (*MemoryBookRepository)(nil)
	_ book.StatsRepository = (*MemoryBookRepository)(nil)
)

func NewMemoryBookRepository() *MemoryBookRepository {
	return &MemoryBookRepository{
		books: make(map[uuid.UUID]*book.Book),
	}
}

func (r *MemoryBookRepository) Create(ctx context.Context, b *book.Book) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, existing := range r.books {
		if existing.ISBN == b.ISBN {
			return ErrDuplicateISBN
		}
	}
	stored := *b
	r.books[b.ID] = &stored
	return nil
}

func (r *MemoryBookRepository) GetByID(ctx context.Context, id uuid.UUID) (*book.Book, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	b, ok := r.books[id]
	if !ok {
		return nil, nil
	}
	out := *b
	return &out, nil
}

func (r *MemoryBookRepository) GetByISBN(ctx context.Context, isbn string) (*book.Book, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if b := r.byISBN(isbn); b != nil {
		out := *b
		return &out, nil
	}
	return nil, nil
}

// byISBN must be called with the mutex held
func (r *MemoryBookRepository) byISBN(isbn string) *book.Book {
	for _, b := range r.books {
		if b.ISBN == isbn {
			return b
		}
	}
	return nil
}

func (r *MemoryBookRepository) Update(ctx context.Context, b *book.Book) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	existing, ok := r.books[b.ID]
	if !ok {
		return nil
	}
	for id, other := range r.books {
		if id != b.ID && other.ISBN == b.ISBN {
			return ErrDuplicateISBN
		}
	}
	stored := *b
	stored.CreatedAt = existing.CreatedAt
	r.books[b.ID] = &stored
	return nil
}

func (r *MemoryBookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.books, id)
	return nil
}

func (r *MemoryBookRepository) List(ctx context.Context) ([]*book.Book, error) {
	return r.filter(func(*book.Book) bool { return true }), nil
}

func (r *MemoryBookRepository) ListByAuthor(ctx context.Context, author string) ([]*book.Book, error) {
	return r.filter(func(b *book.Book) bool { return b.Author == author }), nil
}

func (r *MemoryBookRepository) ListAvailable(ctx context.Context) ([]*book.Book, error) {
	return r.filter(func(b *book.Book) bool { return b.AvailableCopies > 0 }), nil
}

func (r *MemoryBookRepository) SearchByTitle(ctx context.Context, keyword string) ([]*book.Book, error) {
	keyword = strings.ToLower(keyword)
	return r.filter(func(b *book.Book) bool {
		return strings.Contains(strings.ToLower(b.Title), keyword)
	}), nil
}

func (r *MemoryBookRepository) filter(keep func(*book.Book) bool) []*book.Book {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]*book.Book, 0)
	for _, b := range r.books {
		if keep(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title == out[j].Title {
			return out[i].ISBN < out[j].ISBN
		}
		return out[i].Title < out[j].Title
	})
	return out
}

func (r *MemoryBookRepository) ReserveCopy(ctx context.Context, isbn string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	b := r.byISBN(isbn)
	if b == nil || b.AvailableCopies <= 0 {
		return false, nil
	}
	b.AvailableCopies--
	b.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryBookRepository) ReleaseCopy(ctx context.Context, isbn string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	b := r.byISBN(isbn)
	if b == nil || b.AvailableCopies >= b.TotalCopies {
		return false, nil
	}
	b.AvailableCopies++
	b.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryBookRepository) Stats(ctx context.Context) (*book.Stats, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := &book.Stats{}
	for _, b := range r.books {
		stats.TotalTitles++
		stats.TotalCopies += int64(b.TotalCopies)
		stats.AvailableCopies += int64(b.AvailableCopies)
		if b.AvailableCopies > 0 {
			stats.AvailableTitles++
		}
	}
	return stats, nil
}
