package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"library-services/internal/domain/book"
	"library-services/internal/infrastructure/repository"
	interfaces "library-services/internal/interfaces/infrastructure"
	serviceInterfaces "library-services/internal/interfaces/service"
	"library-services/internal/observability/metrics"
	"library-services/pkg/apperror"
	"library-services/pkg/logger"

	"github.com/google/uuid"
)

// Consistency modes decide what happens to the local stock change when the
// ledger cannot be reached after it was committed.
const (
	// ConsistencyNone leaves the book mutated and reports the failure.
	ConsistencyNone = "none"
	// ConsistencyCompensate undoes the stock change before reporting the failure.
	ConsistencyCompensate = "compensate"
	// ConsistencyOutbox keeps the stock change and queues the ledger update for redelivery.
	ConsistencyOutbox = "outbox"
)

// settleTimeout bounds the stock revert or enqueue that follows a failed ledger call
const settleTimeout = 5 * time.Second

type BookServiceOptions struct {
	ConsistencyMode     string
	EligibilityPrecheck bool
}

// bookService implements the BookService interface and coordinates borrow
// and return with the user ledger.
type bookService struct {
	bookRepo  book.BookRepository
	statsRepo book.StatsRepository
	ledger    serviceInterfaces.LedgerClient
	queue     interfaces.QueueService
	opts      BookServiceOptions
	now       func() time.Time
}

// NewBookService creates the catalog service. queue is only used in outbox
// mode and may be nil otherwise.
func NewBookService(
	bookRepo book.BookRepository,
	statsRepo book.StatsRepository,
	ledger serviceInterfaces.LedgerClient,
	queue interfaces.QueueService,
	opts BookServiceOptions,
) (book.BookService, error) {
	switch opts.ConsistencyMode {
	case "":
		opts.ConsistencyMode = ConsistencyNone
	case ConsistencyNone, ConsistencyCompensate:
	case ConsistencyOutbox:
		if queue == nil {
			return nil, errors.New("outbox consistency mode needs a ledger sync queue")
		}
	default:
		return nil, fmt.Errorf("unknown consistency mode: %s", opts.ConsistencyMode)
	}

	return &bookService{
		bookRepo:  bookRepo,
		statsRepo: statsRepo,
		ledger:    ledger,
		queue:     queue,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateBook adds a title to the catalog
func (s *bookService) CreateBook(ctx context.Context, req *book.BookRequest) (*book.Book, error) {
	logger.Info("Creating book with ISBN: %s", req.ISBN)

	if err := checkCopies(req); err != nil {
		return nil, err
	}

	existing, err := s.bookRepo.GetByISBN(ctx, req.ISBN)
	if err != nil {
		return nil, fmt.Errorf("failed to check isbn: %w", err)
	}
	if existing != nil {
		return nil, apperror.Conflict("book with ISBN %s already exists", req.ISBN)
	}

	b := book.NewBook(req.ISBN, req.Title, req.Author, *req.TotalCopies, *req.AvailableCopies, s.now())
	if err := s.bookRepo.Create(ctx, b); err != nil {
		if errors.Is(err, repository.ErrDuplicateISBN) {
			return nil, apperror.Conflict("book with ISBN %s already exists", req.ISBN)
		}
		logger.Error("Failed to create book: %v", err)
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	logger.Info("Book created successfully with ID: %s", b.ID)
	return b, nil
}

func checkCopies(req *book.BookRequest) error {
	if req.TotalCopies == nil || req.AvailableCopies == nil {
		return apperror.Validation("totalCopies and availableCopies are required")
	}
	if *req.TotalCopies < 0 || *req.AvailableCopies < 0 {
		return apperror.Validation("copy counts cannot be negative")
	}
	if *req.AvailableCopies > *req.TotalCopies {
		return apperror.Validation("available copies (%d) cannot exceed total copies (%d)",
			*req.AvailableCopies, *req.TotalCopies)
	}
	return nil
}

func (s *bookService) GetBook(ctx context.Context, id uuid.UUID) (*book.Book, error) {
	logger.Debug("Getting book with ID: %s", id)

	b, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	if b == nil {
		return nil, apperror.NotFound("book not found with id: %s", id)
	}
	return b, nil
}

func (s *bookService) GetBookByISBN(ctx context.Context, isbn string) (*book.Book, error) {
	logger.Debug("Getting book with ISBN: %s", isbn)

	b, err := s.bookRepo.GetByISBN(ctx, isbn)
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	if b == nil {
		return nil, apperror.NotFound("book not found with ISBN: %s", isbn)
	}
	return b, nil
}

func (s *bookService) ListBooks(ctx context.Context) ([]*book.Book, error) {
	return s.list(s.bookRepo.List(ctx))
}

func (s *bookService) ListBooksByAuthor(ctx context.Context, author string) ([]*book.Book, error) {
	return s.list(s.bookRepo.ListByAuthor(ctx, author))
}

func (s *bookService) ListAvailableBooks(ctx context.Context) ([]*book.Book, error) {
	return s.list(s.bookRepo.ListAvailable(ctx))
}

func (s *bookService) SearchBooks(ctx context.Context, keyword string) ([]*book.Book, error) {
	if keyword == "" {
		return nil, apperror.Validation("title keyword is required")
	}
	return s.list(s.bookRepo.SearchByTitle(ctx, keyword))
}

func (s *bookService) list(books []*book.Book, err error) ([]*book.Book, error) {
	if err != nil {
		logger.Error("Failed to list books: %v", err)
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

// UpdateBook replaces every field of the book currently stored under isbn
func (s *bookService) UpdateBook(ctx context.Context, isbn string, req *book.BookRequest) (*book.Book, error) {
	logger.Info("Updating book with ISBN: %s", isbn)

	if err := checkCopies(req); err != nil {
		return nil, err
	}

	b, err := s.GetBookByISBN(ctx, isbn)
	if err != nil {
		return nil, err
	}

	if req.ISBN != b.ISBN {
		other, err := s.bookRepo.GetByISBN(ctx, req.ISBN)
		if err != nil {
			return nil, fmt.Errorf("failed to check isbn: %w", err)
		}
		if other != nil {
			return nil, apperror.Conflict("book with ISBN %s already exists", req.ISBN)
		}
	}

	b.ISBN = req.ISBN
	b.Title = req.Title
	b.Author = req.Author
	b.TotalCopies = *req.TotalCopies
	b.AvailableCopies = *req.AvailableCopies
	b.UpdatedAt = s.now()

	if err := s.bookRepo.Update(ctx, b); err != nil {
		if errors.Is(err, repository.ErrDuplicateISBN) {
			return nil, apperror.Conflict("book with ISBN %s already exists", req.ISBN)
		}
		logger.Error("Failed to update book: %v", err)
		return nil, fmt.Errorf("failed to update book: %w", err)
	}
	return s.GetBook(ctx, b.ID)
}

func (s *bookService) DeleteBook(ctx context.Context, id uuid.UUID) error {
	logger.Info("Deleting book with ID: %s", id)

	if _, err := s.GetBook(ctx, id); err != nil {
		return err
	}
	if err := s.bookRepo.Delete(ctx, id); err != nil {
		logger.Error("Failed to delete book: %v", err)
		return fmt.Errorf("failed to delete book: %w", err)
	}
	return nil
}

func (s *bookService) Stats(ctx context.Context) (*book.Stats, error) {
	stats, err := s.statsRepo.Stats(ctx)
	if err != nil {
		logger.Error("Failed to compute catalog stats: %v", err)
		return nil, fmt.Errorf("failed to compute catalog stats: %w", err)
	}
	return stats, nil
}

// BorrowBook lends one copy of isbn to userID. Stock is taken locally first
// and the ledger is told afterwards; see handleLedgerFailure for what happens
// when that second step fails.
func (s *bookService) BorrowBook(ctx context.Context, isbn string, userID uuid.UUID) (*book.Book, error) {
	b, err := s.borrow(ctx, isbn, userID)
	metrics.ObserveCatalogOperation(string(interfaces.LedgerOperationBorrow), outcome(err))
	return b, err
}

func (s *bookService) borrow(ctx context.Context, isbn string, userID uuid.UUID) (*book.Book, error) {
	logger.Info("User %s borrowing book %s", userID, isbn)

	b, err := s.GetBookByISBN(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if b.OutOfStock() {
		return nil, apperror.Conflict("book %s is out of stock", isbn)
	}

	if s.opts.EligibilityPrecheck {
		ok, err := s.ledger.CanBorrow(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperror.Conflict("user %s is not eligible to borrow books: membership expired, max limit reached, or account suspended", userID)
		}
	}

	reserved, err := s.bookRepo.ReserveCopy(ctx, isbn)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve copy: %w", err)
	}
	if !reserved {
		return nil, apperror.Conflict("book %s is out of stock", isbn)
	}

	if err := s.ledger.IncrementBorrowed(ctx, userID); err != nil {
		return nil, s.handleLedgerFailure(ctx, interfaces.LedgerOperationBorrow, isbn, userID, err)
	}

	logger.Info("Book %s borrowed by user %s", isbn, userID)
	return s.GetBookByISBN(ctx, isbn)
}

// ReturnBook puts one copy of isbn back and tells the ledger
func (s *bookService) ReturnBook(ctx context.Context, isbn string, userID uuid.UUID) (*book.Book, error) {
	b, err := s.giveBack(ctx, isbn, userID)
	metrics.ObserveCatalogOperation(string(interfaces.LedgerOperationReturn), outcome(err))
	return b, err
}

func (s *bookService) giveBack(ctx context.Context, isbn string, userID uuid.UUID) (*book.Book, error) {
	logger.Info("User %s returning book %s", userID, isbn)

	b, err := s.GetBookByISBN(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if b.AllReturned() {
		return nil, apperror.Conflict("all copies of book %s are already returned", isbn)
	}

	released, err := s.bookRepo.ReleaseCopy(ctx, isbn)
	if err != nil {
		return nil, fmt.Errorf("failed to release copy: %w", err)
	}
	if !released {
		return nil, apperror.Conflict("all copies of book %s are already returned", isbn)
	}

	if err := s.ledger.DecrementBorrowed(ctx, userID); err != nil {
		return nil, s.handleLedgerFailure(ctx, interfaces.LedgerOperationReturn, isbn, userID, err)
	}

	logger.Info("Book %s returned by user %s", isbn, userID)
	return s.GetBookByISBN(ctx, isbn)
}

// handleLedgerFailure runs after the stock change is committed and the ledger
// call failed. A definitive answer from the ledger means it did not apply the
// change, so the stock change is undone in every mode. An unknown outcome is
// handled per consistency mode.
func (s *bookService) handleLedgerFailure(ctx context.Context, op interfaces.LedgerOperation, isbn string, userID uuid.UUID, cause error) error {
	// the caller may have gone away while the ledger call was pending
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if !errors.Is(cause, apperror.ErrRemoteUnavailable) {
		if err := revertStock(ctx, s.bookRepo, op, isbn); err != nil {
			logger.Error("Failed to undo %s of %s after ledger rejected it: %v", op, isbn, err)
		}
		return cause
	}

	switch s.opts.ConsistencyMode {
	case ConsistencyCompensate:
		if err := revertStock(ctx, s.bookRepo, op, isbn); err != nil {
			logger.Error("Failed to compensate %s of %s: %v", op, isbn, err)
			return apperror.RemoteUnavailable(cause, "user ledger unavailable and the %s of %s could not be undone: %v", op, isbn, cause)
		}
		logger.Warn("Ledger unavailable, %s of %s for user %s was undone", op, isbn, userID)
		return apperror.RemoteUnavailable(cause, "user ledger unavailable, %s of %s was not applied: %v", op, isbn, cause)

	case ConsistencyOutbox:
		job := interfaces.LedgerSyncJob{
			Operation: op,
			UserID:    userID,
			ISBN:      isbn,
			Timestamp: s.now(),
		}
		if err := s.queue.EnqueueLedgerSync(ctx, job); err != nil {
			logger.Error("Failed to queue ledger %s for user %s, undoing: %v", op, userID, err)
			if rerr := revertStock(ctx, s.bookRepo, op, isbn); rerr != nil {
				logger.Error("Failed to undo %s of %s: %v", op, isbn, rerr)
			}
			return apperror.RemoteUnavailable(cause, "user ledger unavailable, %s of %s was not applied: %v", op, isbn, cause)
		}
		logger.Warn("Ledger unavailable, %s of %s for user %s queued for redelivery", op, isbn, userID)
		return apperror.RemoteUnavailable(cause, "user ledger unavailable, %s of %s recorded and the ledger update was queued for retry", op, isbn)

	default:
		logger.Warn("Ledger unavailable, %s of %s for user %s left applied locally", op, isbn, userID)
		return apperror.RemoteUnavailable(cause, "user ledger unavailable: %v", cause)
	}
}

// revertStock undoes the local half of op
func revertStock(ctx context.Context, books book.BookRepository, op interfaces.LedgerOperation, isbn string) error {
	var ok bool
	var err error
	switch op {
	case interfaces.LedgerOperationBorrow:
		ok, err = books.ReleaseCopy(ctx, isbn)
	case interfaces.LedgerOperationReturn:
		ok, err = books.ReserveCopy(ctx, isbn)
	default:
		return fmt.Errorf("unknown ledger operation %q", op)
	}
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("stock of %s changed concurrently, %s cannot be undone", isbn, op)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, apperror.ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, apperror.ErrConflict):
		return metrics.ResultConflict
	case errors.Is(err, apperror.ErrValidation):
		return metrics.ResultInvalid
	case errors.Is(err, apperror.ErrRemoteUnavailable):
		return metrics.ResultUnavailable
	default:
		return metrics.ResultError
	}
}
