package repository

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"library-services/internal/domain/book"
	"library-services/internal/domain/user"
	"library-services/internal/infrastructure/database"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewConnection(database.Config{Driver: database.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&user.User{}, &book.Book{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type repos struct {
	name  string
	users user.UserRepository
	books book.BookRepository
}

func allRepos(t *testing.T) []repos {
	db := newSQLiteDB(t)
	return []repos{
		{name: "sqlite", users: NewUserRepository(db), books: NewBookRepository(db)},
		{name: "memory", users: NewMemoryUserRepository(), books: NewMemoryBookRepository()},
	}
}

func TestUserRepositoryCounters(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	for _, r := range allRepos(t) {
		t.Run(r.name, func(t *testing.T) {
			u := user.NewUser("Ada", "ada-"+r.name+"@example.com", "", user.MembershipStudent, now)
			require.NoError(t, r.users.Create(ctx, u))

			for i := 0; i < 3; i++ {
				ok, err := r.users.IncrementBorrowed(ctx, u.ID, now)
				require.NoError(t, err)
				assert.True(t, ok)
			}
			ok, err := r.users.IncrementBorrowed(ctx, u.ID, now)
			require.NoError(t, err)
			assert.False(t, ok, "student limit is three")

			got, err := r.users.GetByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, got.BorrowedBooksCount)

			for i := 0; i < 3; i++ {
				ok, err := r.users.DecrementBorrowed(ctx, u.ID)
				require.NoError(t, err)
				assert.True(t, ok)
			}
			ok, err = r.users.DecrementBorrowed(ctx, u.ID)
			require.NoError(t, err)
			assert.False(t, ok, "count never goes below zero")

			got, err = r.users.GetByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, got.BorrowedBooksCount)
		})
	}
}

func TestUserRepositoryIncrementRespectsStatusAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	for _, r := range allRepos(t) {
		t.Run(r.name, func(t *testing.T) {
			suspended := user.NewUser("Sus", "sus-"+r.name+"@example.com", "", user.MembershipRegular, now)
			require.NoError(t, r.users.Create(ctx, suspended))
			suspended.MembershipStatus = user.StatusSuspended
			require.NoError(t, r.users.Update(ctx, suspended))

			ok, err := r.users.IncrementBorrowed(ctx, suspended.ID, now)
			require.NoError(t, err)
			assert.False(t, ok)

			expired := user.NewUser("Old", "old-"+r.name+"@example.com", "", user.MembershipRegular, now.Add(-2*user.MembershipTerm))
			require.NoError(t, r.users.Create(ctx, expired))

			ok, err = r.users.IncrementBorrowed(ctx, expired.ID, now)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestUserRepositoryLookups(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	for _, r := range allRepos(t) {
		t.Run(r.name, func(t *testing.T) {
			u := user.NewUser("Bob", "bob@example.com", "0123456789", user.MembershipPremium, now)
			require.NoError(t, r.users.Create(ctx, u))

			dup := user.NewUser("Bob2", "bob@example.com", "", user.MembershipPremium, now)
			assert.ErrorIs(t, r.users.Create(ctx, dup), ErrDuplicateEmail)

			got, err := r.users.GetByEmail(ctx, "bob@example.com")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, u.ID, got.ID)
			assert.Equal(t, 10, got.MaxBooksAllowed)

			missing, err := r.users.GetByEmail(ctx, "nobody@example.com")
			require.NoError(t, err)
			assert.Nil(t, missing)

			list, err := r.users.List(ctx, 10, 0)
			require.NoError(t, err)
			assert.Len(t, list, 1)

			require.NoError(t, r.users.Delete(ctx, u.ID))
			gone, err := r.users.GetByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Nil(t, gone)
		})
	}
}

func TestUserRepositoryListPaging(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	for _, r := range allRepos(t) {
		t.Run(r.name, func(t *testing.T) {
			for i, name := range []string{"Ann", "Ben", "Cal"} {
				u := user.NewUser(name, fmt.Sprintf("page-%d-%s@example.com", i, r.name), "", user.MembershipRegular, now.Add(time.Duration(i)*time.Second))
				require.NoError(t, r.users.Create(ctx, u))
			}

			page, err := r.users.List(ctx, 2, 0)
			require.NoError(t, err)
			require.Len(t, page, 2)
			assert.Equal(t, "Ann", page[0].Name)

			rest, err := r.users.List(ctx, math.MaxInt, 1)
			require.NoError(t, err)
			require.Len(t, rest, 2)
			assert.Equal(t, "Ben", rest[0].Name)

			past, err := r.users.List(ctx, 5, 10)
			require.NoError(t, err)
			assert.Empty(t, past)
		})
	}
}

func TestBookRepositoryReserveAndRelease(t *testing.T) {
	ctx := context.Background()

	for _, r := range allRepos(t) {
		t.Run(r.name, func(t *testing.T) {
			b := book.NewBook("978-1", "Go in Action", "Kennedy", 2, 2, time.Now().UTC())
			require.NoError(t, r.books.Create(ctx, b))

			ok, err := r.books.ReleaseCopy(ctx, "978-1")
			require.NoError(t, err)
			assert.False(t, ok, "cannot release above total")

			for i := 0; i < 2; i++ {
				ok, err := r.books.ReserveCopy(ctx, "978-1")
				require.NoError(t, err)
				assert.True(t, ok)
			}
			ok, err = r.books.ReserveCopy(ctx, "978-1")
			require.NoError(t, err)
			assert.False(t, ok, "no copies left")

			got, err := r.books.GetByISBN(ctx, "978-1")
			require.NoError(t, err)
			assert.Equal(t, 0, got.AvailableCopies)

			ok, err = r.books.ReleaseCopy(ctx, "978-1")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = r.books.ReserveCopy(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBookRepositoryReserveIsAtomicUnderConcurrency(t *testing.T) {
	ctx := context.Background()

	for _, r := range allRepos(t) {
		t.Run(r.name, func(t *testing.T) {
			b := book.NewBook("978-race", "Race", "Anon", 1, 1, time.Now().UTC())
			require.NoError(t, r.books.Create(ctx, b))

			var wg sync.WaitGroup
			var mu sync.Mutex
			wins := 0
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := r.books.ReserveCopy(ctx, "978-race")
					if err == nil && ok {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, wins)
			got, err := r.books.GetByISBN(ctx, "978-race")
			require.NoError(t, err)
			assert.Equal(t, 0, got.AvailableCopies)
		})
	}
}

func TestBookRepositoryQueries(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	for _, r := range allRepos(t) {
		t.Run(r.name, func(t *testing.T) {
			require.NoError(t, r.books.Create(ctx, book.NewBook("1", "The Go Programming Language", "Donovan", 3, 3, now)))
			require.NoError(t, r.books.Create(ctx, book.NewBook("2", "Concurrency in Go", "Cox-Buday", 1, 0, now)))
			require.NoError(t, r.books.Create(ctx, book.NewBook("3", "Designing Data-Intensive Applications", "Kleppmann", 2, 1, now)))

			assert.ErrorIs(t, r.books.Create(ctx, book.NewBook("1", "Dup", "X", 1, 1, now)), ErrDuplicateISBN)

			all, err := r.books.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 3)

			available, err := r.books.ListAvailable(ctx)
			require.NoError(t, err)
			assert.Len(t, available, 2)

			byAuthor, err := r.books.ListByAuthor(ctx, "Donovan")
			require.NoError(t, err)
			require.Len(t, byAuthor, 1)
			assert.Equal(t, "1", byAuthor[0].ISBN)

			found, err := r.books.SearchByTitle(ctx, "go")
			require.NoError(t, err)
			assert.Len(t, found, 2)
		})
	}
}

func TestCatalogStats(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	db := newSQLiteDB(t)
	books := NewBookRepository(db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	stats := NewCatalogStatsRepository(sqlx.NewDb(sqlDB, "sqlite3"), "sqlite3")

	empty, err := stats.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, book.Stats{}, *empty)

	memory := NewMemoryBookRepository()
	for _, b := range []*book.Book{
		book.NewBook("1", "A", "X", 3, 2, now),
		book.NewBook("2", "B", "Y", 1, 0, now),
	} {
		require.NoError(t, books.Create(ctx, b))
		require.NoError(t, memory.Create(ctx, b))
	}

	want := book.Stats{TotalTitles: 2, AvailableTitles: 1, TotalCopies: 4, AvailableCopies: 2}

	got, err := stats.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	got, err = memory.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}
