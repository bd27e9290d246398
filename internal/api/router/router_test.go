package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"library-services/internal/api/handlers"
	"library-services/internal/config"
	"library-services/internal/domain/book"
	"library-services/internal/domain/user"
	"library-services/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(ledgerURL string) *config.Config {
	return &config.Config{
		App:     config.AppConfig{Name: "library-services", Version: "test", Environment: "test"},
		Server:  config.ServerConfig{Port: "0"},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Ledger: config.LedgerConfig{
			ServiceName: LedgerServiceName,
			Timeout:     2 * time.Second,
		},
		Discovery: config.DiscoveryConfig{Services: map[string]string{LedgerServiceName: ledgerURL}},
		Catalog: config.CatalogConfig{
			ConsistencyMode:     service.ConsistencyNone,
			EligibilityPrecheck: true,
		},
		Queue:       config.QueueConfig{Type: "memory", BufferSize: 10, Workers: 1, MaxAttempts: 3},
		Idempotency: config.IdempotencyConfig{Enabled: true, Store: "memory", TTL: time.Hour},
	}
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type libraryFixture struct {
	ledger  *httptest.Server
	catalog http.Handler
}

func newLibraryFixture(t *testing.T, mutate func(*config.Config)) *libraryFixture {
	t.Helper()
	ledgerServer := httptest.NewServer(NewLedgerRouter(testConfig(""), Backends{}))
	t.Cleanup(ledgerServer.Close)

	cfg := testConfig(ledgerServer.URL)
	if mutate != nil {
		mutate(cfg)
	}
	components, err := NewCatalogRouterWithQueue(cfg, Backends{})
	require.NoError(t, err)
	t.Cleanup(components.Shutdown)

	return &libraryFixture{ledger: ledgerServer, catalog: components.Router}
}

func (f *libraryFixture) createUser(t *testing.T, email string, tier user.MembershipType) user.User {
	t.Helper()
	rec := do(t, f.ledger.Config.Handler, http.MethodPost, "/api/users", user.CreateUserRequest{
		Name: "Reader", Email: email, MembershipType: tier,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[user.User](t, rec)
}

func (f *libraryFixture) getUser(t *testing.T, id string) user.User {
	t.Helper()
	rec := do(t, f.ledger.Config.Handler, http.MethodGet, "/api/users/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[user.User](t, rec)
}

func (f *libraryFixture) createBook(t *testing.T, isbn string, total, available int) book.Book {
	t.Helper()
	rec := do(t, f.catalog, http.MethodPost, "/api/books", book.BookRequest{
		ISBN: isbn, Title: "Clean Code", Author: "Robert Martin",
		TotalCopies: &total, AvailableCopies: &available,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[book.Book](t, rec)
}

func (f *libraryFixture) getBook(t *testing.T, isbn string) book.Book {
	t.Helper()
	rec := do(t, f.catalog, http.MethodGet, "/api/books/"+isbn, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[book.Book](t, rec)
}

func TestLedgerRoutes_UserLifecycle(t *testing.T) {
	f := newLibraryFixture(t, nil)
	h := f.ledger.Config.Handler

	u := f.createUser(t, "ann@example.com", user.MembershipStudent)
	assert.Equal(t, 3, u.MaxBooksAllowed)
	assert.Equal(t, user.StatusActive, u.MembershipStatus)

	rec := do(t, h, http.MethodGet, "/api/users/email/ann@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, u.ID, decode[user.User](t, rec).ID)

	rec = do(t, h, http.MethodGet, "/api/users/"+u.ID.String()+"/can-borrow", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"canBorrow":true}`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/api/users/"+u.ID.String()+"/suspend", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.StatusSuspended, decode[user.User](t, rec).MembershipStatus)

	rec = do(t, h, http.MethodGet, "/api/users/"+u.ID.String()+"/can-borrow", nil)
	assert.JSONEq(t, `{"canBorrow":false}`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/api/users/"+u.ID.String()+"/borrow", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/users/"+u.ID.String()+"/activate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]user.User](t, rec), 1)

	rec = do(t, h, http.MethodDelete, "/api/users/"+u.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/users/"+u.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLedgerRoutes_ErrorBodies(t *testing.T) {
	f := newLibraryFixture(t, nil)
	h := f.ledger.Config.Handler
	f.createUser(t, "dup@example.com", user.MembershipRegular)

	rec := do(t, h, http.MethodPost, "/api/users", user.CreateUserRequest{
		Name: "Again", Email: "dup@example.com", MembershipType: user.MembershipRegular,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[handlers.ErrorResponse](t, rec)
	assert.Equal(t, http.StatusConflict, body.Status)
	assert.Equal(t, "Conflict", body.Error)
	assert.Equal(t, "/api/users", body.Path)
	assert.NotEmpty(t, body.Message)
	assert.False(t, body.Timestamp.IsZero())

	rec = do(t, h, http.MethodPost, "/api/users", map[string]string{
		"name": "No Email", "membershipType": "GOLD",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decode[handlers.ErrorResponse](t, rec)
	assert.Contains(t, body.FieldErrors, "email")
	assert.Contains(t, body.FieldErrors, "membershipType")

	rec = do(t, h, http.MethodGet, "/api/users/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/users/00000000-0000-0000-0000-000000000001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCatalogRoutes_BorrowAndReturnAcrossServices(t *testing.T) {
	f := newLibraryFixture(t, nil)
	u := f.createUser(t, "student@example.com", user.MembershipStudent)
	f.createBook(t, "978-0132350884", 5, 5)

	borrowPath := "/api/books/978-0132350884/borrow?userId=" + u.ID.String()
	for i := 1; i <= 3; i++ {
		rec := do(t, f.catalog, http.MethodPut, borrowPath, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 5-i, decode[book.Book](t, rec).AvailableCopies)
	}
	assert.Equal(t, 3, f.getUser(t, u.ID.String()).BorrowedBooksCount)

	rec := do(t, f.catalog, http.MethodPut, borrowPath, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 2, f.getBook(t, "978-0132350884").AvailableCopies)
	assert.Equal(t, 3, f.getUser(t, u.ID.String()).BorrowedBooksCount)

	rec = do(t, f.catalog, http.MethodPut, "/api/books/978-0132350884/return?userId="+u.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[book.Book](t, rec).AvailableCopies)
	assert.Equal(t, 2, f.getUser(t, u.ID.String()).BorrowedBooksCount)
}

func TestCatalogRoutes_ConflictsAndLookups(t *testing.T) {
	f := newLibraryFixture(t, nil)
	u := f.createUser(t, "reader@example.com", user.MembershipPremium)
	created := f.createBook(t, "111", 1, 0)
	f.createBook(t, "222", 2, 2)

	rec := do(t, f.catalog, http.MethodPut, "/api/books/111/borrow?userId="+u.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, f.catalog, http.MethodPut, "/api/books/222/return?userId="+u.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, f.catalog, http.MethodPut, "/api/books/999/borrow?userId="+u.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, f.catalog, http.MethodPut, "/api/books/222/borrow?userId=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	total, available := 1, 3
	rec = do(t, f.catalog, http.MethodPost, "/api/books", book.BookRequest{
		ISBN: "333", Title: "T", Author: "A", TotalCopies: &total, AvailableCopies: &available,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, f.catalog, http.MethodGet, "/api/books/id/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "111", decode[book.Book](t, rec).ISBN)

	rec = do(t, f.catalog, http.MethodGet, "/api/books/available", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]book.Book](t, rec), 1)

	rec = do(t, f.catalog, http.MethodGet, "/api/books/search?title=clean", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]book.Book](t, rec), 2)

	rec = do(t, f.catalog, http.MethodGet, "/api/books/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, book.Stats{TotalTitles: 2, AvailableTitles: 1, TotalCopies: 3, AvailableCopies: 2}, decode[book.Stats](t, rec))

	rec = do(t, f.catalog, http.MethodDelete, "/api/books/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, f.catalog, http.MethodGet, "/api/books/111", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCatalogRoutes_LedgerDownLeavesBookMutated(t *testing.T) {
	f := newLibraryFixture(t, func(cfg *config.Config) {
		cfg.Catalog.EligibilityPrecheck = false
	})
	u := f.createUser(t, "gone@example.com", user.MembershipRegular)
	f.createBook(t, "444", 2, 2)
	f.ledger.Close()

	rec := do(t, f.catalog, http.MethodPut, "/api/books/444/borrow?userId="+u.ID.String(), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	assert.Equal(t, 1, f.getBook(t, "444").AvailableCopies)
}

func TestCatalogRoutes_IdempotentBorrowReplays(t *testing.T) {
	f := newLibraryFixture(t, nil)
	u := f.createUser(t, "retry@example.com", user.MembershipRegular)
	f.createBook(t, "555", 3, 3)
	path := "/api/books/555/borrow?userId=" + u.ID.String()

	first := do(t, f.catalog, http.MethodPut, path, nil, "Idempotency-Key", "borrow-1")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	second := do(t, f.catalog, http.MethodPut, path, nil, "Idempotency-Key", "borrow-1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	assert.Equal(t, 2, f.getBook(t, "555").AvailableCopies)
	assert.Equal(t, 1, f.getUser(t, u.ID.String()).BorrowedBooksCount)

	reused := do(t, f.catalog, http.MethodPut, "/api/books/555/return?userId="+u.ID.String(), nil, "Idempotency-Key", "borrow-1")
	assert.Equal(t, http.StatusConflict, reused.Code)
}

func TestCatalogRoutes_ConcurrentRequestsShareOneKey(t *testing.T) {
	f := newLibraryFixture(t, nil)
	u := f.createUser(t, "burst@example.com", user.MembershipPremium)
	f.createBook(t, "idem-1", 10, 10)
	path := "/api/books/idem-1/borrow?userId=" + u.ID.String()

	const clients = 8
	codes := make([]int, clients)
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = do(t, f.catalog, http.MethodPut, path, nil, "Idempotency-Key", "same-key").Code
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, code := range codes {
		if code == http.StatusOK {
			ok++
			continue
		}
		assert.Equal(t, http.StatusConflict, code)
	}
	assert.GreaterOrEqual(t, ok, 1, "codes=%v", codes)
	assert.Equal(t, 9, f.getBook(t, "idem-1").AvailableCopies)
	assert.Equal(t, 1, f.getUser(t, u.ID.String()).BorrowedBooksCount)

	replay := do(t, f.catalog, http.MethodPut, path, nil, "Idempotency-Key", "same-key")
	assert.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
}

func TestCatalogRoutes_FailedRequestFreesItsKey(t *testing.T) {
	f := newLibraryFixture(t, nil)
	holder := f.createUser(t, "holder@example.com", user.MembershipRegular)
	waiting := f.createUser(t, "waiting@example.com", user.MembershipRegular)
	f.createBook(t, "777", 1, 1)

	rec := do(t, f.catalog, http.MethodPut, "/api/books/777/borrow?userId="+holder.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	path := "/api/books/777/borrow?userId=" + waiting.ID.String()
	rec = do(t, f.catalog, http.MethodPut, path, nil, "Idempotency-Key", "wait-1")
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = do(t, f.catalog, http.MethodPut, "/api/books/777/return?userId="+holder.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, f.catalog, http.MethodPut, path, nil, "Idempotency-Key", "wait-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 0, f.getBook(t, "777").AvailableCopies)
	assert.Equal(t, 1, f.getUser(t, waiting.ID.String()).BorrowedBooksCount)
}

func TestProbesAndMetrics(t *testing.T) {
	f := newLibraryFixture(t, nil)

	for _, path := range []string{"/health", "/ready", "/live", "/api/books/health"} {
		rec := do(t, f.catalog, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := do(t, f.catalog, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "library_http_requests_total")

	rec = do(t, f.ledger.Config.Handler, http.MethodGet, "/api/users/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "User Service")
}

func TestNewCatalogRouter_RejectsBadWiring(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Catalog.ConsistencyMode = "eventually"
	_, err := NewCatalogRouterWithQueue(cfg, Backends{})
	assert.Error(t, err)

	cfg = testConfig("http://127.0.0.1:1")
	cfg.Catalog.ConsistencyMode = service.ConsistencyOutbox
	cfg.Queue.Type = "redis"
	_, err = NewCatalogRouterWithQueue(cfg, Backends{})
	assert.Error(t, err)
}
