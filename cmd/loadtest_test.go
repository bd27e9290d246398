package cmd

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"library-services/internal/api/router"
	"library-services/internal/config"
	"library-services/internal/domain/user"
	"library-services/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServices(t *testing.T) (catalogURL, ledgerURL string) {
	t.Helper()
	cfg := &config.Config{
		App:     config.AppConfig{Version: "test", Environment: "test"},
		Ledger:  config.LedgerConfig{ServiceName: router.LedgerServiceName, Timeout: 5 * time.Second},
		Catalog: config.CatalogConfig{ConsistencyMode: service.ConsistencyNone, EligibilityPrecheck: true},
	}

	ledger := httptest.NewServer(router.NewLedgerRouter(cfg, router.Backends{}))
	t.Cleanup(ledger.Close)

	cfg.Discovery.Services = map[string]string{router.LedgerServiceName: ledger.URL}
	components, err := router.NewCatalogRouterWithQueue(cfg, router.Backends{})
	require.NoError(t, err)
	t.Cleanup(components.Shutdown)
	catalog := httptest.NewServer(components.Router)
	t.Cleanup(catalog.Close)

	return catalog.URL, ledger.URL
}

func TestLoadTester_CountersSettleAfterRace(t *testing.T) {
	catalogURL, ledgerURL := startServices(t)

	lt := NewLoadTester(LoadTestConfig{
		CatalogURL:      catalogURL,
		LedgerURL:       ledgerURL,
		NumUsers:        4,
		Tier:            user.MembershipStudent,
		Copies:          5,
		ConcurrentUsers: 8,
		RequestsPerUser: 3,
	})
	ctx := context.Background()
	require.NoError(t, lt.Initialize(ctx))

	result, err := lt.RunLoadTest(ctx)
	require.NoError(t, err)

	assert.Empty(t, result.Violations)
	assert.Equal(t, 12, result.Borrow.TotalRequests)
	assert.Equal(t, 5, result.Borrow.Successful)
	assert.Equal(t, 7, result.Borrow.Conflicts)
	assert.Equal(t, 5, result.Return.Successful)
	assert.Equal(t, 5, result.Book.AvailableCopies)
	for _, u := range result.Users {
		assert.Zero(t, u.BorrowedBooksCount, u.ID.String())
	}
}
