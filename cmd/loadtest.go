package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"library-services/internal/domain/book"
	"library-services/internal/domain/user"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// LoadTestConfig holds configuration for load testing
type LoadTestConfig struct {
	CatalogURL      string
	LedgerURL       string
	NumUsers        int
	Tier            user.MembershipType
	Copies          int
	ConcurrentUsers int
	RequestsPerUser int
}

// PhaseResult counts the outcomes of one phase (borrow or return)
type PhaseResult struct {
	TotalRequests     int
	Successful        int
	Conflicts         int
	Unavailable       int
	Failed            int
	AvgResponseTimeMs float64
	MaxResponseTimeMs int64
	MinResponseTimeMs int64
	ErrorsByType      map[string]int
}

// LoadTestResult holds the results of load testing
type LoadTestResult struct {
	Borrow     PhaseResult
	Return     PhaseResult
	Book       book.Book
	Users      []user.User
	Violations []string
	Duration   time.Duration
}

// LoadTester races borrows and returns of one book against both services
type LoadTester struct {
	config LoadTestConfig
	client *http.Client
	isbn   string
	users  []uuid.UUID
	mutex  sync.Mutex

	// borrowed[userID] is how many borrows the catalog acknowledged
	borrowed map[uuid.UUID]int
}

// NewLoadTester creates a new load tester
func NewLoadTester(config LoadTestConfig) *LoadTester {
	return &LoadTester{
		config:   config,
		client:   &http.Client{Timeout: 30 * time.Second},
		borrowed: make(map[uuid.UUID]int),
	}
}

// Initialize creates the members and the contended book
func (lt *LoadTester) Initialize(ctx context.Context) error {
	fmt.Println("Initializing load test data...")

	runID := uuid.NewString()[:8]
	for i := 0; i < lt.config.NumUsers; i++ {
		var created user.User
		status, err := lt.send(ctx, http.MethodPost, lt.config.LedgerURL+"/api/users", user.CreateUserRequest{
			Name:           fmt.Sprintf("Load Reader %d", i),
			Email:          fmt.Sprintf("load-%s-%d@example.com", runID, i),
			MembershipType: lt.config.Tier,
		}, &created)
		if err != nil {
			return fmt.Errorf("failed to create user %d: %w", i, err)
		}
		if status != http.StatusCreated {
			return fmt.Errorf("failed to create user %d: status %d", i, status)
		}
		lt.users = append(lt.users, created.ID)
	}

	lt.isbn = "LOAD-" + runID
	copies := lt.config.Copies
	status, err := lt.send(ctx, http.MethodPost, lt.config.CatalogURL+"/api/books", book.BookRequest{
		ISBN:            lt.isbn,
		Title:           "Load Test Title " + runID,
		Author:          "Load Tester",
		TotalCopies:     &copies,
		AvailableCopies: &copies,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	if status != http.StatusCreated {
		return fmt.Errorf("failed to create book: status %d", status)
	}

	fmt.Printf("Created %d %s users and book %s with %d copies\n", len(lt.users), lt.config.Tier, lt.isbn, copies)
	return nil
}

// RunLoadTest executes the borrow phase, the return phase and the invariant check
func (lt *LoadTester) RunLoadTest(ctx context.Context) (*LoadTestResult, error) {
	fmt.Printf("Starting load test with %d concurrent users...\n", lt.config.ConcurrentUsers)
	start := time.Now()
	result := &LoadTestResult{}

	totalRequests := lt.config.NumUsers * lt.config.RequestsPerUser
	borrowers := make([]uuid.UUID, 0, totalRequests)
	for i := 0; i < totalRequests; i++ {
		borrowers = append(borrowers, lt.users[i%len(lt.users)])
	}
	result.Borrow = lt.runPhase(ctx, "borrow", borrowers)

	returners := make([]uuid.UUID, 0)
	for id, n := range lt.borrowed {
		for i := 0; i < n; i++ {
			returners = append(returners, id)
		}
	}
	result.Return = lt.runPhase(ctx, "return", returners)
	result.Duration = time.Since(start)

	if err := lt.checkInvariants(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (lt *LoadTester) runPhase(ctx context.Context, operation string, userIDs []uuid.UUID) PhaseResult {
	phase := PhaseResult{ErrorsByType: make(map[string]int)}
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, lt.config.ConcurrentUsers)

	for _, id := range userIDs {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			url := fmt.Sprintf("%s/api/books/%s/%s?userId=%s", lt.config.CatalogURL, lt.isbn, operation, userID)
			startTime := time.Now()
			status, err := lt.send(ctx, http.MethodPut, url, nil, nil)
			lt.record(&phase, operation, userID, status, err, time.Since(startTime))
		}(id)
	}
	wg.Wait()

	return phase
}

// record updates the phase counters and the acknowledged borrow tally
func (lt *LoadTester) record(phase *PhaseResult, operation string, userID uuid.UUID, statusCode int, err error, responseTime time.Duration) {
	lt.mutex.Lock()
	defer lt.mutex.Unlock()

	phase.TotalRequests++
	if err != nil {
		phase.Failed++
		phase.ErrorsByType["http_request"]++
		return
	}

	responseTimeMs := responseTime.Milliseconds()
	if phase.MaxResponseTimeMs < responseTimeMs {
		phase.MaxResponseTimeMs = responseTimeMs
	}
	if phase.MinResponseTimeMs == 0 || phase.MinResponseTimeMs > responseTimeMs {
		phase.MinResponseTimeMs = responseTimeMs
	}
	count := float64(phase.TotalRequests)
	phase.AvgResponseTimeMs = (phase.AvgResponseTimeMs*(count-1) + float64(responseTimeMs)) / count

	switch {
	case statusCode == http.StatusOK:
		phase.Successful++
		if operation == "borrow" {
			lt.borrowed[userID]++
		}
	case statusCode == http.StatusConflict:
		phase.Conflicts++
	case statusCode == http.StatusServiceUnavailable:
		phase.Unavailable++
	default:
		phase.Failed++
		phase.ErrorsByType[fmt.Sprintf("http_%d", statusCode)]++
	}
}

// checkInvariants reads the final counters back from both services
func (lt *LoadTester) checkInvariants(ctx context.Context, result *LoadTestResult) error {
	if _, err := lt.send(ctx, http.MethodGet, lt.config.CatalogURL+"/api/books/"+lt.isbn, nil, &result.Book); err != nil {
		return fmt.Errorf("failed to read book: %w", err)
	}
	b := result.Book
	if b.AvailableCopies < 0 || b.AvailableCopies > b.TotalCopies {
		result.Violations = append(result.Violations,
			fmt.Sprintf("book %s: available %d outside [0, %d]", b.ISBN, b.AvailableCopies, b.TotalCopies))
	}
	if result.Borrow.Unavailable == 0 && result.Return.Unavailable == 0 {
		want := b.TotalCopies - result.Borrow.Successful + result.Return.Successful
		if b.AvailableCopies != want {
			result.Violations = append(result.Violations,
				fmt.Sprintf("book %s: available %d, acknowledged operations imply %d", b.ISBN, b.AvailableCopies, want))
		}
	}

	for _, id := range lt.users {
		var u user.User
		if _, err := lt.send(ctx, http.MethodGet, lt.config.LedgerURL+"/api/users/"+id.String(), nil, &u); err != nil {
			return fmt.Errorf("failed to read user %s: %w", id, err)
		}
		if u.BorrowedBooksCount < 0 || u.BorrowedBooksCount > u.MaxBooksAllowed {
			result.Violations = append(result.Violations,
				fmt.Sprintf("user %s: borrowed %d outside [0, %d]", id, u.BorrowedBooksCount, u.MaxBooksAllowed))
		}
		result.Users = append(result.Users, u)
	}
	return nil
}

func (lt *LoadTester) send(ctx context.Context, method, url string, body, out interface{}) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := lt.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func printPhase(name string, p PhaseResult) {
	fmt.Printf("\n%s phase:\n", name)
	fmt.Printf("  - Total Requests: %d\n", p.TotalRequests)
	fmt.Printf("  - Successful: %d\n", p.Successful)
	fmt.Printf("  - Conflicts (409): %d\n", p.Conflicts)
	fmt.Printf("  - Ledger unavailable (503): %d\n", p.Unavailable)
	fmt.Printf("  - Failed: %d\n", p.Failed)
	fmt.Printf("  - Response time avg/min/max: %.2f / %d / %d ms\n", p.AvgResponseTimeMs, p.MinResponseTimeMs, p.MaxResponseTimeMs)
	for errorType, count := range p.ErrorsByType {
		fmt.Printf("  - %s: %d\n", errorType, count)
	}
}

func printResults(cfg LoadTestConfig, r *LoadTestResult) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Printf("Test Configuration:\n")
	fmt.Printf("  - Users: %d (%s)\n", cfg.NumUsers, cfg.Tier)
	fmt.Printf("  - Requests per User: %d\n", cfg.RequestsPerUser)
	fmt.Printf("  - Concurrency: %d\n", cfg.ConcurrentUsers)
	fmt.Printf("  - Copies: %d\n", cfg.Copies)

	printPhase("Borrow", r.Borrow)
	printPhase("Return", r.Return)

	fmt.Printf("\nFinal state after %s:\n", r.Duration.Round(time.Millisecond))
	fmt.Printf("  - Book %s: %d of %d copies available\n", r.Book.ISBN, r.Book.AvailableCopies, r.Book.TotalCopies)

	if len(r.Violations) == 0 {
		fmt.Println("  - Invariants hold")
		return
	}
	fmt.Println("  - Invariant violations:")
	for _, v := range r.Violations {
		fmt.Printf("    * %s\n", v)
	}
}

// loadtestCmd represents the loadtest command
var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Race concurrent borrows and returns against the catalog and ledger",
	Long: `Create members and one book, fire concurrent borrows and then return every
acknowledged borrow. Afterwards the book and member counters are read back and
checked: 0 <= available <= total and 0 <= borrowed <= max for every member.
Exits non-zero when an invariant is violated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoadTest(cmd.Context())
	},
}

var (
	catalogURL      string
	ledgerURL       string
	numUsers        int
	membershipTier  string
	numCopies       int
	concurrentUsers int
	requestsPerUser int
)

func init() {
	rootCmd.AddCommand(loadtestCmd)

	loadtestCmd.Flags().StringVar(&catalogURL, "catalog-url", "http://localhost:8080", "Base URL of the catalog")
	loadtestCmd.Flags().StringVar(&ledgerURL, "ledger-url", "http://localhost:8081", "Base URL of the user ledger")
	loadtestCmd.Flags().IntVar(&numUsers, "users", 10, "Number of members to create")
	loadtestCmd.Flags().StringVar(&membershipTier, "tier", string(user.MembershipStudent), "Membership type: STUDENT, REGULAR or PREMIUM")
	loadtestCmd.Flags().IntVar(&numCopies, "copies", 5, "Copies of the contended book")
	loadtestCmd.Flags().IntVar(&concurrentUsers, "concurrent", 50, "Number of requests in flight")
	loadtestCmd.Flags().IntVar(&requestsPerUser, "requests", 5, "Borrow attempts per member")
}

func runLoadTest(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := LoadTestConfig{
		CatalogURL:      strings.TrimRight(catalogURL, "/"),
		LedgerURL:       strings.TrimRight(ledgerURL, "/"),
		NumUsers:        numUsers,
		Tier:            user.MembershipType(strings.ToUpper(membershipTier)),
		Copies:          numCopies,
		ConcurrentUsers: concurrentUsers,
		RequestsPerUser: requestsPerUser,
	}
	if cfg.NumUsers < 1 || cfg.ConcurrentUsers < 1 || cfg.Copies < 0 {
		return fmt.Errorf("users and concurrent must be positive and copies non-negative")
	}

	fmt.Println("Library Borrow/Return Load Test")
	fmt.Println("===============================")

	loadTester := NewLoadTester(cfg)
	if err := loadTester.Initialize(ctx); err != nil {
		return err
	}

	result, err := loadTester.RunLoadTest(ctx)
	if err != nil {
		return err
	}
	printResults(cfg, result)

	if len(result.Violations) > 0 {
		os.Exit(2)
	}
	return nil
}
