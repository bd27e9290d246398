// Package ledger is the catalog's HTTP client for the user ledger service.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	serviceInterfaces "library-services/internal/interfaces/service"
	"library-services/internal/observability/metrics"
	"library-services/internal/reliability/circuitbreaker"
	"library-services/pkg/apperror"
	"library-services/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	opCanBorrow = "can_borrow"
	opBorrow    = "borrow"
	opReturn    = "return"

	maxErrorBody = 64 << 10
)

type Config struct {
	ServiceName string
	Timeout     time.Duration
	// Breaker is optional; nil disables fail-fast.
	Breaker *circuitbreaker.CircuitBreaker
}

// Client calls the ledger over HTTP. It never retries: a failed borrow or
// return is reported once and the caller decides what to do with it.
type Client struct {
	resolver    serviceInterfaces.Resolver
	serviceName string
	httpClient  *http.Client
	breaker     *circuitbreaker.CircuitBreaker
}

var _ serviceInterfaces.LedgerClient = (*Client)(nil)

func NewClient(resolver serviceInterfaces.Resolver, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		resolver:    resolver,
		serviceName: cfg.ServiceName,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: cfg.Breaker,
	}
}

type eligibilityBody struct {
	CanBorrow bool `json:"canBorrow"`
}

type errorBody struct {
	Message string `json:"message"`
}

func (c *Client) CanBorrow(ctx context.Context, userID uuid.UUID) (bool, error) {
	var body eligibilityBody
	err := c.call(ctx, opCanBorrow, http.MethodGet, "/api/users/"+userID.String()+"/can-borrow", &body)
	if err != nil {
		return false, err
	}
	return body.CanBorrow, nil
}

func (c *Client) IncrementBorrowed(ctx context.Context, userID uuid.UUID) error {
	return c.call(ctx, opBorrow, http.MethodPut, "/api/users/"+userID.String()+"/borrow", nil)
}

func (c *Client) DecrementBorrowed(ctx context.Context, userID uuid.UUID) error {
	return c.call(ctx, opReturn, http.MethodPut, "/api/users/"+userID.String()+"/return", nil)
}

func (c *Client) call(ctx context.Context, op, method, path string, out interface{}) error {
	start := time.Now()

	do := func() error { return c.do(ctx, method, path, out) }
	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(do, isTransportFailure)
		if errors.Is(err, circuitbreaker.ErrOpen) {
			err = apperror.RemoteUnavailable(err, "%s circuit is open", c.serviceName)
		}
	} else {
		err = do()
	}

	metrics.ObserveLedgerCall(op, resultOf(err), time.Since(start))
	if err != nil && errors.Is(err, apperror.ErrRemoteUnavailable) {
		logger.Warn("Ledger %s %s failed: %v", method, path, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	baseURL, err := c.resolver.Resolve(ctx, c.serviceName)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build ledger request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperror.RemoteUnavailable(err, "%s unreachable: %v", c.serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperror.RemoteUnavailable(err, "%s returned an unreadable body: %v", c.serviceName, err)
		}
		return nil
	}

	return apperror.FromStatus(resp.StatusCode, readMessage(resp))
}

func readMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return http.StatusText(resp.StatusCode)
	}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return string(raw)
}

func isTransportFailure(err error) bool {
	return errors.Is(err, apperror.ErrRemoteUnavailable)
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, apperror.ErrConflict):
		return metrics.ResultConflict
	case errors.Is(err, apperror.ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, apperror.ErrValidation):
		return metrics.ResultInvalid
	case errors.Is(err, apperror.ErrRemoteUnavailable):
		return metrics.ResultUnavailable
	default:
		return metrics.ResultError
	}
}
