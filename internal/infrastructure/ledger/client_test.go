package ledger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"library-services/internal/infrastructure/discovery"
	"library-services/internal/reliability/circuitbreaker"
	"library-services/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	if cfg.ServiceName == "" {
		cfg.ServiceName = "user-service"
	}
	resolver := discovery.NewStaticResolver(map[string]string{"user-service": srv.URL})
	return NewClient(resolver, cfg)
}

func TestClientCanBorrow(t *testing.T) {
	id := uuid.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/users/"+id.String()+"/can-borrow", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"canBorrow":true}`))
	}, Config{})

	ok, err := c.CanBorrow(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClientTranslatesStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		kind   error
	}{
		{http.StatusNotFound, apperror.ErrNotFound},
		{http.StatusConflict, apperror.ErrConflict},
		{http.StatusBadRequest, apperror.ErrValidation},
		{http.StatusInternalServerError, apperror.ErrRemoteUnavailable},
		{http.StatusServiceUnavailable, apperror.ErrRemoteUnavailable},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"status":0,"message":"maximum book limit reached"}`))
			}, Config{})

			err := c.IncrementBorrowed(context.Background(), uuid.New())
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.kind)
			if tc.status < 500 {
				assert.Equal(t, "maximum book limit reached", err.Error())
			}
		})
	}
}

func TestClientTimeoutIsRemoteUnavailable(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, Config{Timeout: 50 * time.Millisecond})
	defer close(release)

	start := time.Now()
	err := c.DecrementBorrowed(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrRemoteUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClientUnknownServiceIsRemoteUnavailable(t *testing.T) {
	c := NewClient(discovery.NewStaticResolver(nil), Config{ServiceName: "user-service"})
	_, err := c.CanBorrow(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrRemoteUnavailable)
}

func TestClientBreakerFailsFast(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, Config{Breaker: circuitbreaker.NewCircuitBreaker(2, 1, time.Hour)})

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, c.IncrementBorrowed(context.Background(), uuid.New()), apperror.ErrRemoteUnavailable)
	}
	err := c.IncrementBorrowed(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrRemoteUnavailable)
	assert.True(t, errors.Is(err, circuitbreaker.ErrOpen))
	assert.Equal(t, int32(2), hits.Load())
}

func TestClientBreakerIgnoresDefinitiveAnswers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}, Config{Breaker: circuitbreaker.NewCircuitBreaker(1, 1, time.Hour)})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, c.IncrementBorrowed(context.Background(), uuid.New()), apperror.ErrConflict)
	}
}
