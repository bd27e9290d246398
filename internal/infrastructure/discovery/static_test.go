package discovery

import (
	"context"
	"testing"

	"library-services/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver(map[string]string{"User-Service": "http://ledger:8081/"})

	url, err := r.Resolve(context.Background(), "user-service")
	require.NoError(t, err)
	assert.Equal(t, "http://ledger:8081", url)

	_, err = r.Resolve(context.Background(), "book-service")
	assert.ErrorIs(t, err, apperror.ErrRemoteUnavailable)
}
