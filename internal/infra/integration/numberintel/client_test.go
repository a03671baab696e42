package numberintel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/numbers/+15551234567":
			_, _ = w.Write([]byte(`{"valid":true,"lineType":"mobile","optedOut":true}`))
		case "/numbers/+15550000000":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	ctx := context.Background()

	info, err := c.Lookup(ctx, "+15551234567")
	require.NoError(t, err)
	assert.True(t, info.Valid)
	assert.True(t, info.OptedOut)
	assert.Equal(t, "mobile", info.LineType)
	assert.Equal(t, "+15551234567", info.PhoneNumber)

	info, err = c.Lookup(ctx, "+15550000000")
	require.NoError(t, err)
	assert.False(t, info.Valid)

	_, err = c.Lookup(ctx, "+15559999999")
	assert.Error(t, err)
}
