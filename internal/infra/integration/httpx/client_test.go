package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isPermanent(err error) bool {
	var p *backoff.PermanentError
	return errors.As(err, &p)
}

func TestDoStatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		permanent bool
		notFound  bool
	}{
		{http.StatusBadRequest, true, false},
		{http.StatusNotFound, true, true},
		{http.StatusRequestTimeout, false, false},
		{http.StatusTooManyRequests, false, false},
		{http.StatusBadGateway, false, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(" nope \n"))
			}))
			defer srv.Close()

			err := New("vendor", srv.URL, 0).Do(context.Background(), http.MethodGet, "/x", nil, nil)
			require.Error(t, err)
			assert.Equal(t, tt.permanent, isPermanent(err))
			assert.Equal(t, tt.notFound, IsNotFound(err))

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, "nope", se.Body)
			assert.Equal(t, tt.status, se.StatusCode)
		})
	}
}

func TestDoRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "/things", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"t-1"}`))
	}))
	defer srv.Close()

	c := New("vendor", srv.URL+"/", 0)
	c.Authorize = func(_ context.Context, req *http.Request) error {
		req.Header.Set("X-Api-Key", "secret")
		return nil
	}
	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, c.Do(context.Background(), http.MethodPost, "/things", map[string]string{"a": "b"}, &out))
	assert.Equal(t, "t-1", out.ID)
}

func TestDoAuthorizeFailure(t *testing.T) {
	c := New("vendor", "http://127.0.0.1:0", 0)
	c.Authorize = func(context.Context, *http.Request) error { return errors.New("no credentials") }
	assert.EqualError(t, c.Do(context.Background(), http.MethodGet, "/", nil, nil), "no credentials")
}

func TestDoUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	var out map[string]any
	err := New("vendor", srv.URL, 0).Do(context.Background(), http.MethodGet, "/", nil, &out)
	require.Error(t, err)
	assert.False(t, isPermanent(err))
}
