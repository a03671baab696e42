package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name   string
		deps   map[string]Pinger
		code   int
		status string
	}{
		{"all healthy", map[string]Pinger{"database": ok, "redis": nil}, http.StatusOK, "healthy"},
		{"one down", map[string]Pinger{"database": ok, "rabbitmq": down}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandler("test", tt.deps).Handle(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.code, w.Code)
			var resp HealthResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, "test", resp.Version)
			assert.Equal(t, "healthy", resp.Dependencies["database"])
		})
	}

	w := httptest.NewRecorder()
	NewHealthHandler("test", map[string]Pinger{"redis": nil, "rabbitmq": down}).Handle(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "not configured", resp.Dependencies["redis"])
	assert.Equal(t, "unhealthy: connection refused", resp.Dependencies["rabbitmq"])
}
