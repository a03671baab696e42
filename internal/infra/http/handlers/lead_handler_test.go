package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/usecase"
)

const testLeadID = "3f1c2a9e-8b4d-4c7a-9e2f-1a2b3c4d5e6f"

// MockLeadService
type MockLeadService struct {
	mock.Mock
}

func (m *MockLeadService) Status(ctx context.Context, rawID string) (*entity.Lead, error) {
	args := m.Called(ctx, rawID)
	return leadArg(args.Get(0)), args.Error(1)
}

func (m *MockLeadService) Create(ctx context.Context, rawID string, input usecase.CreateLeadInput, opts usecase.CallOptions) (*entity.Lead, error) {
	args := m.Called(ctx, rawID, input, opts)
	return leadArg(args.Get(0)), args.Error(1)
}

func (m *MockLeadService) Sync(ctx context.Context, rawID string, opts usecase.CallOptions) (*entity.Lead, error) {
	args := m.Called(ctx, rawID, opts)
	return leadArg(args.Get(0)), args.Error(1)
}

func (m *MockLeadService) Close(ctx context.Context, rawID string, input usecase.CloseLeadInput, opts usecase.CallOptions) (*entity.Lead, error) {
	args := m.Called(ctx, rawID, input, opts)
	return leadArg(args.Get(0)), args.Error(1)
}

func (m *MockLeadService) Bulk(ctx context.Context, input usecase.BulkInput) (*usecase.BulkOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.BulkOutput), args.Error(1)
}

func leadArg(v any) *entity.Lead {
	if v == nil {
		return nil
	}
	return v.(*entity.Lead)
}

func routes(h *LeadHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/leads", h.Create)
	r.Get("/leads/{leadId}", h.GetStatus)
	r.Post("/leads/{leadId}", h.Create)
	r.Post("/leads/{leadId}/sync", h.Sync)
	r.Post("/leads/{leadId}/close", h.Close)
	r.Post("/admin/bulk", h.Bulk)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestCreateWithPathID(t *testing.T) {
	svc := new(MockLeadService)
	svc.On("Create", mock.Anything, testLeadID, mock.MatchedBy(func(in usecase.CreateLeadInput) bool {
		return in.UniversalRetailerID == "r-1" && in.IPAddress == "203.0.113.9"
	}), usecase.CallOptions{InvocationID: "key-1"}).
		Return(&entity.Lead{LeadID: testLeadID, Status: entity.StatusActive}, nil)

	w := do(t, routes(NewLeadHandler(svc, nil, nil)), http.MethodPost, "/leads/"+testLeadID,
		`{"LeadType":"MESSAGE","UniversalRetailerId":"r-1","LocationId":"loc-1","Lead":{"Name":"Ana","PhoneNumber":"+15551234567","Message":"hi"}}`,
		map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1", idempotencyHeader: "key-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	var lead entity.Lead
	require.NoError(t, json.NewDecoder(w.Body).Decode(&lead))
	assert.Equal(t, entity.StatusActive, lead.Status)
	svc.AssertExpectations(t)
}

func TestCreateGeneratesID(t *testing.T) {
	svc := new(MockLeadService)
	svc.On("Create", mock.Anything, mock.MatchedBy(func(id string) bool {
		_, err := entity.ParseLeadID(id)
		return err == nil
	}), mock.Anything, usecase.CallOptions{}).Return(&entity.Lead{}, nil)

	w := do(t, routes(NewLeadHandler(svc, nil, nil)), http.MethodPost, "/leads", `{}`, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestCreateInvalidJSON(t *testing.T) {
	svc := new(MockLeadService)
	w := do(t, routes(NewLeadHandler(svc, nil, nil)), http.MethodPost, "/leads", "invalid json", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_JSON", decodeError(t, w).Error)
	svc.AssertNotCalled(t, "Create")
}

func TestCreateRateLimited(t *testing.T) {
	svc := new(MockLeadService)
	svc.On("Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(&entity.Lead{}, nil)
	h := routes(NewLeadHandler(svc, NewRateLimiter(1), nil))

	first := do(t, h, http.MethodPost, "/leads", `{}`, map[string]string{"X-Real-IP": "198.51.100.7"})
	second := do(t, h, http.MethodPost, "/leads", `{}`, map[string]string{"X-Real-IP": "198.51.100.7"})

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", decodeError(t, second).Error)
	svc.AssertNumberOfCalls(t, "Create", 1)
}

func TestErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &usecase.ValidationError{Check: "account", Reason: "account churned"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"illegal state", &usecase.IllegalStateError{Message: "lead is closed"}, http.StatusConflict, "ILLEGAL_STATE"},
		{"bad request", &usecase.BadRequestError{Message: "malformed lead id"}, http.StatusBadRequest, "BAD_REQUEST"},
		{"technical", &usecase.TechnicalError{Code: "LOCK_UNAVAILABLE", Message: "lock"}, http.StatusServiceUnavailable, "LOCK_UNAVAILABLE"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockLeadService)
			svc.On("Sync", mock.Anything, testLeadID, usecase.CallOptions{}).Return(nil, tt.err)

			w := do(t, routes(NewLeadHandler(svc, nil, nil)), http.MethodPost, "/leads/"+testLeadID+"/sync", "", nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Error)
		})
	}
}

func TestGetStatus(t *testing.T) {
	svc := new(MockLeadService)
	svc.On("Status", mock.Anything, testLeadID).Return(&entity.Lead{LeadID: testLeadID, Status: entity.StatusSyncing}, nil)

	w := do(t, routes(NewLeadHandler(svc, nil, nil)), http.MethodGet, "/leads/"+testLeadID, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"SYNCING"`)
}

func TestCloseBody(t *testing.T) {
	svc := new(MockLeadService)
	svc.On("Close", mock.Anything, testLeadID, usecase.CloseLeadInput{}, usecase.CallOptions{}).Return(&entity.Lead{}, nil).Once()
	svc.On("Close", mock.Anything, testLeadID, usecase.CloseLeadInput{Reason: "sold"}, usecase.CallOptions{}).Return(&entity.Lead{}, nil).Once()
	h := routes(NewLeadHandler(svc, nil, nil))

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/leads/"+testLeadID+"/close", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/leads/"+testLeadID+"/close", `{"Reason":"sold"}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/leads/"+testLeadID+"/close", `{"Reason":`, nil).Code)
	svc.AssertExpectations(t)
}

func TestBulk(t *testing.T) {
	svc := new(MockLeadService)
	svc.On("Bulk", mock.Anything, mock.MatchedBy(func(in usecase.BulkInput) bool { return !in.Async })).
		Return(&usecase.BulkOutput{Count: 1, Result: []usecase.BulkItem{{LeadID: "a", Status: "OK"}}}, nil)
	svc.On("Bulk", mock.Anything, mock.MatchedBy(func(in usecase.BulkInput) bool { return in.Async })).
		Return(&usecase.BulkOutput{Count: 2}, nil)
	h := routes(NewLeadHandler(svc, nil, nil))

	w := do(t, h, http.MethodPost, "/admin/bulk", `{"Operation":"FIND","Filter":"*"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var out usecase.BulkOutput
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	assert.Equal(t, 1, out.Count)

	w = do(t, h, http.MethodPost, "/admin/bulk", `{"Operation":"SYNC","Filter":{"Status":["ERROR"]},"Async":true}`, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = do(t, h, http.MethodPost, "/admin/bulk", `{"Operation":"SYNC","Filter":"everything"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": " 203.0.113.1 , 10.0.0.2"}, "10.0.0.3:1234", "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.3:1234", "198.51.100.2"},
		{"remote addr", nil, "192.0.2.5:5555", "192.0.2.5"},
		{"remote without port", nil, "192.0.2.5", "192.0.2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", bytes.NewReader(nil))
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestRateLimiterIsPerIP(t *testing.T) {
	rl := NewRateLimiter(2)
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
}
