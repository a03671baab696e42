package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/usecase"
)

// LeadService is the orchestrator surface exposed over HTTP.
type LeadService interface {
	Status(ctx context.Context, rawID string) (*entity.Lead, error)
	Create(ctx context.Context, rawID string, input usecase.CreateLeadInput, opts usecase.CallOptions) (*entity.Lead, error)
	Sync(ctx context.Context, rawID string, opts usecase.CallOptions) (*entity.Lead, error)
	Close(ctx context.Context, rawID string, input usecase.CloseLeadInput, opts usecase.CallOptions) (*entity.Lead, error)
	Bulk(ctx context.Context, input usecase.BulkInput) (*usecase.BulkOutput, error)
}

const idempotencyHeader = "Idempotency-Key"

type LeadHandler struct {
	leads       LeadService
	rateLimiter *RateLimiter
	log         *slog.Logger
}

func NewLeadHandler(leads LeadService, rateLimiter *RateLimiter, log *slog.Logger) *LeadHandler {
	if rateLimiter == nil {
		rateLimiter = NewRateLimiter(10)
	}
	if log == nil {
		log = slog.Default()
	}
	return &LeadHandler{leads: leads, rateLimiter: rateLimiter, log: log}
}

func (h *LeadHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	lead, err := h.leads.Status(r.Context(), chi.URLParam(r, "leadId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	clientIP := getClientIP(r)
	if !h.rateLimiter.Allow(clientIP) {
		w.Header().Set("Retry-After", "60")
		writeErrorResponse(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, try again later")
		return
	}

	var input usecase.CreateLeadInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	input.IPAddress = clientIP

	leadID := chi.URLParam(r, "leadId")
	if leadID == "" {
		leadID = entity.NewLeadID()
	}

	lead, err := h.leads.Create(r.Context(), leadID, input, callOptions(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

func (h *LeadHandler) Sync(w http.ResponseWriter, r *http.Request) {
	lead, err := h.leads.Sync(r.Context(), chi.URLParam(r, "leadId"), callOptions(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *LeadHandler) Close(w http.ResponseWriter, r *http.Request) {
	var input usecase.CloseLeadInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	lead, err := h.leads.Close(r.Context(), chi.URLParam(r, "leadId"), input, callOptions(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *LeadHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var input usecase.BulkInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body: "+err.Error())
		return
	}
	out, err := h.leads.Bulk(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if input.Async {
		status = http.StatusAccepted
	}
	writeJSON(w, status, out)
}

func (h *LeadHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := usecase.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeErrorResponse(w, status, usecase.ErrorCode(err), err.Error())
}

func callOptions(r *http.Request) usecase.CallOptions {
	return usecase.CallOptions{InvocationID: r.Header.Get(idempotencyHeader)}
}
