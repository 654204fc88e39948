package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/store"
)

type EndpointHandler struct {
	store             *store.PostgresStore
	defaultMaxRetries int
}

func NewEndpointHandler(s *store.PostgresStore, defaultMaxRetries int) *EndpointHandler {
	return &EndpointHandler{store: s, defaultMaxRetries: defaultMaxRetries}
}

func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.TenantID == "" {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !validURL(req.URL) {
		respondError(w, http.StatusBadRequest, "url must be a valid http(s) URL")
		return
	}
	if len(req.EventTypes) == 0 {
		respondError(w, http.StatusBadRequest, "at least one event_type is required")
		return
	}
	if req.MaxRetries < 0 {
		respondError(w, http.StatusBadRequest, "max_retries must be positive")
		return
	}
	if req.RateLimitPerSecond < 0 {
		respondError(w, http.StatusBadRequest, "rate_limit_per_second cannot be negative")
		return
	}
	// Omitted max_retries gets the configured default.
	if req.MaxRetries == 0 {
		req.MaxRetries = h.defaultMaxRetries
	}

	ep, err := h.store.CreateEndpoint(r.Context(), req, h.defaultMaxRetries)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create endpoint")
		return
	}

	// The secret is returned once, on creation.
	respondJSON(w, http.StatusCreated, domain.CreateEndpointResponse{
		ID:       ep.ID,
		TenantID: ep.TenantID,
		Name:     ep.Name,
		Secret:   ep.Secret,
	})
}

func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")

	endpoints, err := h.store.ListEndpoints(r.Context(), tenantID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list endpoints")
		return
	}

	for i := range endpoints {
		endpoints[i].Secret = ""
	}

	respondJSON(w, http.StatusOK, endpoints)
}

func (h *EndpointHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ep, err := h.store.GetEndpoint(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get endpoint")
		return
	}
	if ep == nil {
		respondError(w, http.StatusNotFound, "endpoint not found")
		return
	}

	ep.Secret = ""
	respondJSON(w, http.StatusOK, ep)
}

func (h *EndpointHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req domain.UpdateEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.URL != nil && !validURL(*req.URL) {
		respondError(w, http.StatusBadRequest, "url must be a valid http(s) URL")
		return
	}
	if req.EventTypes != nil && len(*req.EventTypes) == 0 {
		respondError(w, http.StatusBadRequest, "at least one event_type is required")
		return
	}
	// A max_retries of zero would let the first failed attempt overrun the
	// delivery's budget, so it is rejected here rather than defaulted.
	if req.MaxRetries != nil && *req.MaxRetries <= 0 {
		respondError(w, http.StatusBadRequest, "max_retries must be positive")
		return
	}
	if req.RateLimitPerSecond != nil && *req.RateLimitPerSecond < 0 {
		respondError(w, http.StatusBadRequest, "rate_limit_per_second cannot be negative")
		return
	}

	ep, err := h.store.UpdateEndpoint(r.Context(), id, req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update endpoint")
		return
	}
	if ep == nil {
		respondError(w, http.StatusNotFound, "endpoint not found")
		return
	}

	ep.Secret = ""
	respondJSON(w, http.StatusOK, ep)
}

func (h *EndpointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteEndpoint(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "endpoint not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete endpoint")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Enable clears an auto-disable and re-activates the endpoint. This is the
// explicit operator action that forgives the circuit breaker.
func (h *EndpointHandler) Enable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ep, err := h.store.EnableEndpoint(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to enable endpoint")
		return
	}
	if ep == nil {
		respondError(w, http.StatusNotFound, "endpoint not found")
		return
	}

	ep.Secret = ""
	respondJSON(w, http.StatusOK, ep)
}

func (h *EndpointHandler) Health(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ep, err := h.store.GetEndpoint(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get endpoint")
		return
	}
	if ep == nil {
		respondError(w, http.StatusNotFound, "endpoint not found")
		return
	}

	type healthResponse struct {
		EndpointID          string     `json:"endpoint_id"`
		TenantID            string     `json:"tenant_id"`
		URL                 string     `json:"url"`
		IsActive            bool       `json:"is_active"`
		Deliverable         bool       `json:"deliverable"`
		ConsecutiveFailures int        `json:"consecutive_failures"`
		LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
		LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
		LastFailureReason   *string    `json:"last_failure_reason,omitempty"`
		AutoDisabledAt      *time.Time `json:"auto_disabled_at,omitempty"`
	}

	respondJSON(w, http.StatusOK, healthResponse{
		EndpointID:          ep.ID,
		TenantID:            ep.TenantID,
		URL:                 ep.URL,
		IsActive:            ep.IsActive,
		Deliverable:         ep.Deliverable(),
		ConsecutiveFailures: ep.ConsecutiveFailures,
		LastSuccessAt:       ep.LastSuccessAt,
		LastFailureAt:       ep.LastFailureAt,
		LastFailureReason:   ep.LastFailureReason,
		AutoDisabledAt:      ep.AutoDisabledAt,
	})
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
