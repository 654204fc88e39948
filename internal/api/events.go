package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hookline/hookline/internal/engine"
	"github.com/hookline/hookline/internal/store"
)

type EventHandler struct {
	store    *store.PostgresStore
	enqueuer *engine.Enqueuer
}

func NewEventHandler(s *store.PostgresStore, e *engine.Enqueuer) *EventHandler {
	return &EventHandler{store: s, enqueuer: e}
}

type publishRequest struct {
	TenantID  string          `json:"tenant_id"`
	EventID   string          `json:"event_id,omitempty"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type publishResponse struct {
	EventID          string   `json:"event_id"`
	EventType        string   `json:"event_type"`
	DeliveriesQueued int      `json:"deliveries_queued"`
	DeliveryIDs      []string `json:"delivery_ids"`
}

// Publish accepts a domain event and fans it out. Fire-and-forget from the
// caller's perspective: the response acknowledges the enqueue only, delivery
// happens asynchronously.
func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	eventID, ids, err := h.enqueuer.Publish(r.Context(), req.TenantID, req.EventID, req.EventType, req.Payload)
	if err != nil {
		var vErr *engine.ValidationError
		if errors.As(err, &vErr) {
			respondError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to publish event")
		return
	}

	respondJSON(w, http.StatusCreated, publishResponse{
		EventID:          eventID,
		EventType:        req.EventType,
		DeliveriesQueued: len(ids),
		DeliveryIDs:      ids,
	})
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	eventType := r.URL.Query().Get("event_type")
	limit := parseLimit(r.URL.Query().Get("limit"))

	events, err := h.store.ListEvents(r.Context(), tenantID, eventType, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	respondJSON(w, http.StatusOK, events)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tenantID := r.URL.Query().Get("tenant_id")

	if tenantID == "" {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	event, err := h.store.GetEvent(r.Context(), tenantID, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if event == nil {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}

	respondJSON(w, http.StatusOK, event)
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
