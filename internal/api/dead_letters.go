package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/store"
)

type DeadLetterHandler struct {
	store *store.PostgresStore
}

func NewDeadLetterHandler(s *store.PostgresStore) *DeadLetterHandler {
	return &DeadLetterHandler{store: s}
}

func (h *DeadLetterHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.DeliveryFilter{
		TenantID:   q.Get("tenant_id"),
		EndpointID: q.Get("endpoint_id"),
		Status:     domain.StatusDeadLetter,
		Limit:      parseLimit(q.Get("limit")),
	}

	deliveries, err := h.store.ListDeliveries(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}

	respondJSON(w, http.StatusOK, deliveries)
}

func (h *DeadLetterHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.store.Requeue(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			respondError(w, http.StatusNotFound, "delivery not found")
		case errors.Is(err, store.ErrInvalidState):
			respondError(w, http.StatusConflict, "delivery is not dead-lettered")
		default:
			respondError(w, http.StatusInternalServerError, "failed to requeue delivery")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"delivery_id": id,
		"status":      domain.StatusPending,
	})
}
