package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hookline/hookline/internal/store"
	"github.com/hookline/hookline/internal/websocket"
)

type StatsHandler struct {
	store *store.PostgresStore
	hub   *websocket.Hub
}

func NewStatsHandler(s *store.PostgresStore, hub *websocket.Hub) *StatsHandler {
	return &StatsHandler{store: s, hub: hub}
}

func (h *StatsHandler) EndpointStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stats, err := h.store.GetEndpointStats(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get endpoint stats")
		return
	}
	if stats == nil {
		respondError(w, http.StatusNotFound, "endpoint not found")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.store.GetOverviewMetrics(r.Context(), r.URL.Query().Get("tenant_id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get metrics")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"deliveries":        metrics,
		"connected_clients": h.hub.ClientCount(),
	})
}
