package api

import (
	"context"
	"net/http"
	"time"

	"github.com/hookline/hookline/internal/store"
	"github.com/hookline/hookline/internal/websocket"
)

// HealthHandler reports the state of the delivery pipeline: database
// reachability, worker pool size and live feed connections.
type HealthHandler struct {
	store      *store.PostgresStore
	hub        *websocket.Hub
	numWorkers int
	started    time.Time
}

func NewHealthHandler(s *store.PostgresStore, hub *websocket.Hub, numWorkers int) *HealthHandler {
	return &HealthHandler{store: s, hub: hub, numWorkers: numWorkers, started: time.Now()}
}

type healthStatus struct {
	Status           string `json:"status"`
	Database         string `json:"database"`
	Workers          int    `json:"workers"`
	ConnectedClients int    `json:"connected_clients"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := healthStatus{
		Status:        "healthy",
		Database:      "ok",
		Workers:       h.numWorkers,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	if h.hub != nil {
		resp.ConnectedClients = h.hub.ClientCount()
	}

	code := http.StatusOK
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}

	respondJSON(w, code, resp)
}
