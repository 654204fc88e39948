package api

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/hookline/hookline/internal/websocket"
)

func TestHealthCheck_ReportsPipelineState(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	hub := websocket.NewHub(logger)
	go hub.Run()

	h := NewHealthHandler(nil, hub, 50)

	rec := httptest.NewRecorder()
	h.Check(rec, httptest.NewRequest("GET", "/api/v1/health", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp healthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Workers != 50 {
		t.Errorf("workers = %d, want 50", resp.Workers)
	}
	if resp.ConnectedClients != 0 {
		t.Errorf("connected_clients = %d, want 0", resp.ConnectedClients)
	}
}
