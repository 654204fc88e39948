package api

import (
	"net/http/httptest"
	"strings"
	"testing"
)

// Validation runs before any store access, so these use a zero handler.

func TestEndpointCreate_Validation(t *testing.T) {
	h := &EndpointHandler{defaultMaxRetries: 5}

	tests := []struct {
		name string
		body string
	}{
		{"missing tenant", `{"name":"n","url":"https://x.test/hook","event_types":["*"]}`},
		{"missing name", `{"tenant_id":"t1","url":"https://x.test/hook","event_types":["*"]}`},
		{"bad url", `{"tenant_id":"t1","name":"n","url":"ftp://x.test","event_types":["*"]}`},
		{"no event types", `{"tenant_id":"t1","name":"n","url":"https://x.test/hook","event_types":[]}`},
		{"negative max_retries", `{"tenant_id":"t1","name":"n","url":"https://x.test/hook","event_types":["*"],"max_retries":-1}`},
		{"negative rate limit", `{"tenant_id":"t1","name":"n","url":"https://x.test/hook","event_types":["*"],"rate_limit_per_second":-5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/api/v1/endpoints", strings.NewReader(tt.body))
			h.Create(rec, req)

			if rec.Code != 400 {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestEndpointUpdate_RejectsNonPositiveMaxRetries(t *testing.T) {
	h := &EndpointHandler{defaultMaxRetries: 5}

	// max_retries 0 on an existing endpoint would make the first failed
	// attempt exceed the delivery's budget.
	for _, body := range []string{
		`{"max_retries":0}`,
		`{"max_retries":-3}`,
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("PATCH", "/api/v1/endpoints/ep-1", strings.NewReader(body))
		h.Update(rec, req)

		if rec.Code != 400 {
			t.Errorf("PATCH %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestEndpointUpdate_Validation(t *testing.T) {
	h := &EndpointHandler{defaultMaxRetries: 5}

	tests := []struct {
		name string
		body string
	}{
		{"bad url", `{"url":"not a url"}`},
		{"empty event types", `{"event_types":[]}`},
		{"negative rate limit", `{"rate_limit_per_second":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("PATCH", "/api/v1/endpoints/ep-1", strings.NewReader(tt.body))
			h.Update(rec, req)

			if rec.Code != 400 {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}
