package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		want       string
	}{
		{"net timeout", timeoutErr{}, 0, "timeout"},
		{"wrapped net timeout", fmt.Errorf("doing request: %w", timeoutErr{}), 0, "timeout"},
		{"context deadline", context.DeadlineExceeded, 0, "timeout"},
		{"connection refused", errors.New(`dial tcp 127.0.0.1:9999: connect: connection refused`), 0, "connection_refused"},
		{"dns failure", errors.New(`dial tcp: lookup nosuchhost.invalid: no such host`), 0, "dns_error"},
		{"other network error", errors.New("EOF"), 0, "network_error"},
		{"http 500", nil, 500, "http_500"},
		{"http 404", nil, 404, "http_404"},
		{"http 301", nil, 301, "http_301"},
		{"nothing known", nil, 0, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FailureReason(tt.err, tt.statusCode)
			if got != tt.want {
				t.Errorf("FailureReason(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.want)
			}
		})
	}
}
