package engine

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// The circuit breaker's state lives on the endpoint row and is mutated inside
// the same transaction as the delivery outcome write, so every worker process
// sees one consistent consecutive-failure counter. This file carries the
// delivery-independent pieces: summarizing a failure for the endpoint's
// last_failure_reason column.

// FailureReason produces a short, stable summary of why an attempt failed,
// suitable for storing on the endpoint and for grouping in dashboards.
func FailureReason(err error, statusCode int) string {
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return "timeout"
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "timeout"
		}

		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "context deadline exceeded"):
			return "timeout"
		case strings.Contains(msg, "connection refused"):
			return "connection_refused"
		case strings.Contains(msg, "no such host"):
			return "dns_error"
		default:
			return "network_error"
		}
	}

	if statusCode > 0 {
		return fmt.Sprintf("http_%d", statusCode)
	}
	return "unknown"
}
