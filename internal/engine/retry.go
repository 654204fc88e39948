package engine

import (
	"math/rand"
	"time"

	"github.com/hookline/hookline/internal/domain"
)

// RetryPolicy computes backoff delays and next-state decisions for delivery
// attempts. Pure apart from the jitter's randomness, so it can be unit tested
// without I/O.
type RetryPolicy struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter float64 // fraction in [0, 1), e.g. 0.2 for +/-20%
}

// Backoff returns the delay before the next try after `attempt` failed
// attempts: min(base * 2^(attempt-1), cap) scaled by a random factor in
// [1-jitter, 1+jitter]. The first failure waits base, the second 2*base and
// so on. Jitter spreads retries out so a recovering endpoint is not hit by a
// thundering herd.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.Cap {
			d = p.Cap
			break
		}
	}
	if d > p.Cap {
		d = p.Cap
	}

	if p.Jitter > 0 {
		factor := 1 + (rand.Float64()*2-1)*p.Jitter
		d = time.Duration(float64(d) * factor)
	}

	return d
}

// Decision is the state transition chosen for a delivery after one attempt.
type Decision struct {
	Status        string
	NextAttemptAt *time.Time // nil once terminal
	DeliveredAt   *time.Time
}

// Decide maps an attempt outcome to the delivery's next state. attemptCount
// is the count after this attempt.
func (p RetryPolicy) Decide(attemptCount, maxAttempts int, success bool, now time.Time) Decision {
	if success {
		return Decision{Status: domain.StatusDelivered, DeliveredAt: &now}
	}

	if attemptCount >= maxAttempts {
		return Decision{Status: domain.StatusDeadLetter}
	}

	next := now.Add(p.Backoff(attemptCount))
	return Decision{Status: domain.StatusRetrying, NextAttemptAt: &next}
}
