package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hookline/hookline/internal/store"
)

// fakeClaimStore hands out a fixed queue of claims, one batch per poll.
type fakeClaimStore struct {
	mu       sync.Mutex
	queue    []store.ClaimedDelivery
	released int64
	sweeps   int
}

func (f *fakeClaimStore) ClaimDue(ctx context.Context, limit int) ([]store.ClaimedDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := limit
	if n > len(f.queue) {
		n = len(f.queue)
	}
	batch := f.queue[:n]
	f.queue = f.queue[n:]
	return batch, nil
}

func (f *fakeClaimStore) ReleaseStale(ctx context.Context, timeout time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return f.released, nil
}

// countingHandler records every job it sees.
type countingHandler struct {
	mu   sync.Mutex
	seen map[string]int
}

func (h *countingHandler) Handle(ctx context.Context, job store.ClaimedDelivery) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.seen == nil {
		h.seen = make(map[string]int)
	}
	h.seen[job.ID]++
}

func TestScheduler_DispatchesClaimedDeliveries(t *testing.T) {
	claims := &fakeClaimStore{}
	for _, id := range []string{"dlv-a", "dlv-b", "dlv-c", "dlv-d", "dlv-e"} {
		claims.queue = append(claims.queue, store.ClaimedDelivery{ID: id})
	}

	handler := &countingHandler{}
	logger := testLogger()

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(3, handler, logger)
	pool.Start(ctx)

	s := &Scheduler{
		store:         claims,
		pool:          pool,
		logger:        logger,
		pollInterval:  10 * time.Millisecond,
		batchSize:     2,
		staleTimeout:  time.Minute,
		sweepInterval: time.Hour,
	}
	s.Start(ctx)

	// Let a few poll ticks drain the queue.
	time.Sleep(200 * time.Millisecond)

	cancel()
	pool.Stop()

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.seen) != 5 {
		t.Fatalf("expected 5 distinct deliveries handled, got %d", len(handler.seen))
	}
	for id, count := range handler.seen {
		if count != 1 {
			t.Errorf("delivery %s handled %d times, want exactly once", id, count)
		}
	}
}

func TestScheduler_SweepsStaleClaims(t *testing.T) {
	claims := &fakeClaimStore{released: 2}
	handler := &countingHandler{}
	logger := testLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewPool(1, handler, logger)
	pool.Start(ctx)
	defer pool.Stop()

	s := &Scheduler{
		store:         claims,
		pool:          pool,
		logger:        logger,
		pollInterval:  time.Hour,
		batchSize:     1,
		staleTimeout:  time.Minute,
		sweepInterval: 10 * time.Millisecond,
	}
	s.Start(ctx)

	time.Sleep(100 * time.Millisecond)

	claims.mu.Lock()
	defer claims.mu.Unlock()
	if claims.sweeps == 0 {
		t.Error("sweep loop never ran")
	}
}

func TestPool_StopUnblocksPendingSubmit(t *testing.T) {
	handler := &countingHandler{}
	pool := NewPool(1, handler, testLogger())
	// No Start: nothing consumes, so Submits beyond the buffer block the way
	// a scheduler mid-batch does when shutdown begins.

	for i := 0; i < 2; i++ {
		pool.Submit(store.ClaimedDelivery{ID: "buffered"})
	}

	result := make(chan bool)
	go func() {
		result <- pool.Submit(store.ClaimedDelivery{ID: "blocked"})
	}()

	// Let the goroutine reach the blocking send before stopping.
	time.Sleep(50 * time.Millisecond)
	pool.Stop()

	select {
	case ok := <-result:
		if ok {
			t.Error("a submit cut off by shutdown should report false")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit still blocked after Stop")
	}
}

func TestPool_SubmitAfterStopReturnsFalse(t *testing.T) {
	pool := NewPool(1, &countingHandler{}, testLogger())

	// Fill the buffer so the shutdown signal is the only selectable case.
	for i := 0; i < 2; i++ {
		pool.Submit(store.ClaimedDelivery{ID: "buffered"})
	}
	pool.Stop()

	if pool.Submit(store.ClaimedDelivery{ID: "late"}) {
		t.Error("Submit after Stop should report false")
	}
}

func TestPool_ProcessesSubmittedJobs(t *testing.T) {
	handler := &countingHandler{}
	logger := testLogger()

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(3, handler, logger)
	pool.Start(ctx)

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		pool.Submit(store.ClaimedDelivery{ID: id})
	}

	time.Sleep(100 * time.Millisecond)

	cancel()
	pool.Stop()

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.seen) != 5 {
		t.Errorf("expected 5 jobs processed, got %d", len(handler.seen))
	}
}
