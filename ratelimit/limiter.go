// Package ratelimit implements the per-client admission gate: a strict
// sliding-window counter keyed by client identifier (the network address).
// Each client gets a rolling record of admission instants; a request is
// admitted only while fewer than the configured limit of instants fall inside
// the trailing window. There is no burst credit and no smoothing; a denial
// records nothing, so denied traffic never extends a client's window.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is the sliding-window admission gate. All state lives in process
// memory under a single mutex: the check and the recording of an admission
// form one critical section, so two concurrent requests can never both
// observe "under limit" when only one slot remains.
type Limiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration

	// now is the clock; swapped out in tests to drive the window.
	now func() time.Time
}

// New creates a Limiter admitting at most limit requests per client within
// the trailing window.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow decides admission for one request from clientID. It prunes the
// client's record of instants older than the trailing window, denies without
// recording when the remaining count has reached the limit, and otherwise
// records the current instant and admits.
func (l *Limiter) Allow(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	times := l.hits[clientID]
	// Retained instants are appended in order, so the survivors are a suffix.
	start := 0
	for start < len(times) && !times[start].After(cutoff) {
		start++
	}
	times = times[start:]

	if len(times) >= l.limit {
		l.hits[clientID] = times
		return false
	}

	l.hits[clientID] = append(times, now)
	return true
}

// StartSweeper launches a background goroutine that periodically drops
// clients whose entire record has aged out of the window, so idle clients do
// not accumulate in memory for the life of the process. It stops when
// stopChan is closed.
func (l *Limiter) StartSweeper(interval time.Duration, stopChan <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.sweep()
			case <-stopChan:
				return
			}
		}
	}()
}

// sweep removes map entries with no instant inside the trailing window.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for clientID, times := range l.hits {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(l.hits, clientID)
		}
	}
}

// trackedClients reports how many client records are currently retained.
// Exported only within the package for the sweeper tests.
func (l *Limiter) trackedClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}
