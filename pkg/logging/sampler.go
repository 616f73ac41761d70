// Package logging holds helpers that keep slog output readable under repeated failures.
package logging

import (
	"sync"
)

// ErrorSampler rate-limits logging of a repeating failure.
// For each key it lets through the first occurrence and then every Nth one.
type ErrorSampler struct {
	mu       sync.Mutex
	counts   map[string]int
	interval int
}

// NewErrorSampler creates a sampler logging every interval-th occurrence.
// Intervals below 1 fall back to 10.
func NewErrorSampler(interval int) *ErrorSampler {
	if interval < 1 {
		interval = 10
	}
	return &ErrorSampler{
		counts:   make(map[string]int),
		interval: interval,
	}
}

// ShouldLog records one occurrence of key and reports whether it should be logged.
func (s *ErrorSampler) ShouldLog(key string) bool {
	ok, _ := s.Sample(key)
	return ok
}

// Sample records one occurrence of key and returns whether to log it together
// with the occurrence count so far.
func (s *ErrorSampler) Sample(key string) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[key]++
	n := s.counts[key]
	return n == 1 || n%s.interval == 0, n
}

// GetCount returns the occurrences recorded for key since the last reset.
func (s *ErrorSampler) GetCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key]
}

// Reset forgets key, typically after the failing operation succeeded again.
func (s *ErrorSampler) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, key)
}

// ResetAll forgets every key.
func (s *ErrorSampler) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.counts)
}
