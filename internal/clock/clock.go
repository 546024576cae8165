// Package clock abstracts the time source so audit records and
// interactive views can be tested against a pinned instant.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// RealClock reads the system clock.
type RealClock struct{}

// Now returns the current system time.
func (c *RealClock) Now() time.Time { return time.Now() }

// Since returns the time elapsed since t.
func (c *RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// MockClock is a Clock pinned to a settable instant. It only moves when a
// test moves it.
type MockClock struct {
	mu      sync.RWMutex
	current time.Time
}

// NewMockClock returns a mock clock pinned to t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{current: t}
}

// Now returns the pinned time.
func (c *MockClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Since returns the duration from t to the pinned time.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Set pins the clock to t.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// Advance moves the pinned time forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Now returns the current system time.
func Now() time.Time { return time.Now() }

// Since returns the time elapsed since t.
func Since(t time.Time) time.Duration { return time.Since(t) }
