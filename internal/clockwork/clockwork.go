// Package clockwork provides the time and randomness ports shared by the
// whole service. Nothing outside this package reads the system clock or the
// system RNG directly, which keeps every component deterministic under test.
package clockwork

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"
)

// Clock yields the current wall-clock instant in UTC.
type Clock interface {
	Now() time.Time
}

// RNG yields cryptographically strong random bytes.
type RNG interface {
	Bytes(n int) ([]byte, error)
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// RealRNG reads crypto/rand.
type RealRNG struct{}

func (RealRNG) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// FakeClock is a manually advanced clock for tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a FakeClock pinned to the given instant.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now.UTC()}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set pins the clock to a specific instant.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}
