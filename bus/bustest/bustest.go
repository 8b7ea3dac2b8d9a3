// Package bustest provides deterministic test helpers for the bus and
// quantum packages: a controllable Gate for de-duplication/concurrency
// tests, modeled on the teacher's pulse/async/test_helpers.go pattern of
// small, purpose-built test doubles instead of a generic mocking
// framework.
package bustest

import "sync"

// Gate lets a test hold a goroutine until the test releases it, used to
// force concurrent callers to race against a single in-flight loader
// (spec §8.2 scenario 4) or to simulate a stalled loader during dispose
// (scenario 6).
type Gate struct {
	mu     sync.Mutex
	ch     chan struct{}
	opened bool
}

// NewGate creates a closed gate.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Wait blocks until Open is called.
func (g *Gate) Wait() {
	<-g.ch
}

// Open releases every current and future Wait call. Idempotent.
func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.opened {
		g.opened = true
		close(g.ch)
	}
}

// CallCounter counts invocations across goroutines, used to assert a
// loader was invoked exactly once under concurrent callers.
type CallCounter struct {
	mu    sync.Mutex
	count int
}

// Inc increments and returns the new count.
func (c *CallCounter) Inc() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return c.count
}

// Count returns the current count.
func (c *CallCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
