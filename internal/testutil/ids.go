package testutil

import (
	"fmt"
	"sync"
)

// CountingIDGenerator generates prefix-000001, prefix-000002, ... in order.
//
// This enables deterministic document IDs for fixtures that omit _id, so
// golden snapshots are byte-identical across runs.
//
// Implements docdb.IDGenerator.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type CountingIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewCountingIDGenerator creates a generator whose first ID is prefix-000001.
// If prefix is empty, "doc" is used.
func NewCountingIDGenerator(prefix string) *CountingIDGenerator {
	if prefix == "" {
		prefix = "doc"
	}
	return &CountingIDGenerator{prefix: prefix}
}

// Generate returns the next ID.
func (g *CountingIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%06d", g.prefix, g.n)
}

// Reset restarts the sequence. After Reset(), the next ID is prefix-000001.
func (g *CountingIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
