// SPDX-License-Identifier: MPL-2.0

package interpreter

import (
	"context"
	"sync"
)

// Cell caches one successful Locate result. Failed lookups are not cached,
// so the next Get retries the full chain.
type Cell struct {
	mu      sync.Mutex
	locator *Locator
	loc     *Location
}

var (
	sharedMu sync.Mutex
	shared   = map[string]*Cell{}
)

// NewCell wraps locator in a cache cell.
func NewCell(locator *Locator) *Cell {
	return &Cell{locator: locator}
}

// Get returns the cached location, resolving it first when the cell is empty.
// Concurrent callers block on the same resolution.
func (c *Cell) Get(ctx context.Context) (Location, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loc != nil {
		return *c.loc, nil
	}
	loc, err := c.locator.Locate(ctx)
	if err != nil {
		return Location{}, err
	}
	c.loc = &loc
	return loc, nil
}

// Reset empties the cell.
func (c *Cell) Reset() {
	c.mu.Lock()
	c.loc = nil
	c.mu.Unlock()
}

// Shared returns the process-wide cell for explicitPath ("" runs the full
// lookup chain). opts apply only when the cell is created; later callers with
// the same path get the existing cell.
func Shared(explicitPath string, opts ...Option) *Cell {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if c, ok := shared[explicitPath]; ok {
		return c
	}
	c := NewCell(New(append([]Option{WithExplicitPath(explicitPath)}, opts...)...))
	shared[explicitPath] = c
	return c
}

// Default resolves through the process-wide cell for automatic lookup.
func Default(ctx context.Context) (Location, error) {
	return Shared("").Get(ctx)
}

// Reset empties every process-wide cell.
func Reset() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	for _, c := range shared {
		c.Reset()
	}
}
