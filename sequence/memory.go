package sequence

import (
	"context"
	"sync"
)

// MemoryGenerator is a process-local generator. Values are lost on restart.
// The zero value is ready to use.
type MemoryGenerator struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemoryGenerator returns an empty generator.
func NewMemoryGenerator() *MemoryGenerator {
	return &MemoryGenerator{counters: make(map[string]int64)}
}

func (g *MemoryGenerator) Next(ctx context.Context, name string) (int64, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.counters == nil {
		g.counters = make(map[string]int64)
	}
	g.counters[name]++
	return g.counters[name], nil
}

func (g *MemoryGenerator) Current(_ context.Context, name string) (int64, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counters[name], nil
}
