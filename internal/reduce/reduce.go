package reduce

import (
	"context"
	"sync"
)

// Reducer combines per-worker partial sums into one global value that every
// caller observes. Sum blocks until all workers of the group have
// contributed, so each worker must call it exactly once per round and in
// the same order.
type Reducer interface {
	Sum(ctx context.Context, v float64) (float64, error)
}

// Noop is the single-worker reducer: the local sum already is the global one.
type Noop struct{}

// Sum returns v unchanged.
func (Noop) Sum(_ context.Context, v float64) (float64, error) { return v, nil }

// Group is a rendezvous reducer for n workers sharing one process. The
// cross-process transport stays outside this package; Group gives the loop
// the same blocking-collective semantics without it.
type Group struct {
	n   int
	mu  sync.Mutex
	cur *round
}

type round struct {
	sum    float64
	joined int
	result float64
	done   chan struct{}
}

// NewGroup creates a reducer expecting n participants per round.
func NewGroup(n int) *Group {
	if n <= 0 {
		n = 1
	}
	return &Group{n: n}
}

// Sum contributes v to the current round and blocks until all n workers
// have contributed. Every caller receives the identical total.
func (g *Group) Sum(ctx context.Context, v float64) (float64, error) {
	g.mu.Lock()
	if g.cur == nil {
		g.cur = &round{done: make(chan struct{})}
	}
	r := g.cur
	r.sum += v
	r.joined++
	if r.joined == g.n {
		r.result = r.sum
		g.cur = nil
		close(r.done)
	}
	g.mu.Unlock()

	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
