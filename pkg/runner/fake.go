package runner

import (
	"context"
	"sync"
)

// Fake records commands instead of running them. Handler decides the
// outcome of each call; without one every command succeeds.
type Fake struct {
	mu      sync.Mutex
	Calls   []Command
	Handler func(Command) (Result, error)
}

// Run implements Runner.
func (f *Fake) Run(_ context.Context, c Command) (Result, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, c)
	h := f.Handler
	f.mu.Unlock()
	if h == nil {
		return Result{}, nil
	}
	return h(c)
}

// Count returns how many commands were run.
func (f *Fake) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
