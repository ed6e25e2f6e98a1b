package operator

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Operator is one executable unit wrapping an external analysis capability.
// Start is called for an operation that has not run yet; Poll is called on
// every later invocation while the operation reports Executing.
type Operator interface {
	Start(ctx context.Context, state *State) (OutputObject, error)
	Poll(ctx context.Context, state *State) (OutputObject, error)
}

// Func adapts a synchronous function into an Operator. Poll re-runs the
// function, which should not happen once it reports a terminal status.
type Func func(ctx context.Context, state *State) (OutputObject, error)

// Start invokes f.
func (f Func) Start(ctx context.Context, state *State) (OutputObject, error) { return f(ctx, state) }

// Poll invokes f.
func (f Func) Poll(ctx context.Context, state *State) (OutputObject, error) { return f(ctx, state) }

// Registry resolves operator implementations by operator name.
type Registry struct {
	mu        sync.RWMutex
	operators map[string]Operator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{operators: make(map[string]Operator)}
}

// Register binds name to op. Names are unique.
func (r *Registry) Register(name string, op Operator) error {
	if name == "" || op == nil {
		return fmt.Errorf("register operator: name and implementation are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.operators[name]; exists {
		return fmt.Errorf("register operator: %q already registered", name)
	}
	r.operators[name] = op
	return nil
}

// Lookup returns the operator registered under name.
func (r *Registry) Lookup(name string) (Operator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.operators[name]
	return op, ok
}

// Names lists registered operator names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.operators))
	for name := range r.operators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
