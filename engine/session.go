package engine

import (
	"errors"
	"fmt"
	"sync"
)

// ErrSessionActive is returned when a sync is requested for an account
// that already has one running. Overlapping sessions would race on the
// same baseline and tail pointers, so they are refused, never queued.
var ErrSessionActive = errors.New("sync session already active")

// Registry serializes sync sessions per account. Sessions for different
// accounts are independent and may run concurrently.
type Registry struct {
	mu     sync.Mutex
	active map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]bool)}
}

// DefaultRegistry is the process-wide registry managers fall back to, so
// the one-session-per-account invariant holds even across independently
// constructed managers.
var DefaultRegistry = NewRegistry()

// Acquire claims the session slot for account. It returns a release
// function that must be called when the session ends, success or not.
func (r *Registry) Acquire(account string) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active[account] {
		return nil, fmt.Errorf("%w: %s", ErrSessionActive, account)
	}
	r.active[account] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.active, account)
		})
	}, nil
}
