package memory

import "errors"

var ErrAlreadyConnected = errors.New("connection is already registered")

// Registry tracks live connections.
// Registry is not safe for concurrent use, callers serialize access.
type Registry struct {
	live map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		live: make(map[string]struct{}),
	}
}

func (r *Registry) Add(connID string) error {
	if _, ok := r.live[connID]; ok {
		return ErrAlreadyConnected
	}
	r.live[connID] = struct{}{}
	return nil
}

// Remove reports whether the connection was registered.
func (r *Registry) Remove(connID string) bool {
	if _, ok := r.live[connID]; !ok {
		return false
	}
	delete(r.live, connID)
	return true
}

func (r *Registry) Has(connID string) bool {
	_, ok := r.live[connID]
	return ok
}

func (r *Registry) Len() int {
	return len(r.live)
}
