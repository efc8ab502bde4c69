package registry

import (
	"errors"
	"fmt"

	"github.com/lumenchat/lumenchat/internal/provider"
)

// ErrNotFound is wrapped by Get when the requested provider is not registered.
var ErrNotFound = errors.New("provider not available")

// Registry holds the set of provider adapters keyed by name. It is built once
// at startup and immutable afterwards, so concurrent reads need no locking.
type Registry struct {
	byName map[string]provider.Provider
	names  []string
}

// New builds a registry from an ordered list of adapters. A nil adapter or a
// duplicate name is a programming error and rejected.
func New(providers ...provider.Provider) (*Registry, error) {
	r := &Registry{byName: make(map[string]provider.Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			return nil, errors.New("registry: nil provider")
		}
		name := p.Name()
		if name == "" {
			return nil, errors.New("registry: provider with empty name")
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("registry: duplicate provider %q", name)
		}
		r.byName[name] = p
		r.names = append(r.names, name)
	}
	return r, nil
}

// Get returns the adapter registered under name. Lookup is exact-match and
// case-sensitive.
func (r *Registry) Get(name string) (provider.Provider, error) {
	p, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", name, ErrNotFound)
	}
	return p, nil
}

// Names returns the registered provider names in construction order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
