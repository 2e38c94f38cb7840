package provider

import "fmt"

// Registry holds the configured OIDC providers keyed by name. It does
// lookup only; auth decisions stay with the flow orchestrator.
type Registry struct {
	providers map[string]OAuthProvider
}

// NewRegistry registers the given providers. A later provider with the
// same name replaces an earlier one.
func NewRegistry(list ...OAuthProvider) *Registry {
	m := make(map[string]OAuthProvider, len(list))
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider by name.
func (r *Registry) Get(name string) (OAuthProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown oauth provider: %s", name)
	}
	return p, nil
}

// Names lists the registered provider names, for startup logging.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
