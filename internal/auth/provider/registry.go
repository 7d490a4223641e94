package provider

import (
	"fmt"
	"regexp"
	"strings"
)

var namePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Registry holds all configured identity providers and allows lookup by
// provider name. It performs no auth logic itself.
type Registry struct {
	providers map[string]Client
}

// NewRegistry registers the given identity providers by name.
// Provider names must be unique.
func NewRegistry(list ...Client) *Registry {
	m := make(map[string]Client)
	for _, p := range list {
		m[strings.ToLower(p.Name())] = p
	}
	return &Registry{providers: m}
}

// Get returns the identity provider by name or an error if not
// registered. Names are matched case-insensitively and must be
// alphanumeric/underscore tokens.
func (r *Registry) Get(name string) (Client, error) {
	normalized := strings.ToLower(name)
	if !namePattern.MatchString(normalized) {
		return nil, fmt.Errorf("unknown identity provider: %s", name)
	}
	p, ok := r.providers[normalized]
	if !ok {
		return nil, fmt.Errorf("unknown identity provider: %s", name)
	}
	return p, nil
}
