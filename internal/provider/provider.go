// Package provider holds the registry of list-service backends and the
// HTTP plumbing the REST-based clients share. Concrete clients live in
// subpackages, one per service.
package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zoro-md/zoro/internal/domain"
)

// Registry maps sources to their provider clients. Trending feeds are
// registered separately because some come from metadata-only services
// that back no list operations.
type Registry struct {
	mu       sync.RWMutex
	clients  map[domain.Source]domain.Provider
	trending map[domain.Source]domain.TrendingRepository
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{
		clients:  make(map[domain.Source]domain.Provider),
		trending: make(map[domain.Source]domain.TrendingRepository),
	}
}

// Register adds a provider client, replacing any previous registration
func (r *Registry) Register(p domain.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[p.Source()] = p
	if t, ok := p.(domain.TrendingRepository); ok {
		r.trending[p.Source()] = t
	}
}

// RegisterTrending adds a trending-only feed for a source
func (r *Registry) RegisterTrending(source domain.Source, t domain.TrendingRepository) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trending[source] = t
}

// For returns the provider client for source
func (r *Registry) For(source domain.Source) (domain.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.clients[source]
	if !ok {
		return nil, &domain.ConfigError{Field: "source", Reason: fmt.Sprintf("no provider registered for %q", source)}
	}
	return p, nil
}

// TrendingFor returns the trending feed for source
func (r *Registry) TrendingFor(source domain.Source) (domain.TrendingRepository, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trending[source]
	if !ok {
		return nil, &domain.ConfigError{Field: "source", Reason: fmt.Sprintf("no trending feed registered for %q", source)}
	}
	return t, nil
}

// Sources lists registered providers in stable order
func (r *Registry) Sources() []domain.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Source, 0, len(r.clients))
	for s := range r.clients {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
