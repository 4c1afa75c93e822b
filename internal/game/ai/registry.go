package ai

import (
	"fmt"
	"sync"
)

// Registry indexes brain profiles by ID. It is safe for concurrent use so
// that profiles can be reloaded while brains are being spawned.
//
// Invariant: each profile ID is registered at most once.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewRegistry returns a Registry holding only DefaultProfile.
func NewRegistry() *Registry {
	return &Registry{profiles: map[string]*Profile{DefaultProfileID: DefaultProfile()}}
}

// Register stores p.
//
// Precondition: p must not be nil.
// Postcondition: returns error on profile ID collision or validation failure.
func (r *Registry) Register(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.profiles[p.ID]; exists {
		return fmt.Errorf("ai.Registry: profile %q already registered", p.ID)
	}
	r.profiles[p.ID] = p
	return nil
}

// Replace stores p, overwriting any profile with the same ID.
// Brains built earlier keep the actions they were built with.
func (r *Registry) Replace(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID] = p
	return nil
}

// ProfileFor returns the profile for id, or false if not registered.
// An empty id resolves to DefaultProfileID.
func (r *Registry) ProfileFor(id string) (*Profile, bool) {
	if id == "" {
		id = DefaultProfileID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	return p, ok
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
