package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/rocketreaders/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by [Registry.CreateSTT] for a name
// nothing was registered under.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// STTFactory builds an STT provider from its config entry.
type STTFactory func(ProviderEntry) (stt.Provider, error)

// Registry resolves provider names from the config to STT constructors.
// The CLI registers the built-in backends; tests register mocks. Safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]STTFactory
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{factories: map[string]STTFactory{}}
}

// RegisterSTT binds name to factory, replacing an earlier binding. It
// panics on an empty name or a nil factory, both programming errors.
func (r *Registry) RegisterSTT(name string, factory STTFactory) {
	if name == "" || factory == nil {
		panic("config: RegisterSTT needs a name and a factory")
	}
	r.mu.Lock()
	r.factories[name] = factory
	r.mu.Unlock()
}

// HasSTT reports whether name is registered.
func (r *Registry) HasSTT(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// STTNames returns the registered names, sorted.
func (r *Registry) STTNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// CreateSTT builds the provider for entry.Name. A factory that returns
// neither a provider nor an error is reported as an error too.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt %q (known: %v)", ErrProviderNotRegistered, entry.Name, r.STTNames())
	}
	p, err := factory(entry)
	if err != nil {
		return nil, fmt.Errorf("config: create stt %q: %w", entry.Name, err)
	}
	if p == nil {
		return nil, fmt.Errorf("config: create stt %q: factory returned no provider", entry.Name)
	}
	return p, nil
}
