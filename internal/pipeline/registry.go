package pipeline

import (
	"errors"
	"fmt"
	"sync"
)

// Factory constructs a stage from configuration.
type Factory struct {
	// Name is the name pipelines refer to the stage by.
	Name string

	// Description is shown by `textpipe stages`.
	Description string

	// SignatureKeys lists properties outside "<Name>." that affect
	// construction. They become part of the cache signature.
	SignatureKeys []string

	// New builds the stage. It may load resources and may fail.
	New func(props Properties) (Stage, error)
}

// Registry maps stage names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string // Maintains registration order
}

// NewRegistry creates an empty stage registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		order:     make([]string, 0),
	}
}

// Register adds a factory to the registry.
// Returns an error if a factory with the same name is already registered.
func (r *Registry) Register(f Factory) error {
	if f.Name == "" {
		return errors.New("stage factory has empty name")
	}
	if f.New == nil {
		return fmt.Errorf("stage factory %q has nil constructor", f.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[f.Name]; exists {
		return fmt.Errorf("%w: %s", ErrStageAlreadyRegistered, f.Name)
	}

	r.factories[f.Name] = f
	r.order = append(r.order, f.Name)
	return nil
}

// Get returns a factory by name.
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[name]
	return f, ok
}

// Names returns all stage names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// List returns all factories in registration order.
func (r *Registry) List() []Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factories := make([]Factory, 0, len(r.order))
	for _, name := range r.order {
		factories = append(factories, r.factories[name])
	}
	return factories
}

// Signature returns the configuration signature for the named stage.
func (r *Registry) Signature(name string, props Properties) (string, error) {
	f, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnregisteredStage, name)
	}
	return signature(name, f.SignatureKeys, props), nil
}
