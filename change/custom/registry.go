package custom

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrNotRegistered is returned when no factory is registered under a class name.
var ErrNotRegistered = errors.New("custom change not registered")

// Factory creates a new plugin instance.
type Factory func() CustomChange

// Loader resolves class names to plugin instances.
type Loader interface {
	Load(className string) (CustomChange, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(className string) (CustomChange, error)

func (f LoaderFunc) Load(className string) (CustomChange, error) {
	return f(className)
}

// Registry maps class names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// DefaultRegistry is consulted when a wrapper's own loader cannot resolve a class.
var DefaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, factory Factory) {
	if name == "" || factory == nil {
		panic("custom: Register requires a name and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Load creates a new instance of the named class.
func (r *Registry) Load(className string) (CustomChange, error) {
	r.mu.RLock()
	factory, ok := r.factories[className]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, className)
	}
	return construct(className, factory)
}

func construct(className string, factory Factory) (cc CustomChange, err error) {
	defer func() {
		if r := recover(); r != nil {
			cc, err = nil, fmt.Errorf("factory for %s panicked: %v", className, r)
		}
	}()
	cc = factory()
	if cc == nil {
		return nil, fmt.Errorf("factory for %s returned nil", className)
	}
	return cc, nil
}

// Register adds a factory to DefaultRegistry.
func Register(name string, factory Factory) {
	DefaultRegistry.Register(name, factory)
}
