package effectchain

import (
	"errors"
	"fmt"
	"slices"
)

// Factory builds one Runtime instance for a node.
type Factory func(ctx Context) (Runtime, error)

// Registry maps node type names to their factories.
type Registry struct {
	factories map[string]Factory
}

// Registration errors.
var (
	ErrEmptyType       = errors.New("effectchain: empty effect type")
	ErrNilFactory      = errors.New("effectchain: nil factory")
	ErrDuplicateEffect = errors.New("effectchain: duplicate effect type")
)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for the given type.
func (r *Registry) Register(effectType string, factory Factory) error {
	if effectType == "" {
		return ErrEmptyType
	}

	if factory == nil {
		return fmt.Errorf("%w: %s", ErrNilFactory, effectType)
	}

	if _, exists := r.factories[effectType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEffect, effectType)
	}

	r.factories[effectType] = factory

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(effectType string, factory Factory) {
	err := r.Register(effectType, factory)
	if err != nil {
		panic(err.Error())
	}
}

// Lookup returns the factory for the given type, or nil.
func (r *Registry) Lookup(effectType string) Factory {
	return r.factories[effectType]
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}

	slices.Sort(types)

	return types
}
