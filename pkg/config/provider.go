package config

import (
	"fmt"
	"sort"
	"strings"
)

// OptionFactory describes an option key usable at a tree position.
type OptionFactory struct {
	// Key is the configuration key, e.g. "git".
	Key string

	// New creates an unset option under parent (nil at the top level).
	New func(parent Option) Option

	// Resolve optionally rewrites the enclosing dict once before the
	// children are built. It must return a new Dict and leave its input alone.
	Resolve func(d Dict) Dict
}

// OptionsProvider contributes option factories to a registry.
type OptionsProvider interface {
	Name() string
	Options() []OptionFactory
}

// StaticProvider is an OptionsProvider backed by a literal table.
type StaticProvider struct {
	ProviderName string
	Factories    []OptionFactory
}

func (p StaticProvider) Name() string             { return p.ProviderName }
func (p StaticProvider) Options() []OptionFactory { return p.Factories }

// OptionsRegistry merges option providers for one tree position.
type OptionsRegistry struct {
	order     []string
	factories map[string]OptionFactory
	owners    map[string]string
}

// NewOptionsRegistry builds a registry. Two providers claiming the same key
// is an error.
func NewOptionsRegistry(providers ...OptionsProvider) (*OptionsRegistry, error) {
	r := &OptionsRegistry{
		factories: make(map[string]OptionFactory),
		owners:    make(map[string]string),
	}
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustOptionsRegistry is NewOptionsRegistry that panics on conflicts. Used
// for the package-level tables assembled at init.
func MustOptionsRegistry(providers ...OptionsProvider) *OptionsRegistry {
	r, err := NewOptionsRegistry(providers...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds every factory of p.
func (r *OptionsRegistry) Register(p OptionsProvider) error {
	for _, f := range p.Options() {
		if f.Key == "" || f.New == nil {
			return fmt.Errorf("provider %s: option factory needs a key and a constructor", p.Name())
		}
		if owner, exists := r.owners[f.Key]; exists {
			return fmt.Errorf("option %q registered by both %s and %s", f.Key, owner, p.Name())
		}
		r.order = append(r.order, f.Key)
		r.factories[f.Key] = f
		r.owners[f.Key] = p.Name()
	}
	return nil
}

// Factory looks up the factory for key.
func (r *OptionsRegistry) Factory(key string) (OptionFactory, bool) {
	f, ok := r.factories[key]
	return f, ok
}

// Keys returns the registered keys in registration order.
func (r *OptionsRegistry) Keys() []string {
	cp := make([]string, len(r.order))
	copy(cp, r.order)
	return cp
}

// ResolveConfig runs every Resolve hook in registration order.
func (r *OptionsRegistry) ResolveConfig(d Dict) Dict {
	for _, key := range r.order {
		if f := r.factories[key]; f.Resolve != nil {
			d = f.Resolve(d)
		}
	}
	return d
}

// BuildChildren creates one option per key of d under parent. Keys for which
// skip returns true are left to the caller. Unknown keys are rejected.
func (r *OptionsRegistry) BuildChildren(parent Option, d Dict, skip func(key string) bool) ([]Option, error) {
	children := make([]Option, 0, d.Len())
	seen := make(map[string]struct{}, d.Len())
	for _, key := range d.Keys() {
		if skip != nil && skip(key) {
			continue
		}
		if _, dup := seen[key]; dup {
			return nil, &ValidationError{Path: childPath(parent, key), Message: "duplicate option"}
		}
		seen[key] = struct{}{}

		f, ok := r.factories[key]
		if !ok {
			return nil, &ValidationError{
				Path:    childPath(parent, key),
				Message: fmt.Sprintf("unknown option (allowed: %s)", strings.Join(r.sortedKeys(), ", ")),
			}
		}
		child := f.New(parent)
		v, _ := d.Get(key)
		if err := child.SetValue(v); err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func (r *OptionsRegistry) sortedKeys() []string {
	keys := r.Keys()
	sort.Strings(keys)
	return keys
}

func childPath(parent Option, key string) string {
	if parent == nil {
		return key
	}
	return parent.Path() + "." + key
}
