package engine

import (
	"fmt"
)

// OperationsRegistry holds the operation types known to the planner, in
// registration order.
type OperationsRegistry struct {
	types     []OperationType
	providers map[OperationKind]string
}

// NewOperationsRegistry registers the types of every provider. Two types
// with the same kind are rejected.
func NewOperationsRegistry(providers ...OperationsProvider) (*OperationsRegistry, error) {
	r := &OperationsRegistry{providers: make(map[OperationKind]string)}
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustOperationsRegistry is like NewOperationsRegistry but panics on error.
func MustOperationsRegistry(providers ...OperationsProvider) *OperationsRegistry {
	r, err := NewOperationsRegistry(providers...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds the types of p.
func (r *OperationsRegistry) Register(p OperationsProvider) error {
	for _, ot := range p.Operations() {
		if ot.Kind == "" {
			return NewPermanentError(fmt.Sprintf("provider %s registers an operation without kind", p.Name()), nil).
				WithCode(ErrCodeValidation)
		}
		if err := ot.Scope.Validate(); err != nil {
			return NewPermanentError(fmt.Sprintf("operation %s", ot.Kind), err).WithCode(ErrCodeValidation)
		}
		if owner, exists := r.providers[ot.Kind]; exists {
			return NewPermanentError(
				fmt.Sprintf("operation %s registered by both %s and %s", ot.Kind, owner, p.Name()), nil,
			).WithCode(ErrCodeAlreadyExists)
		}
		r.providers[ot.Kind] = p.Name()
		r.types = append(r.types, ot)
	}
	return nil
}

// Types returns the registered types whose scope is in scopes.
func (r *OperationsRegistry) Types(scopes ScopeSet) []OperationType {
	if r == nil {
		return nil
	}
	out := make([]OperationType, 0, len(r.types))
	for _, ot := range r.types {
		if scopes.Has(ot.Scope) {
			out = append(out, ot)
		}
	}
	return out
}

// Kinds returns every registered kind in registration order.
func (r *OperationsRegistry) Kinds() []OperationKind {
	kinds := make([]OperationKind, len(r.types))
	for i, ot := range r.types {
		kinds[i] = ot.Kind
	}
	return kinds
}

// Provider returns the name of the provider that registered kind.
func (r *OperationsRegistry) Provider(kind OperationKind) (string, bool) {
	name, ok := r.providers[kind]
	return name, ok
}
