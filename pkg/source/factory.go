package source

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/glorpus-work/repokit/pkg/errors"
)

// Factory builds sources of one type and runs the type's lifecycle hooks.
// Add, Update and Remove may mutate details in place and report whether the
// change needs to be persisted.
type Factory interface {
	Type() string
	Create(ctx context.Context, details Details) (Source, error)
	Add(ctx context.Context, details *Details) (bool, error)
	Update(ctx context.Context, details *Details) (bool, error)
	Remove(ctx context.Context, details *Details) (bool, error)
}

// CheckType returns ErrInvalidSourceType unless details is of type want.
func CheckType(want string, details Details) error {
	if !strings.EqualFold(details.Type, want) {
		return errors.ErrInvalidSourceTypeWithName(details.Type)
	}
	return nil
}

// FactoryRegistry maps type strings to factories. Lookups are case-insensitive
// and an empty type resolves to DefaultType.
type FactoryRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewFactoryRegistry returns a registry holding factories.
func NewFactoryRegistry(factories ...Factory) *FactoryRegistry {
	r := &FactoryRegistry{factories: make(map[string]Factory)}
	for _, f := range factories {
		r.Register(f)
	}
	return r
}

// Register adds or replaces the factory for f.Type().
func (r *FactoryRegistry) Register(f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(f.Type())] = f
}

// Get returns the factory for sourceType.
func (r *FactoryRegistry) Get(sourceType string) (Factory, error) {
	if sourceType == "" {
		sourceType = DefaultType
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[strings.ToLower(sourceType)]
	if !ok {
		return nil, errors.ErrInvalidSourceTypeWithName(sourceType)
	}
	return f, nil
}

// Types returns the registered type strings in sorted order.
func (r *FactoryRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for _, f := range r.factories {
		types = append(types, f.Type())
	}
	sort.Strings(types)
	return types
}
