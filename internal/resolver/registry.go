package resolver

import (
	"sync"

	"github.com/graphql-go/graphql"
)

// Registry memoizes generated GraphQL types by name. It is populated once while a
// schema is built and read for the rest of the process lifetime. Output types
// close over the Resolver that created them, so a Registry must not be shared
// between Resolvers.
type Registry struct {
	mu             sync.RWMutex
	outputTypes    map[string]*graphql.Object
	filterInputs   map[string]*graphql.InputObject
	operatorInputs map[string]*graphql.InputObject
	setInputs      map[string]*graphql.InputObject
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		outputTypes:    make(map[string]*graphql.Object),
		filterInputs:   make(map[string]*graphql.InputObject),
		operatorInputs: make(map[string]*graphql.InputObject),
		setInputs:      make(map[string]*graphql.InputObject),
	}
}

// Len returns the number of memoized types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.outputTypes) + len(r.filterInputs) + len(r.operatorInputs) + len(r.setInputs)
}

// lookupOrStore returns the cached value for key, or builds and stores one.
// build runs without the lock held so it may create lazily-resolved types that
// refer back to the registry; if another caller stored key first, its value wins.
func lookupOrStore[T any](mu *sync.RWMutex, cache map[string]T, key string, build func() T) T {
	mu.RLock()
	cached, ok := cache[key]
	mu.RUnlock()
	if ok {
		return cached
	}

	created := build()

	mu.Lock()
	defer mu.Unlock()
	if cached, ok := cache[key]; ok {
		return cached
	}
	cache[key] = created
	return created
}

func lookup[T any](mu *sync.RWMutex, cache map[string]T, key string) (T, bool) {
	mu.RLock()
	defer mu.RUnlock()
	v, ok := cache[key]
	return v, ok
}
