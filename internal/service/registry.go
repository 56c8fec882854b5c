package service

import (
	"reflect"
	"sync"
)

// Registry maps a concrete service type to its single instance. It is owned by
// the composition root and threaded into service accessors.
type Registry struct {
	mu        sync.Mutex
	instances map[reflect.Type]interface{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{instances: make(map[reflect.Type]interface{})}
}

// Instance returns the registered *T, calling build on first access only.
// build runs without the lock held so it may resolve other services; if two
// callers race, the first stored instance wins and both receive it.
func Instance[T any](reg *Registry, build func() *T) *T {
	key := reflect.TypeOf((*T)(nil)).Elem()

	reg.mu.Lock()
	if existing, ok := reg.instances[key]; ok {
		reg.mu.Unlock()
		return existing.(*T)
	}
	reg.mu.Unlock()

	created := build()

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if existing, ok := reg.instances[key]; ok {
		return existing.(*T)
	}
	reg.instances[key] = created
	return created
}

// Len reports how many services have been instantiated.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}
