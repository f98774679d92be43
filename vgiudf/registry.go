// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgiudf

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Locator resolves a collection identifier to a loaded Collection. How a
// collection is physically located (in-process registry, shared artifact,
// generated bindings) is the locator's concern; the dispatcher requires
// only that resolution be deterministic: repeated lookups of the same
// identifier return collections with identical behavior. Locate errors
// surface to callers as PluginNotFound failures.
//
// Implementations must be safe for concurrent use.
type Locator interface {
	Locate(ctx context.Context, collectionID string) (*Collection, error)
}

// Registry is an explicit, startup-populated Locator: a plain mapping from
// collection identifier to Collection.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]*Collection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		collections: make(map[string]*Collection),
	}
}

// RegisterCollection adds a collection under the given identifier. Like
// function registration, registering the same identifier twice is a
// programming error and panics.
func (r *Registry) RegisterCollection(id string, c *Collection) {
	if id == "" {
		panic("vgiudf: collection identifier must not be empty")
	}
	if c == nil {
		panic(fmt.Sprintf("vgiudf: registering %q: collection must not be nil", id))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.collections[id]; ok {
		panic(fmt.Sprintf("vgiudf: collection %q already registered", id))
	}
	r.collections[id] = c
}

// Locate implements Locator.
func (r *Registry) Locate(_ context.Context, collectionID string) (*Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[collectionID]
	if !ok {
		return nil, fmt.Errorf("collection %q is not registered", collectionID)
	}
	return c, nil
}

// Collections returns the registered identifiers, sorted.
func (r *Registry) Collections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.collections))
	for id := range r.collections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
