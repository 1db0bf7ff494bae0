package store

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry owns the per-tenant Store handles for one process. A tenant
// database is created on first reference and persists across sessions
// (spec.md §3 Lifecycle); Registry is what makes that first reference
// idempotent under concurrent callers.
type Registry struct {
	dataDir       string
	busyTimeoutMS int

	mu      sync.RWMutex
	stores  map[string]*Store
	opening singleflight.Group
}

// NewRegistry builds a Registry rooted at dataDir.
func NewRegistry(dataDir string, busyTimeoutMS int) *Registry {
	return &Registry{
		dataDir:       dataDir,
		busyTimeoutMS: busyTimeoutMS,
		stores:        make(map[string]*Store),
	}
}

// Get returns the Store for tenantID, opening and bootstrapping it on first
// reference. Concurrent Get calls for the same tenant collapse into one
// open+bootstrap via singleflight, so the store's shared-handle invariant
// (spec.md §5 "The tenant database handle is shared across all queries for
// that tenant") holds from the first query onward.
func (r *Registry) Get(ctx context.Context, tenantID string) (*Store, error) {
	r.mu.RLock()
	if s, ok := r.stores[tenantID]; ok {
		r.mu.RUnlock()
		return s, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.opening.Do(tenantID, func() (any, error) {
		r.mu.RLock()
		if s, ok := r.stores[tenantID]; ok {
			r.mu.RUnlock()
			return s, nil
		}
		r.mu.RUnlock()

		path := r.path(tenantID)
		s, err := Open(ctx, path, r.busyTimeoutMS)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.stores[tenantID] = s
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

func (r *Registry) path(tenantID string) string {
	return r.dataDir + "/" + tenantID + ".db"
}

// Close closes every open tenant handle.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for id, s := range r.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.stores, id)
	}
	return firstErr
}
