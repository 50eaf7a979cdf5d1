package coup

import (
	"context"
	"sort"
	"sync"
)

// Registry keeps one Engine per game id. Games share the ledger, each under
// its own key prefix, and never share any record.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]*Engine
	opts    Options
}

// NewRegistry creates a registry that opens games with opts.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		engines: make(map[string]*Engine),
		opts:    opts,
	}
}

// Open returns the engine for id, loading it from the ledger on first use.
func (r *Registry) Open(ctx context.Context, id string) (*Engine, error) {
	if e, ok := r.Get(id); ok {
		return e, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[id]; ok {
		return e, nil
	}
	opts := r.opts
	if opts.Ledger != nil {
		opts.Ledger = scoped{inner: opts.Ledger, prefix: "game/" + id + "/"}
	}
	e, err := Open(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	r.engines[id] = e
	return e, nil
}

// Get returns an already opened engine.
func (r *Registry) Get(id string) (*Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[id]
	return e, ok
}

// IDs lists the opened games in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.engines))
	for id := range r.engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type scoped struct {
	inner  Ledger
	prefix string
}

func (s scoped) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s scoped) Set(ctx context.Context, key string, value []byte) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}
