package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"graphrag/pkg/common"
	"graphrag/pkg/logger"
)

// registryEntry tracks one tenant's pipeline and its construction state.
// ready is closed once loadOrBuild finished; err holds the outcome. cancel
// aborts an in-flight build when the tenant is evicted.
type registryEntry struct {
	pipeline *Pipeline
	ready    chan struct{}
	err      error
	cancel   context.CancelFunc
}

// Registry is the process-wide tenant cache. It guarantees at most one
// pipeline is constructed per tenant id: concurrent first requests for the
// same id all observe the single in-flight build.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
	cfg     Config
}

// NewRegistry returns an empty registry creating pipelines with cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		entries: map[string]*registryEntry{},
		cfg:     cfg,
	}
}

// GetOrCreate returns the tenant's pipeline, constructing it on first access.
// The construction loads a persisted snapshot when one exists, otherwise
// builds from seedText. The second result reports whether this call's
// seedText was consumed by the construction: it is false for callers who
// found a live pipeline, who joined another caller's build, or whose
// pipeline was restored from snapshot. Those callers must apply their text
// as an incremental update themselves.
//
// A failed construction is removed from the registry so a later request can
// retry with fresh input.
func (r *Registry) GetOrCreate(ctx context.Context, graphID, seedText string) (*Pipeline, bool, error) {
	r.mu.Lock()
	if entry, ok := r.entries[graphID]; ok {
		r.mu.Unlock()
		p, err := r.await(ctx, entry)
		return p, false, err
	}

	// First access wins construction; everyone else joins via ready.
	// The build runs under its own context so evicting the tenant, not the
	// first caller disconnecting, is what cancels it.
	buildCtx, cancel := context.WithCancel(context.Background())
	entry := &registryEntry{
		pipeline: newPipeline(graphID, r.cfg),
		ready:    make(chan struct{}),
		cancel:   cancel,
	}
	r.entries[graphID] = entry
	r.mu.Unlock()

	built, err := entry.pipeline.loadOrBuild(buildCtx, seedText)
	entry.err = err
	close(entry.ready)

	if entry.err != nil {
		r.mu.Lock()
		// Only remove if the failed entry is still ours; eviction may have
		// already replaced or removed it.
		if current, ok := r.entries[graphID]; ok && current == entry {
			delete(r.entries, graphID)
		}
		r.mu.Unlock()
		logger.Warn("[Registry] Pipeline construction failed", "graph", graphID, "err", entry.err)
		return nil, false, entry.err
	}
	return entry.pipeline, built, nil
}

// Get returns the tenant's pipeline if one is live, waiting out an in-flight
// construction. Unknown tenants are a not-found condition; Get never
// constructs.
func (r *Registry) Get(ctx context.Context, graphID string) (*Pipeline, error) {
	r.mu.Lock()
	entry, ok := r.entries[graphID]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown graph %s", common.ErrNotFound, graphID)
	}
	return r.await(ctx, entry)
}

func (r *Registry) await(ctx context.Context, entry *registryEntry) (*Pipeline, error) {
	select {
	case <-entry.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.pipeline, nil
}

// Evict removes the tenant from the registry, cancelling its build if one is
// in flight. The persisted snapshot is left untouched. Evicting an unknown
// tenant is a not-found condition.
func (r *Registry) Evict(graphID string) error {
	r.mu.Lock()
	entry, ok := r.entries[graphID]
	if ok {
		delete(r.entries, graphID)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: unknown graph %s", common.ErrNotFound, graphID)
	}
	entry.cancel()
	logger.Info("[Registry] Evicted graph", "graph", graphID)
	return nil
}

// IDs returns the ids of all live tenants in lexical order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
