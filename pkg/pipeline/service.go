package pipeline

import (
	"context"
	"errors"
	"fmt"

	"graphrag/internal/storage"
	"graphrag/pkg/common"
	"graphrag/pkg/pool"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Service is the operation surface the transport layer talks to. It owns the
// registry and funnels every model-bearing operation through the bounded
// gateway so provider concurrency stays capped process-wide.
type Service struct {
	registry  *Registry
	gateway   *pool.Gateway
	snapshots storage.SnapshotStore
}

// NewService wires a service from pipeline configuration and a gateway.
func NewService(cfg Config, gateway *pool.Gateway) *Service {
	return &Service{
		registry:  NewRegistry(cfg),
		gateway:   gateway,
		snapshots: cfg.Snapshots,
	}
}

// UploadOrUpdate ingests text for a tenant. With an empty graphID a new
// tenant id is minted and its graph built from the text. With a known (or
// snapshot-backed) graphID the text is applied as an incremental update.
// This is the only operation that creates or restores pipelines.
func (s *Service) UploadOrUpdate(ctx context.Context, graphID, text string) (string, *common.GraphExport, error) {
	if text == "" {
		return "", nil, fmt.Errorf("%w: upload text must not be empty", common.ErrMissingInput)
	}
	if graphID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return "", nil, fmt.Errorf("generating graph id: %w", err)
		}
		graphID = "graph_" + id
	}

	export, err := pool.Submit(ctx, s.gateway, func(ctx context.Context) (*common.GraphExport, error) {
		p, built, err := s.registry.GetOrCreate(ctx, graphID, text)
		if err != nil {
			return nil, err
		}
		// Unless this call's text seeded the build, the pipeline has not
		// seen it yet. Live tenants and snapshot restores both land here.
		if !built {
			if err := p.Update(ctx, text); err != nil {
				return nil, err
			}
		}
		return p.ExportGraph(ctx)
	})
	if err != nil {
		return "", nil, err
	}
	return graphID, export, nil
}

// Query answers a single-turn question for a live tenant.
func (s *Service) Query(ctx context.Context, graphID, question string) (string, error) {
	p, err := s.registry.Get(ctx, graphID)
	if err != nil {
		return "", err
	}
	return pool.Submit(ctx, s.gateway, func(ctx context.Context) (string, error) {
		return p.Query(ctx, question)
	})
}

// Chat answers a conversational question for a live tenant.
func (s *Service) Chat(ctx context.Context, graphID, question string) (string, error) {
	p, err := s.registry.Get(ctx, graphID)
	if err != nil {
		return "", err
	}
	return pool.Submit(ctx, s.gateway, func(ctx context.Context) (string, error) {
		return p.Chat(ctx, question)
	})
}

// GetGraph returns the tenant's exported node/edge projection.
func (s *Service) GetGraph(ctx context.Context, graphID string) (*common.GraphExport, error) {
	p, err := s.registry.Get(ctx, graphID)
	if err != nil {
		return nil, err
	}
	return pool.Submit(ctx, s.gateway, func(ctx context.Context) (*common.GraphExport, error) {
		return p.ExportGraph(ctx)
	})
}

// GetTriplets enumerates the tenant's triplets.
func (s *Service) GetTriplets(ctx context.Context, graphID string) ([]common.Triplet, error) {
	p, err := s.registry.Get(ctx, graphID)
	if err != nil {
		return nil, err
	}
	return p.Triplets(), nil
}

// GetUpdateLog returns the tenant's update history.
func (s *Service) GetUpdateLog(ctx context.Context, graphID string) ([]common.UpdateLogEntry, error) {
	p, err := s.registry.Get(ctx, graphID)
	if err != nil {
		return nil, err
	}
	return p.UpdateLog(ctx)
}

// ListGraphs returns the ids of all live tenants.
func (s *Service) ListGraphs(ctx context.Context) []string {
	return s.registry.IDs()
}

// Reset evicts the tenant from the cache. The persisted snapshot stays;
// a later upload with the same id restores from it.
func (s *Service) Reset(ctx context.Context, graphID string) error {
	return s.registry.Evict(graphID)
}

// PurgeSnapshot removes the tenant's persisted snapshot. When the tenant is
// live the clear goes through its pipeline so it serializes with any
// in-flight persist. Purging a tenant that never persisted anything is a
// no-op.
func (s *Service) PurgeSnapshot(ctx context.Context, graphID string) error {
	p, err := s.registry.Get(ctx, graphID)
	if errors.Is(err, common.ErrNotFound) {
		return s.snapshots.Clear(ctx, graphID)
	}
	if err != nil {
		return err
	}
	return p.ClearSnapshot(ctx)
}
