// Package pipeline owns the per-tenant graph lifecycle: building a knowledge
// graph from uploaded text, keeping it current across incremental updates,
// persisting snapshots, and answering grounded query and chat requests.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"graphrag/internal/storage"
	"graphrag/internal/util"
	"graphrag/pkg/ai"
	"graphrag/pkg/common"
	"graphrag/pkg/graph"
	"graphrag/pkg/logger"
)

// Config carries the collaborators and tuning shared by every pipeline the
// registry creates.
type Config struct {
	AI        ai.GraphAIClient
	Snapshots storage.SnapshotStore
	Builder   *graph.Client

	// TopK and MinSimilarity control retrieval; MaxRetries bounds attempts
	// per embedding call. Zero values take defaults.
	TopK          int
	MinSimilarity float64
	MaxRetries    int
}

func (c Config) withDefaults() Config {
	if c.Builder == nil {
		c.Builder = graph.NewClient(graph.NewClientParams{})
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.MinSimilarity <= 0 {
		c.MinSimilarity = 0.5
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

// Pipeline is the per-tenant state: the owned graph store, the entity
// embeddings used for retrieval, and the running chat history. All operations
// on one pipeline are serialized by its mutex; different tenants never block
// each other here.
type Pipeline struct {
	mu sync.Mutex

	id         string
	store      *graph.Store
	embeddings map[string][]float32
	history    []ai.ChatMessage

	createdAt time.Time
	updatedAt time.Time

	cfg Config
}

func newPipeline(id string, cfg Config) *Pipeline {
	return &Pipeline{
		id:         id,
		store:      graph.NewStore(),
		embeddings: map[string][]float32{},
		cfg:        cfg.withDefaults(),
	}
}

// ID returns the tenant identifier this pipeline serves.
func (p *Pipeline) ID() string {
	return p.id
}

// loadOrBuild brings the pipeline into a ready state. A persisted snapshot
// wins when present; otherwise seedText is chunked, extracted, and persisted
// as the first snapshot. Without either, the tenant cannot exist yet.
//
// Returns true when the graph was built from seedText, false when it was
// loaded from a snapshot.
func (p *Pipeline) loadOrBuild(ctx context.Context, seedText string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap, err := p.cfg.Snapshots.LoadSnapshot(ctx, p.id)
	if err == nil {
		p.store.Load(snap.Entities, snap.Relations)
		if snap.Embeddings != nil {
			p.embeddings = snap.Embeddings
		}
		p.createdAt = snap.CreatedAt
		p.updatedAt = snap.UpdatedAt
		logger.Info("[Pipeline] Loaded snapshot",
			"graph", p.id, "nodes", p.store.NodeCount(), "edges", p.store.EdgeCount())
		return false, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		// A corrupt snapshot is only fatal when there is no text to
		// rebuild from.
		if seedText == "" {
			return false, fmt.Errorf("%w: snapshot unreadable and no seed text given: %v", common.ErrMissingInput, err)
		}
		logger.Warn("[Pipeline] Snapshot unreadable, rebuilding from seed text", "graph", p.id, "err", err)
	}
	if seedText == "" {
		return false, fmt.Errorf("%w: no snapshot and no seed text for graph %s", common.ErrMissingInput, p.id)
	}

	stats, err := p.ingestLocked(ctx, seedText)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	p.createdAt = now
	p.updatedAt = now
	if err := p.persistLocked(ctx); err != nil {
		return false, err
	}
	if err := p.appendLogLocked(ctx, stats, "initial build"); err != nil {
		return false, err
	}
	logger.Info("[Pipeline] Built graph",
		"graph", p.id, "chunks", stats.Chunks, "failed", stats.FailedChunks,
		"nodes", stats.NodesAdded, "edges", stats.EdgesAdded)
	return true, nil
}

// Update ingests additional text into the existing graph. Additive only; the
// store is never rebuilt. One update-log entry records what the pass added.
func (p *Pipeline) Update(ctx context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if text == "" {
		return fmt.Errorf("%w: update text must not be empty", common.ErrMissingInput)
	}
	stats, err := p.ingestLocked(ctx, text)
	if err != nil {
		if errors.Is(err, common.ErrInvalidInput) {
			return fmt.Errorf("%w: update text produced no chunks", common.ErrMissingInput)
		}
		return err
	}
	if stats.Chunks == 0 {
		return fmt.Errorf("%w: update text produced no chunks", common.ErrMissingInput)
	}

	p.updatedAt = time.Now().UTC()
	if err := p.persistLocked(ctx); err != nil {
		return err
	}
	if err := p.appendLogLocked(ctx, stats, "incremental update"); err != nil {
		return err
	}
	logger.Info("[Pipeline] Updated graph",
		"graph", p.id, "chunks", stats.Chunks, "failed", stats.FailedChunks,
		"nodes", stats.NodesAdded, "edges", stats.EdgesAdded)
	return nil
}

// ingestLocked runs the chunk-extract-upsert pass and refreshes embeddings
// for entities the pass introduced. Caller holds p.mu.
func (p *Pipeline) ingestLocked(ctx context.Context, text string) (*graph.BuildStats, error) {
	stats, err := p.cfg.Builder.BuildGraph(ctx, text, p.store, p.cfg.AI)
	if err != nil {
		return nil, err
	}
	if _, err := embedEntities(ctx, p.cfg.AI, p.store.Entities(), p.embeddings, p.cfg.MaxRetries); err != nil {
		return nil, err
	}
	return stats, nil
}

func (p *Pipeline) persistLocked(ctx context.Context) error {
	snap := &storage.Snapshot{
		GraphID:    p.id,
		CreatedAt:  p.createdAt,
		UpdatedAt:  p.updatedAt,
		Entities:   p.store.Entities(),
		Relations:  p.store.Relations(),
		Embeddings: p.embeddings,
	}
	export := p.store.Export()
	return p.cfg.Snapshots.SaveSnapshot(ctx, p.id, snap, &export)
}

func (p *Pipeline) appendLogLocked(ctx context.Context, stats *graph.BuildStats, note string) error {
	return p.cfg.Snapshots.AppendLog(ctx, p.id, common.UpdateLogEntry{
		Timestamp:  p.updatedAt,
		GraphID:    p.id,
		AddedNodes: stats.NodesAdded,
		AddedEdges: stats.EdgesAdded,
		Notes:      note,
	})
}

// Query answers a single question grounded in the graph. No conversational
// state is read or written.
func (p *Pipeline) Query(ctx context.Context, question string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if question == "" {
		return "", fmt.Errorf("%w: question must not be empty", common.ErrInvalidInput)
	}

	res, err := retrieveContext(ctx, p.store, p.embeddings, p.cfg.AI, question,
		p.cfg.TopK, p.cfg.MinSimilarity, p.cfg.MaxRetries)
	if err != nil {
		return "", err
	}

	answer, err := util.RetryWithContext(ctx, p.cfg.MaxRetries, func(ctx context.Context) (string, error) {
		return p.cfg.AI.GenerateCompletion(ctx, question,
			ai.WithSystemPrompts(fmt.Sprintf(ai.QueryPrompt, res.Context)))
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

// Chat answers a question as part of a running conversation. Questions the
// graph does not cover are answered from general knowledge, prefixed with the
// coverage warning; the conversation continues either way.
func (p *Pipeline) Chat(ctx context.Context, question string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if question == "" {
		return "", fmt.Errorf("%w: question must not be empty", common.ErrInvalidInput)
	}

	res, err := retrieveContext(ctx, p.store, p.embeddings, p.cfg.AI, question,
		p.cfg.TopK, p.cfg.MinSimilarity, p.cfg.MaxRetries)
	if err != nil {
		return "", err
	}

	messages := append([]ai.ChatMessage{}, p.history...)
	messages = append(messages, ai.ChatMessage{Role: "user", Message: question})

	systemPrompt := ai.GeneralKnowledgePrompt
	if res.Covered {
		systemPrompt = fmt.Sprintf(ai.ChatSystemPrompt, res.Context)
	}

	answer, err := util.RetryWithContext(ctx, p.cfg.MaxRetries, func(ctx context.Context) (string, error) {
		return p.cfg.AI.GenerateChat(ctx, messages, ai.WithSystemPrompts(systemPrompt))
	})
	if err != nil {
		return "", err
	}
	if !res.Covered {
		answer = ai.OutOfCoverageWarning + answer
	}

	p.history = append(p.history,
		ai.ChatMessage{Role: "user", Message: question},
		ai.ChatMessage{Role: "assistant", Message: answer},
	)
	return answer, nil
}

// ExportGraph persists and returns the node/edge projection. Repeated calls
// without intervening mutation return identical output.
func (p *Pipeline) ExportGraph(ctx context.Context) (*common.GraphExport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	export := p.store.Export()
	if err := p.persistLocked(ctx); err != nil {
		return nil, err
	}
	return &export, nil
}

// Triplets enumerates the graph's materialized triplets.
func (p *Pipeline) Triplets() []common.Triplet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Triplets()
}

// UpdateLog returns the tenant's append-only update history.
func (p *Pipeline) UpdateLog(ctx context.Context) ([]common.UpdateLogEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Snapshots.LoadLog(ctx, p.id)
}

// ClearSnapshot removes the persisted snapshot without touching in-memory
// state. Clearing an absent snapshot is not an error.
func (p *Pipeline) ClearSnapshot(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Snapshots.Clear(ctx, p.id)
}
