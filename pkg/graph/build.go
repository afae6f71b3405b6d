package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"graphrag/internal/util"
	"graphrag/pkg/ai"
	"graphrag/pkg/chunk"
	"graphrag/pkg/common"
	"graphrag/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Client drives graph construction: chunking, per-chunk extraction with
// bounded retries, and merging results into a Store. It is safe to share one
// Client across tenants; all per-tenant state lives in the Store.
//
// A Client should be created using NewClient.
type Client struct {
	chunkSize        int
	chunkOverlap     int
	tokenEncoder     string
	parallelRequests int
	maxRetries       int
	maxTriplets      int
}

// NewClientParams defines the configuration parameters for creating a new
// Client.
//
// ChunkSize and ChunkOverlap are measured in tokens of TokenEncoder.
// ParallelRequests bounds concurrent extraction calls per build.
// MaxRetries bounds attempts per chunk on transient model failure.
// MaxTriplets is the per-chunk triplet budget given to the model.
type NewClientParams struct {
	ChunkSize        int
	ChunkOverlap     int
	TokenEncoder     string
	ParallelRequests int
	MaxRetries       int
	MaxTriplets      int
}

// NewClient creates and returns a new Client configured with the provided
// parameters, applying defaults for anything unset.
func NewClient(params NewClientParams) *Client {
	chunkSize := params.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1024
	}
	chunkOverlap := params.ChunkOverlap
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 20
	}
	parallel := params.ParallelRequests
	if parallel <= 0 {
		parallel = 4
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	maxTriplets := params.MaxTriplets
	if maxTriplets <= 0 {
		maxTriplets = 10
	}
	return &Client{
		chunkSize:        chunkSize,
		chunkOverlap:     chunkOverlap,
		tokenEncoder:     params.TokenEncoder,
		parallelRequests: parallel,
		maxRetries:       maxRetries,
		maxTriplets:      maxTriplets,
	}
}

// BuildStats summarizes one build or update pass over a text.
type BuildStats struct {
	Chunks       int
	FailedChunks int
	NodesAdded   int
	EdgesAdded   int
}

// BuildGraph chunks text, extracts triplets per chunk, and upserts the
// results into store. Chunks whose extraction output is unusable are
// recovered as empty and counted in FailedChunks; only when every chunk
// fails and at least one failure was a model-call failure does the build
// itself fail.
func (g *Client) BuildGraph(
	ctx context.Context,
	text string,
	store *Store,
	aiClient ai.GraphAIClient,
) (*BuildStats, error) {
	splitter, err := chunk.NewSplitter(g.chunkSize, g.chunkOverlap, g.tokenEncoder)
	if err != nil {
		return nil, err
	}
	chunks, err := splitter.Split(text)
	if err != nil {
		return nil, err
	}

	stats := &BuildStats{Chunks: len(chunks)}
	var modelErr error
	mergeMu := sync.Mutex{}

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelRequests)

	for _, c := range chunks {
		eg.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
			}

			entities, relations, err := util.Retry2WithContext(gCtx, g.maxRetries,
				func(ctx context.Context) ([]common.Entity, []common.Relation, error) {
					return extractFromChunk(ctx, c.Text, g.maxTriplets, aiClient)
				})

			mergeMu.Lock()
			defer mergeMu.Unlock()

			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				// Failure stays local to this chunk; the build goes on.
				stats.FailedChunks++
				if !errors.Is(err, common.ErrExtraction) {
					modelErr = err
				}
				logger.Warn("[Graph] Chunk extraction failed", "chunk", c.ID, "err", err)
				return nil
			}

			for _, e := range entities {
				if store.UpsertEntity(e.Name, e.Type, e.Description) {
					stats.NodesAdded++
				}
			}
			for _, r := range relations {
				if store.UpsertRelation(r.Source, r.Target, r.Label, r.Description) {
					stats.EdgesAdded++
				}
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return stats, err
	}

	if stats.FailedChunks == stats.Chunks && modelErr != nil {
		return stats, fmt.Errorf("%w: all %d chunks failed", common.ErrModelCall, stats.Chunks)
	}

	if stats.FailedChunks > 0 {
		logger.Warn("[Graph] Build finished with failed chunks",
			"chunks", stats.Chunks, "failed", stats.FailedChunks)
	}

	return stats, nil
}
