package graph

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"graphrag/pkg/ai"
	"graphrag/pkg/common"
)

// fakeAIClient returns canned completions, failing the first failures calls.
type fakeAIClient struct {
	response string
	failures int32
	calls    atomic.Int32
}

func (f *fakeAIClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return "", fmt.Errorf("%w: provider unavailable", common.ErrModelCall)
	}
	return f.response, nil
}

func (f *fakeAIClient) GenerateChat(ctx context.Context, messages []ai.ChatMessage, opts ...ai.GenerateOption) (string, error) {
	return f.response, nil
}

func (f *fakeAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

const adamResponse = `{
  "entities": [
    {"entity_name": "Adam", "entity_type": "Person", "entity_description": "A software engineer."},
    {"entity_name": "Microsoft", "entity_type": "Company", "entity_description": "A technology company."}
  ],
  "relationships": [
    {"source_entity": "Adam", "target_entity": "Microsoft", "relation": "works_for", "relationship_description": "Adam works at Microsoft."}
  ]
}`

func TestBuildGraph_SingleChunk(t *testing.T) {
	client := NewClient(NewClientParams{})
	store := NewStore()
	fake := &fakeAIClient{response: adamResponse}

	stats, err := client.BuildGraph(context.Background(), "Adam works at Microsoft.", store, fake)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if stats.Chunks != 1 || stats.FailedChunks != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.NodesAdded != 2 || stats.EdgesAdded != 1 {
		t.Fatalf("expected 2 nodes and 1 edge added, got %+v", stats)
	}
	if store.NodeCount() != 2 || store.EdgeCount() != 1 {
		t.Fatalf("unexpected store contents: %d nodes %d edges", store.NodeCount(), store.EdgeCount())
	}
}

func TestBuildGraph_RetriesTransientFailure(t *testing.T) {
	client := NewClient(NewClientParams{MaxRetries: 3})
	store := NewStore()
	fake := &fakeAIClient{response: adamResponse, failures: 2}

	stats, err := client.BuildGraph(context.Background(), "Adam works at Microsoft.", store, fake)
	if err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if stats.FailedChunks != 0 {
		t.Fatalf("expected no failed chunks, got %+v", stats)
	}
	if fake.calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", fake.calls.Load())
	}
}

func TestBuildGraph_AllChunksFailIsModelError(t *testing.T) {
	client := NewClient(NewClientParams{MaxRetries: 2})
	store := NewStore()
	fake := &fakeAIClient{response: adamResponse, failures: 100}

	_, err := client.BuildGraph(context.Background(), "Adam works at Microsoft.", store, fake)
	if !errors.Is(err, common.ErrModelCall) {
		t.Fatalf("expected model-call failure, got %v", err)
	}
	if store.NodeCount() != 0 {
		t.Fatalf("expected empty store, got %d nodes", store.NodeCount())
	}
}

func TestBuildGraph_UnparsableOutputRecoversEmpty(t *testing.T) {
	client := NewClient(NewClientParams{MaxRetries: 1})
	store := NewStore()
	fake := &fakeAIClient{response: "I found no entities worth reporting."}

	stats, err := client.BuildGraph(context.Background(), "Adam works at Microsoft.", store, fake)
	if err != nil {
		t.Fatalf("expected parse failure to stay chunk-local, got %v", err)
	}
	if stats.FailedChunks != 1 {
		t.Fatalf("expected 1 failed chunk, got %+v", stats)
	}
	if store.NodeCount() != 0 || store.EdgeCount() != 0 {
		t.Fatal("expected store untouched")
	}
}

func TestBuildGraph_RepeatedBuildIsIdempotent(t *testing.T) {
	client := NewClient(NewClientParams{})
	store := NewStore()
	fake := &fakeAIClient{response: adamResponse}

	if _, err := client.BuildGraph(context.Background(), "Adam works at Microsoft.", store, fake); err != nil {
		t.Fatalf("first build: %v", err)
	}
	stats, err := client.BuildGraph(context.Background(), "Adam works at Microsoft.", store, fake)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if stats.NodesAdded != 0 || stats.EdgesAdded != 0 {
		t.Fatalf("expected no new nodes or edges on re-ingest, got %+v", stats)
	}
	if store.NodeCount() != 2 || store.EdgeCount() != 1 {
		t.Fatalf("unexpected store contents after re-ingest: %d nodes %d edges", store.NodeCount(), store.EdgeCount())
	}
}
