package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"graphrag/internal/storage"
	"graphrag/pkg/common"
	"graphrag/pkg/graph"
)

func newTestRegistry(t *testing.T, client *stubAIClient) *Registry {
	t.Helper()
	snapshots, err := storage.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating snapshot store: %v", err)
	}
	return NewRegistry(Config{
		AI:        client,
		Snapshots: snapshots,
		Builder:   graph.NewClient(graph.NewClientParams{MaxRetries: 1}),
	})
}

func TestGetOrCreate_BuildsOncePerKey(t *testing.T) {
	client := &stubAIClient{extraction: adamExtraction}
	registry := newTestRegistry(t, client)
	ctx := context.Background()

	const callers = 8
	pipelines := make([]*Pipeline, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, _, err := registry.GetOrCreate(ctx, "graph_shared", "Adam works at Microsoft.")
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			pipelines[i] = p
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if pipelines[i] != pipelines[0] {
			t.Fatal("expected every caller to observe the same pipeline")
		}
	}
	// The text fits in one chunk, so a single build means a single
	// extraction call.
	if got := client.extractions.Load(); got != 1 {
		t.Fatalf("expected exactly 1 extraction call, got %d", got)
	}
}

func TestGetOrCreate_LiveEntryReportsSeedUnconsumed(t *testing.T) {
	client := &stubAIClient{extraction: adamExtraction}
	registry := newTestRegistry(t, client)
	ctx := context.Background()

	_, built, err := registry.GetOrCreate(ctx, "graph_live", "Adam works at Microsoft.")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if !built {
		t.Fatal("expected first call's text to seed the build")
	}

	// A later call finds the live pipeline; its text is not ingested here
	// and the flag must say so, or the caller would drop it.
	_, built, err = registry.GetOrCreate(ctx, "graph_live", "Bernd also works at Microsoft.")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if built {
		t.Fatal("expected second call's text to be reported unconsumed")
	}
	if got := client.extractions.Load(); got != 1 {
		t.Fatalf("expected 1 extraction call, got %d", got)
	}
}

func TestGetOrCreate_NoSeedAndNoSnapshot(t *testing.T) {
	registry := newTestRegistry(t, &stubAIClient{extraction: adamExtraction})
	_, _, err := registry.GetOrCreate(context.Background(), "graph_empty", "")
	if !errors.Is(err, common.ErrMissingInput) {
		t.Fatalf("expected missing-input, got %v", err)
	}
}

func TestGetOrCreate_FailedBuildCanBeRetried(t *testing.T) {
	registry := newTestRegistry(t, &stubAIClient{extraction: adamExtraction})
	ctx := context.Background()

	if _, _, err := registry.GetOrCreate(ctx, "graph_retry", ""); err == nil {
		t.Fatal("expected first attempt without seed text to fail")
	}
	// The failed entry must not poison the key.
	p, built, err := registry.GetOrCreate(ctx, "graph_retry", "Adam works at Microsoft.")
	if err != nil {
		t.Fatalf("retry with seed text: %v", err)
	}
	if !built || p == nil {
		t.Fatalf("expected a fresh build, got built=%v", built)
	}
}

func TestGet_DoesNotConstruct(t *testing.T) {
	registry := newTestRegistry(t, &stubAIClient{extraction: adamExtraction})
	if _, err := registry.Get(context.Background(), "graph_nope"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestEvict(t *testing.T) {
	registry := newTestRegistry(t, &stubAIClient{extraction: adamExtraction})
	ctx := context.Background()

	if _, _, err := registry.GetOrCreate(ctx, "graph_evict", "Adam works at Microsoft."); err != nil {
		t.Fatalf("creating pipeline: %v", err)
	}
	if err := registry.Evict("graph_evict"); err != nil {
		t.Fatalf("evicting: %v", err)
	}
	if _, err := registry.Get(ctx, "graph_evict"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not-found after evict, got %v", err)
	}
	if err := registry.Evict("graph_evict"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not-found on second evict, got %v", err)
	}
}
