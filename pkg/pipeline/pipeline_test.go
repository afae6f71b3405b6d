package pipeline

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"graphrag/internal/storage"
	"graphrag/pkg/ai"
	"graphrag/pkg/common"
	"graphrag/pkg/graph"
	"graphrag/pkg/pool"
)

const adamExtraction = `{
  "entities": [
    {"entity_name": "Adam", "entity_type": "Person", "entity_description": "A software engineer at Microsoft."},
    {"entity_name": "Microsoft", "entity_type": "Company", "entity_description": "A technology company."}
  ],
  "relationships": [
    {"source_entity": "Adam", "target_entity": "Microsoft", "relation": "works_for", "relationship_description": "Adam works at Microsoft."}
  ]
}`

const berndExtraction = `{
  "entities": [
    {"entity_name": "Bernd", "entity_type": "Person", "entity_description": "A designer at Microsoft."}
  ],
  "relationships": [
    {"source_entity": "Bernd", "target_entity": "Microsoft", "relation": "works_for", "relationship_description": "Bernd works at Microsoft."}
  ]
}`

// stubAIClient routes extraction prompts to a canned response and embeds
// texts mentioning graph subjects along one axis, everything else along the
// other, so coverage decisions are deterministic.
type stubAIClient struct {
	extraction  string
	completions atomic.Int32
	chats       atomic.Int32
	extractions atomic.Int32
}

func (f *stubAIClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	if strings.Contains(prompt, "-Goal-") {
		f.extractions.Add(1)
		return f.extraction, nil
	}
	f.completions.Add(1)
	return "Adam works at Microsoft as a software engineer.", nil
}

func (f *stubAIClient) GenerateChat(ctx context.Context, messages []ai.ChatMessage, opts ...ai.GenerateOption) (string, error) {
	f.chats.Add(1)
	return "Paris.", nil
}

func (f *stubAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	text := string(input)
	for _, subject := range []string{"Adam", "Microsoft", "Bernd"} {
		if strings.Contains(text, subject) {
			return []float32{1, 0}, nil
		}
	}
	return []float32{0, 1}, nil
}

func newTestService(t *testing.T, client ai.GraphAIClient) *Service {
	t.Helper()
	snapshots, err := storage.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating snapshot store: %v", err)
	}
	gateway, err := pool.NewGateway(4)
	if err != nil {
		t.Fatalf("creating gateway: %v", err)
	}
	return NewService(Config{
		AI:        client,
		Snapshots: snapshots,
		Builder:   graph.NewClient(graph.NewClientParams{MaxRetries: 1}),
	}, gateway)
}

func TestUploadBuildsExpectedGraph(t *testing.T) {
	svc := newTestService(t, &stubAIClient{extraction: adamExtraction})
	ctx := context.Background()

	id, export, err := svc.UploadOrUpdate(ctx, "", "Adam works at Microsoft.")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(id, "graph_") {
		t.Fatalf("expected minted id with graph_ prefix, got %q", id)
	}

	names := map[string]bool{}
	for _, n := range export.Nodes {
		names[n.ID] = true
	}
	if !names["Adam"] || !names["Microsoft"] {
		t.Fatalf("expected nodes Adam and Microsoft, got %+v", export.Nodes)
	}
	if len(export.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(export.Edges))
	}
	e := export.Edges[0]
	if e.Source != "Adam" || e.Target != "Microsoft" || e.Relationship != "works_for" {
		t.Fatalf("unexpected edge %+v", e)
	}
}

func TestQueryOnFreshTenantIsNotFound(t *testing.T) {
	svc := newTestService(t, &stubAIClient{extraction: adamExtraction})
	_, err := svc.Query(context.Background(), "graph_unknown", "Where does Adam work?")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestQueryAnswersGrounded(t *testing.T) {
	client := &stubAIClient{extraction: adamExtraction}
	svc := newTestService(t, client)
	ctx := context.Background()

	id, _, err := svc.UploadOrUpdate(ctx, "", "Adam works at Microsoft.")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	answer, err := svc.Query(ctx, id, "Where does Adam work?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if answer == "" {
		t.Fatal("expected a non-empty answer")
	}
	if client.completions.Load() != 1 {
		t.Fatalf("expected 1 completion call, got %d", client.completions.Load())
	}
}

func TestChatOutOfCoveragePrefixesWarning(t *testing.T) {
	svc := newTestService(t, &stubAIClient{extraction: adamExtraction})
	ctx := context.Background()

	id, _, err := svc.UploadOrUpdate(ctx, "", "Adam works at Microsoft.")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	answer, err := svc.Chat(ctx, id, "What is the capital of France?")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.HasPrefix(answer, ai.OutOfCoverageWarning) {
		t.Fatalf("expected out-of-coverage warning prefix, got %q", answer)
	}
	if !strings.HasSuffix(answer, "Paris.") {
		t.Fatalf("expected general-knowledge answer after warning, got %q", answer)
	}
}

func TestChatInCoverageHasNoWarning(t *testing.T) {
	svc := newTestService(t, &stubAIClient{extraction: adamExtraction})
	ctx := context.Background()

	id, _, err := svc.UploadOrUpdate(ctx, "", "Adam works at Microsoft.")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	answer, err := svc.Chat(ctx, id, "Tell me about Adam.")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if strings.HasPrefix(answer, ai.OutOfCoverageWarning) {
		t.Fatalf("expected grounded answer without warning, got %q", answer)
	}
}

func TestUpdateIsMonotone(t *testing.T) {
	client := &stubAIClient{extraction: adamExtraction}
	svc := newTestService(t, client)
	ctx := context.Background()

	id, first, err := svc.UploadOrUpdate(ctx, "", "Adam works at Microsoft.")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	client.extraction = berndExtraction
	_, second, err := svc.UploadOrUpdate(ctx, id, "Bernd also works at Microsoft.")
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if len(second.Nodes) < len(first.Nodes) || len(second.Edges) < len(first.Edges) {
		t.Fatalf("expected monotone growth, got %d/%d nodes %d/%d edges",
			len(first.Nodes), len(second.Nodes), len(first.Edges), len(second.Edges))
	}
	names := map[string]bool{}
	for _, n := range second.Nodes {
		names[n.ID] = true
	}
	if !names["Adam"] || !names["Bernd"] {
		t.Fatalf("expected both Adam and Bernd after update, got %+v", second.Nodes)
	}
}

func TestRepeatUploadToLiveTenantAppliesText(t *testing.T) {
	client := &stubAIClient{extraction: adamExtraction}
	svc := newTestService(t, client)
	ctx := context.Background()

	id, _, err := svc.UploadOrUpdate(ctx, "", "Adam works at Microsoft.")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	// The tenant stays live between uploads, so the second text must be
	// ingested as an update rather than dropped.
	client.extraction = berndExtraction
	_, export, err := svc.UploadOrUpdate(ctx, id, "Bernd also works at Microsoft.")
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	names := map[string]bool{}
	for _, n := range export.Nodes {
		names[n.ID] = true
	}
	if !names["Bernd"] {
		t.Fatalf("expected second upload's text to be ingested, got %+v", export.Nodes)
	}
	if got := client.extractions.Load(); got != 2 {
		t.Fatalf("expected 2 extraction calls, got %d", got)
	}
}

func TestUpdateAppendsLogEntry(t *testing.T) {
	client := &stubAIClient{extraction: adamExtraction}
	svc := newTestService(t, client)
	ctx := context.Background()

	id, _, err := svc.UploadOrUpdate(ctx, "", "Adam works at Microsoft.")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	client.extraction = berndExtraction
	if _, _, err := svc.UploadOrUpdate(ctx, id, "Bernd also works at Microsoft."); err != nil {
		t.Fatalf("update: %v", err)
	}

	entries, err := svc.GetUpdateLog(ctx, id)
	if err != nil {
		t.Fatalf("loading log: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected build and update entries, got %d", len(entries))
	}
	last := entries[len(entries)-1]
	if last.GraphID != id || last.AddedNodes != 1 || last.AddedEdges != 1 {
		t.Fatalf("unexpected log entry %+v", last)
	}
}

func TestExportGraphIsIdempotent(t *testing.T) {
	svc := newTestService(t, &stubAIClient{extraction: adamExtraction})
	ctx := context.Background()

	id, _, err := svc.UploadOrUpdate(ctx, "", "Adam works at Microsoft.")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	first, err := svc.GetGraph(ctx, id)
	if err != nil {
		t.Fatalf("first export: %v", err)
	}
	second, err := svc.GetGraph(ctx, id)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical exports without intervening mutation")
	}
}

func TestResetThenGetGraphIsNotFound(t *testing.T) {
	svc := newTestService(t, &stubAIClient{extraction: adamExtraction})
	ctx := context.Background()

	id, _, err := svc.UploadOrUpdate(ctx, "", "Adam works at Microsoft.")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := svc.Reset(ctx, id); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := svc.GetGraph(ctx, id); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not-found after reset, got %v", err)
	}
	if err := svc.Reset(ctx, id); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not-found on double reset, got %v", err)
	}
}

func TestUploadRestoresFromSnapshotAfterReset(t *testing.T) {
	client := &stubAIClient{extraction: adamExtraction}
	svc := newTestService(t, client)
	ctx := context.Background()

	id, _, err := svc.UploadOrUpdate(ctx, "", "Adam works at Microsoft.")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := svc.Reset(ctx, id); err != nil {
		t.Fatalf("reset: %v", err)
	}

	client.extraction = berndExtraction
	_, export, err := svc.UploadOrUpdate(ctx, id, "Bernd also works at Microsoft.")
	if err != nil {
		t.Fatalf("re-upload: %v", err)
	}
	names := map[string]bool{}
	for _, n := range export.Nodes {
		names[n.ID] = true
	}
	// Adam survives through the snapshot, Bernd arrives via the update.
	if !names["Adam"] || !names["Bernd"] {
		t.Fatalf("expected snapshot restore plus update, got %+v", export.Nodes)
	}
}

func TestPurgeSnapshotOnLiveTenant(t *testing.T) {
	client := &stubAIClient{extraction: adamExtraction}
	svc := newTestService(t, client)
	ctx := context.Background()

	id, _, err := svc.UploadOrUpdate(ctx, "", "Adam works at Microsoft.")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := svc.PurgeSnapshot(ctx, id); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if err := svc.Reset(ctx, id); err != nil {
		t.Fatalf("reset: %v", err)
	}

	// With the snapshot gone the re-upload builds from scratch, so Adam
	// must not reappear.
	client.extraction = berndExtraction
	_, export, err := svc.UploadOrUpdate(ctx, id, "Bernd also works at Microsoft.")
	if err != nil {
		t.Fatalf("re-upload: %v", err)
	}
	names := map[string]bool{}
	for _, n := range export.Nodes {
		names[n.ID] = true
	}
	if names["Adam"] || !names["Bernd"] {
		t.Fatalf("expected a fresh build without Adam, got %+v", export.Nodes)
	}
}

func TestPurgeSnapshotUnknownTenantIsNoop(t *testing.T) {
	svc := newTestService(t, &stubAIClient{extraction: adamExtraction})
	if err := svc.PurgeSnapshot(context.Background(), "graph_nope"); err != nil {
		t.Fatalf("expected no-op purge, got %v", err)
	}
}

func TestListGraphs(t *testing.T) {
	svc := newTestService(t, &stubAIClient{extraction: adamExtraction})
	ctx := context.Background()

	if got := svc.ListGraphs(ctx); len(got) != 0 {
		t.Fatalf("expected no live graphs, got %v", got)
	}
	first, _, err := svc.UploadOrUpdate(ctx, "", "Adam works at Microsoft.")
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	second, _, err := svc.UploadOrUpdate(ctx, "", "Adam works at Microsoft.")
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}

	want := []string{first, second}
	sort.Strings(want)
	if got := svc.ListGraphs(ctx); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if err := svc.Reset(ctx, first); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := svc.ListGraphs(ctx); !reflect.DeepEqual(got, []string{second}) {
		t.Fatalf("expected only %q after reset, got %v", second, got)
	}
}

func TestUploadEmptyTextIsMissingInput(t *testing.T) {
	svc := newTestService(t, &stubAIClient{extraction: adamExtraction})
	_, _, err := svc.UploadOrUpdate(context.Background(), "", "")
	if !errors.Is(err, common.ErrMissingInput) {
		t.Fatalf("expected missing-input, got %v", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"empty", nil, nil, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := cosineSimilarity(tc.a, tc.b)
			if got < tc.want-1e-9 || got > tc.want+1e-9 {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
