package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"graphrag/internal/util"
	"graphrag/pkg/ai"
	"graphrag/pkg/common"
	"graphrag/pkg/graph"
)

// entityEmbedText is the text an entity is embedded under. Name alone is too
// ambiguous for short names; the description disambiguates.
func entityEmbedText(e common.Entity) string {
	if e.Description == "" {
		return e.Name
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Description)
}

// embedEntities fills in embeddings for entities not present in known,
// returning the number of new vectors. Existing vectors are kept; an entity's
// embedding is only as fresh as its last description change, which is
// acceptable for ranking.
func embedEntities(
	ctx context.Context,
	aiClient ai.GraphAIClient,
	entities []common.Entity,
	known map[string][]float32,
	maxRetries int,
) (int, error) {
	added := 0
	for _, e := range entities {
		if _, ok := known[e.Name]; ok {
			continue
		}
		vec, err := util.RetryWithContext(ctx, maxRetries, func(ctx context.Context) ([]float32, error) {
			return aiClient.GenerateEmbedding(ctx, []byte(entityEmbedText(e)))
		})
		if err != nil {
			return added, fmt.Errorf("embedding entity %q: %w", e.Name, err)
		}
		known[e.Name] = vec
		added++
	}
	return added, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// retrievalResult is the grounding context assembled for one question.
// Covered reports whether the best-matching entity cleared the similarity
// threshold; callers use it to decide between grounded and fallback
// answering.
type retrievalResult struct {
	Context string
	Covered bool
	Matched []string
}

type scoredEntity struct {
	name  string
	score float64
}

// retrieveContext embeds the question, ranks entities by cosine similarity,
// and serializes the subgraph induced by the top-k entities above the
// threshold. Coverage is a structural decision made here, not something left
// to the model's instruction-following.
func retrieveContext(
	ctx context.Context,
	store *graph.Store,
	embeddings map[string][]float32,
	aiClient ai.GraphAIClient,
	question string,
	topK int,
	minSimilarity float64,
	maxRetries int,
) (*retrievalResult, error) {
	qVec, err := util.RetryWithContext(ctx, maxRetries, func(ctx context.Context) ([]float32, error) {
		return aiClient.GenerateEmbedding(ctx, []byte(question))
	})
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	scored := []scoredEntity{}
	for name, vec := range embeddings {
		score := cosineSimilarity(qVec, vec)
		if score >= minSimilarity {
			scored = append(scored, scoredEntity{name: name, score: score})
		}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].name < scored[j].name
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}

	if len(scored) == 0 {
		return &retrievalResult{Covered: false}, nil
	}

	matched := map[string]bool{}
	names := make([]string, 0, len(scored))
	for _, s := range scored {
		matched[s.name] = true
		names = append(names, s.name)
	}

	var b strings.Builder
	for _, name := range names {
		if e, ok := store.Entity(name); ok {
			fmt.Fprintf(&b, "%s (%s): %s\n", e.Name, e.Type, e.Description)
		}
	}
	for _, t := range store.Triplets() {
		if !matched[t.Source] && !matched[t.Target] {
			continue
		}
		fmt.Fprintf(&b, "%s -[%s]-> %s", t.Source, t.Relation, t.Target)
		if t.RelationDesc != "" {
			fmt.Fprintf(&b, ": %s", t.RelationDesc)
		}
		b.WriteString("\n")
	}

	return &retrievalResult{
		Context: b.String(),
		Covered: true,
		Matched: names,
	}, nil
}
