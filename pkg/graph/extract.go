package graph

import (
	"context"
	"fmt"

	"graphrag/pkg/ai"
	"graphrag/pkg/common"
)

// extractFromChunk runs one extraction request for a single chunk and parses
// the raw response into entities and relations. A chunk yielding zero
// triplets is valid, not an error.
func extractFromChunk(
	ctx context.Context,
	text string,
	maxTriplets int,
	client ai.GraphAIClient,
) ([]common.Entity, []common.Relation, error) {
	prompt := fmt.Sprintf(ai.ExtractPrompt, maxTriplets, text)

	res, err := client.GenerateCompletion(ctx, prompt, ai.WithTemperature(0.1))
	if err != nil {
		return nil, nil, err
	}

	return ParseExtraction(res)
}
