package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"graphrag/internal/util"
	"graphrag/pkg/common"

	"github.com/openai/openai-go/v3"
)

const defaultDimensions = 1536

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model. Empty input yields a zero vector of
// the configured dimension.
func (c *GraphOpenAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if c.EmbeddingClient == nil {
		return nil, errors.New("embedding client is not configured")
	}

	dim := int(util.GetEnvNumeric("AI_EMBED_DIM", defaultDimensions))
	if len(strings.TrimSpace(string(input))) == 0 {
		return make([]float32, dim), nil
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.EmbeddingClient.Embeddings.New(rCtx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(string(input)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrModelCall, err)
	}
	if len(res.Data) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", common.ErrModelCall)
	}

	out := make([]float32, 0, len(res.Data[0].Embedding))
	for _, v := range res.Data[0].Embedding {
		out = append(out, float32(v))
	}
	return out, nil
}
