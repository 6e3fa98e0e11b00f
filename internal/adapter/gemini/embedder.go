package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-embedding-001"

// Embedder wraps the Gemini batch embedding API. A batch either returns one
// vector per input text, in order, or fails as a whole.
type Embedder struct {
	client *genai.Client
	model  string
}

func NewEmbedder(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}
	if model == "" {
		model = DefaultModel
	}
	clientOpts := append(opts, option.WithAPIKey(apiKey))
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: model}, nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	slog.DebugContext(ctx, "embedding batch", "model", e.model, "texts", len(texts))

	em := e.client.EmbeddingModel(e.model)
	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		slog.ErrorContext(ctx, "batch embedding failed", "error", err, "texts", len(texts))
		return nil, err
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(res.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("empty embedding received at index %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (e *Embedder) Close() error {
	return e.client.Close()
}
