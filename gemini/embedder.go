package gemini

import (
	"context"
	"time"

	"github.com/orgkb/orgkb"
	"google.golang.org/genai"
)

const (
	embedModel      = "gemini-embedding-001"
	embedBatchSize  = 50
	embedBatchDelay = 700 * time.Millisecond
)

// Ensure Embedder implements orgkb.Embedder at compile time.
var _ orgkb.Embedder = (*Embedder)(nil)

// Embedder implements orgkb.Embedder using Google Gemini. Batches are
// capped at the API limit with a short delay between them.
type Embedder struct {
	client    *genai.Client
	dimension int
}

// NewEmbedder creates a new Embedder. dimension truncates output
// vectors when positive; zero keeps the model default.
func NewEmbedder(client *genai.Client, dimension int) *Embedder {
	return &Embedder{client: client, dimension: dimension}
}

// Embed returns the embedding vector for one text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns embedding vectors for texts, in order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var config *genai.EmbedContentConfig
	if e.dimension > 0 {
		dim := int32(e.dimension)
		config = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	results := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += embedBatchSize {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(embedBatchDelay):
			}
		}

		end := min(i+embedBatchSize, len(texts))
		batch := texts[i:end]

		contents := make([]*genai.Content, 0, len(batch))
		for _, text := range batch {
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}

		res, err := e.client.Models.EmbedContent(ctx, embedModel, contents, config)
		if err != nil {
			return nil, orgkb.Errorf(orgkb.EUNAVAILABLE, "gemini embedding: %v", err)
		}
		if len(res.Embeddings) != len(batch) {
			return nil, orgkb.Errorf(orgkb.EINTERNAL, "embedding count mismatch: got %d, expected %d", len(res.Embeddings), len(batch))
		}
		for _, emb := range res.Embeddings {
			results = append(results, emb.Values)
		}
	}
	return results, nil
}
