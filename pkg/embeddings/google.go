package embeddings

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultDimensions matches the pgvector column width used by the store.
const DefaultDimensions = 1536

// GoogleEmbedder wraps Google Gemini embeddings. It satisfies the
// research.Embedder capability used by the search layer.
type GoogleEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int32
}

// NewGoogleEmbedder creates a Gemini API embedder with the default
// output dimensionality.
func NewGoogleEmbedder(ctx context.Context, model, apiKey string) (*GoogleEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}

	return &GoogleEmbedder{
		client:     client,
		model:      model,
		dimensions: DefaultDimensions,
	}, nil
}

// EmbedText generates an embedding for a single text.
func (e *GoogleEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	dim := e.dimensions
	res, err := e.client.Models.EmbedContent(ctx, e.model, []*genai.Content{
		{
			Parts: []*genai.Part{
				{Text: text},
			},
		},
	}, &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}

	if len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	return res.Embeddings[0].Values, nil
}

// EmbedTexts generates embeddings for multiple texts. Sequential on
// purpose: batch limits vary across embedding models.
func (e *GoogleEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := e.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		result = append(result, vec)
	}
	return result, nil
}
