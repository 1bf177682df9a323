package research

import "context"

// Message is a single chat turn sent to the LLM provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLM is the text-generation capability the engine depends on.
type LLM interface {
	Generate(ctx context.Context, messages []Message, model string) (string, error)
}

// Embedder turns a query string into a vector in the same space the corpus
// was embedded in.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// QueryMatches is the match set one embedding yields: up to k passages with
// their metadata, ordered by ascending distance (cosine space).
type QueryMatches struct {
	Documents []string
	Metadatas []map[string]any
	Distances []float64
}

// VectorIndex is the read capability of the vector store. One input embedding
// yields exactly one QueryMatches in the same position.
type VectorIndex interface {
	QueryEmbeddings(ctx context.Context, embeddings [][]float32, k int) ([]QueryMatches, error)
}
