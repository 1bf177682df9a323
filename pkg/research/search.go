package research

import (
	"context"
	"log/slog"
	"sync"
)

// Searcher fans research queries out to the vector index. It is safe for use
// by a single session at a time; the underlying index and embedder handle
// concurrent read queries without locking.
type Searcher struct {
	embedder    Embedder
	index       VectorIndex
	k           int
	maxParallel int
	logger      *slog.Logger
}

func NewSearcher(embedder Embedder, index VectorIndex, cfg Config, logger *slog.Logger) *Searcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		embedder:    embedder,
		index:       index,
		k:           cfg.SearchK,
		maxParallel: cfg.MaxParallelQueries,
		logger:      logger,
	}
}

// Search executes every query and returns one SearchResult per query, in the
// same order as the input regardless of completion timing. A single query
// runs synchronously on the calling goroutine; larger batches fan out under a
// semaphore bounded by the configured parallelism. A query that fails yields
// an empty result for its slot instead of failing the batch.
func (s *Searcher) Search(ctx context.Context, queries []string) []SearchResult {
	if len(queries) == 0 {
		return nil
	}
	if len(queries) == 1 {
		return []SearchResult{s.searchOne(ctx, queries[0])}
	}

	results := make([]SearchResult, len(queries))
	sem := make(chan struct{}, s.maxParallel)
	var wg sync.WaitGroup

	for i, query := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = s.searchOne(ctx, query)
		}(i, query)
	}
	wg.Wait()

	return results
}

func (s *Searcher) searchOne(ctx context.Context, query string) SearchResult {
	empty := SearchResult{
		Query:     query,
		Documents: []string{},
		Metadatas: []map[string]any{},
		Distances: []float64{},
	}

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed", "error", &EmbeddingError{Query: query, Err: err})
		return empty
	}

	matches, err := s.index.QueryEmbeddings(ctx, [][]float32{embedding}, s.k)
	if err != nil {
		s.logger.Warn("vector search failed", "error", &SearchError{Query: query, Err: err})
		return empty
	}
	if len(matches) == 0 {
		return empty
	}

	m := matches[0]
	return SearchResult{
		Query:     query,
		Documents: m.Documents,
		Metadatas: m.Metadatas,
		Distances: m.Distances,
	}
}
