package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type stubEmbedder struct {
	calls atomic.Int64
	fail  map[string]bool
}

func (s *stubEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	if s.fail[text] {
		return nil, errors.New("embedding provider unavailable")
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// stubIndex returns docsPerQuery documents per embedding and can delay
// individual calls to shuffle completion order.
type stubIndex struct {
	docsPerQuery int
	delay        func(call int) time.Duration
	fail         bool
	calls        atomic.Int64
	counter      atomic.Int64
}

func (s *stubIndex) QueryEmbeddings(_ context.Context, embeddings [][]float32, k int) ([]QueryMatches, error) {
	call := int(s.calls.Add(1))
	if s.delay != nil {
		time.Sleep(s.delay(call))
	}
	if s.fail {
		return nil, errors.New("vector store unreachable")
	}

	out := make([]QueryMatches, len(embeddings))
	for i := range embeddings {
		n := s.docsPerQuery
		if n > k {
			n = k
		}
		m := QueryMatches{}
		for j := 0; j < n; j++ {
			m.Documents = append(m.Documents, fmt.Sprintf("doc-%d-%d", s.counter.Add(1), j))
			m.Metadatas = append(m.Metadatas, map[string]any{"source": "stub"})
			m.Distances = append(m.Distances, float64(j)*0.1)
		}
		out[i] = m
	}
	return out, nil
}

func newTestSearcher(embedder Embedder, index VectorIndex) *Searcher {
	return NewSearcher(embedder, index, Config{}, slog.New(slog.DiscardHandler))
}

func TestSearchPreservesQueryOrder(t *testing.T) {
	// Later calls finish first, so completion order is the reverse of
	// submission order.
	index := &stubIndex{
		docsPerQuery: 1,
		delay: func(call int) time.Duration {
			return time.Duration(50-call*10) * time.Millisecond
		},
	}
	searcher := newTestSearcher(&stubEmbedder{}, index)

	for n := 1; n <= 4; n++ {
		queries := make([]string, n)
		for i := range queries {
			queries[i] = fmt.Sprintf("query-%d", i)
		}

		results := searcher.Search(context.Background(), queries)
		if len(results) != n {
			t.Fatalf("n=%d: got %d results", n, len(results))
		}
		for i, result := range results {
			if result.Query != queries[i] {
				t.Errorf("n=%d: result[%d].Query = %q, want %q", n, i, result.Query, queries[i])
			}
		}
	}
}

func TestSearchSingleQueryNoFanOut(t *testing.T) {
	index := &stubIndex{docsPerQuery: 2}
	searcher := newTestSearcher(&stubEmbedder{}, index)

	results := searcher.Search(context.Background(), []string{"solo"})
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	if len(results[0].Documents) != 2 {
		t.Errorf("expected 2 documents, got %d", len(results[0].Documents))
	}
	if len(results[0].Documents) != len(results[0].Metadatas) || len(results[0].Documents) != len(results[0].Distances) {
		t.Error("documents/metadatas/distances slices are not aligned")
	}
}

func TestSearchEmbeddingFailureYieldsEmptyResult(t *testing.T) {
	embedder := &stubEmbedder{fail: map[string]bool{"bad": true}}
	searcher := newTestSearcher(embedder, &stubIndex{docsPerQuery: 2})

	results := searcher.Search(context.Background(), []string{"good", "bad", "also good"})
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if len(results[1].Documents) != 0 {
		t.Error("failed query should produce an empty result")
	}
	if results[1].Query != "bad" {
		t.Errorf("empty result kept query %q", results[1].Query)
	}
	if len(results[0].Documents) == 0 || len(results[2].Documents) == 0 {
		t.Error("one failing query aborted its neighbors")
	}
}

func TestSearchStoreFailureDoesNotPropagate(t *testing.T) {
	searcher := newTestSearcher(&stubEmbedder{}, &stubIndex{fail: true})

	results := searcher.Search(context.Background(), []string{"a", "b"})
	for i, result := range results {
		if len(result.Documents) != 0 || len(result.Metadatas) != 0 || len(result.Distances) != 0 {
			t.Errorf("result[%d] should be empty on store failure", i)
		}
	}
}
