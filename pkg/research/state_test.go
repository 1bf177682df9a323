package research

import (
	"strings"
	"testing"
)

func TestAddSearchResultDeduplicatesEvidence(t *testing.T) {
	state := NewState("what is entropy?")
	state.StartIteration()

	result := SearchResult{
		Query:     "entropy definition",
		Documents: []string{"doc one", "doc two"},
		Metadatas: []map[string]any{{"source": "a"}, {"source": "b"}},
		Distances: []float64{0.1, 0.2},
	}

	state.AddSearchResult(result)
	if got := len(state.AllEvidence); got != 2 {
		t.Fatalf("expected 2 evidence entries, got %d", got)
	}

	// Adding the identical result again must not grow the pool.
	state.AddSearchResult(result)
	if got := len(state.AllEvidence); got != 2 {
		t.Errorf("duplicate merge grew evidence to %d entries", got)
	}
	if got := len(state.AllSearchQueries); got != 1 {
		t.Errorf("expected 1 recorded query, got %d", got)
	}
}

func TestAddSearchResultPreservesInsertionOrder(t *testing.T) {
	state := NewState("q")
	state.StartIteration()

	state.AddSearchResult(SearchResult{Query: "first", Documents: []string{"b", "a"}})
	state.AddSearchResult(SearchResult{Query: "second", Documents: []string{"c", "a"}})

	want := []string{"b", "a", "c"}
	if len(state.AllEvidence) != len(want) {
		t.Fatalf("expected %d evidence entries, got %d", len(want), len(state.AllEvidence))
	}
	for i, doc := range want {
		if state.AllEvidence[i] != doc {
			t.Errorf("evidence[%d] = %q, want %q", i, state.AllEvidence[i], doc)
		}
	}
	if got := state.SearchHistory(); got[0] != "first" || got[1] != "second" {
		t.Errorf("unexpected search history order: %v", got)
	}
}

func TestSearchHistoryReturnsCopy(t *testing.T) {
	state := NewState("q")
	state.StartIteration()
	state.AddSearchResult(SearchResult{Query: "original"})

	history := state.SearchHistory()
	history[0] = "mutated"

	if state.AllSearchQueries[0] != "original" {
		t.Error("mutating the snapshot changed the state")
	}
}

func TestEvidenceSummaryBounded(t *testing.T) {
	state := NewState("q")
	state.StartIteration()

	docs := make([]string, 20)
	for i := range docs {
		docs[i] = strings.Repeat("x", 500)
	}
	state.AddSearchResult(SearchResult{Query: "q", Documents: uniqueDocs(docs)})

	const maxChars = 2000
	summary := state.EvidenceSummary(maxChars)

	lines := strings.Split(summary, "\n\n")
	last := lines[len(lines)-1]
	if !strings.Contains(last, "more pieces of evidence") {
		t.Fatalf("expected an omitted-count suffix, got %q", last)
	}
	body := strings.Join(lines[:len(lines)-1], "\n\n")
	if len(body) > maxChars+len(last) {
		t.Errorf("summary body %d chars exceeds bound %d", len(body), maxChars)
	}
}

func TestEvidenceSummaryDeterministic(t *testing.T) {
	state := NewState("q")
	state.StartIteration()
	state.AddSearchResult(SearchResult{Query: "q", Documents: []string{"alpha", "beta"}})

	first := state.EvidenceSummary(8000)
	second := state.EvidenceSummary(8000)
	if first != second {
		t.Error("evidence summary is not deterministic for fixed input")
	}
	if !strings.HasPrefix(first, "Evidence 1: alpha") {
		t.Errorf("unexpected summary prefix: %q", first)
	}
}

func TestEvidenceSummaryEmpty(t *testing.T) {
	state := NewState("q")
	if got := state.EvidenceSummary(100); got != "No evidence collected yet." {
		t.Errorf("unexpected empty summary: %q", got)
	}
}

// uniqueDocs suffixes each doc with its index so dedup does not collapse them.
func uniqueDocs(docs []string) []string {
	out := make([]string, len(docs))
	for i, doc := range docs {
		out[i] = doc + strings.Repeat("y", i+1)
	}
	return out
}
