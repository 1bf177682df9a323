package research

import (
	"fmt"
	"strings"
)

// SearchResult holds the passages retrieved for a single query. Documents,
// Metadatas and Distances are parallel slices of equal length, ordered by
// ascending distance.
type SearchResult struct {
	Query     string           `json:"query"`
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
	Distances []float64        `json:"distances"`
}

// IterationRecord captures one full plan/search/synthesize/reflect cycle.
// Records are appended to the session state as the loop runs and are not
// touched again once the next iteration starts.
type IterationRecord struct {
	Iteration  int            `json:"iteration"`
	Plan       map[string]any `json:"plan,omitempty"`
	Searches   []SearchResult `json:"searches,omitempty"`
	Reflection map[string]any `json:"reflection,omitempty"`
	Confidence float64        `json:"confidence"`
}

// ResearchState accumulates everything gathered during one research session.
// A state belongs to exactly one engine run and is discarded when the final
// answer has been produced; it is never shared between sessions.
type ResearchState struct {
	OriginalQuestion    string            `json:"original_question"`
	Iterations          []IterationRecord `json:"iterations"`
	AllEvidence         []string          `json:"all_evidence"`
	AllSearchQueries    []string          `json:"all_search_queries"`
	AccumulatedInsights []string          `json:"accumulated_insights"`

	seenEvidence map[string]struct{}
	seenQueries  map[string]struct{}
}

func NewState(question string) *ResearchState {
	return &ResearchState{
		OriginalQuestion: question,
		seenEvidence:     make(map[string]struct{}),
		seenQueries:      make(map[string]struct{}),
	}
}

// StartIteration appends a fresh record and returns a pointer to it. The
// pointer stays valid until the next StartIteration call.
func (s *ResearchState) StartIteration() *IterationRecord {
	s.Iterations = append(s.Iterations, IterationRecord{Iteration: len(s.Iterations) + 1})
	return &s.Iterations[len(s.Iterations)-1]
}

// AddSearchResult records the result on the current iteration and merges its
// documents into the global evidence pool. Duplicate passages (exact string
// match) are kept once, in first-seen order, as are queries.
func (s *ResearchState) AddSearchResult(result SearchResult) {
	if n := len(s.Iterations); n > 0 {
		s.Iterations[n-1].Searches = append(s.Iterations[n-1].Searches, result)
	}

	for _, doc := range result.Documents {
		if _, ok := s.seenEvidence[doc]; ok {
			continue
		}
		s.seenEvidence[doc] = struct{}{}
		s.AllEvidence = append(s.AllEvidence, doc)
	}

	if _, ok := s.seenQueries[result.Query]; !ok {
		s.seenQueries[result.Query] = struct{}{}
		s.AllSearchQueries = append(s.AllSearchQueries, result.Query)
	}
}

// AddInsight appends a non-empty synthesis to the accumulated insights.
func (s *ResearchState) AddInsight(insight string) {
	if insight == "" {
		return
	}
	s.AccumulatedInsights = append(s.AccumulatedInsights, insight)
}

// EvidenceSummary renders the evidence pool as a prompt-sized block. Entries
// are emitted in insertion order and the output is cut off once maxChars is
// reached, with a single trailing line counting what was omitted.
func (s *ResearchState) EvidenceSummary(maxChars int) string {
	if len(s.AllEvidence) == 0 {
		return "No evidence collected yet."
	}

	var parts []string
	total := 0
	for i, evidence := range s.AllEvidence {
		entry := fmt.Sprintf("Evidence %d: %s", i+1, evidence)
		if total+len(entry) > maxChars {
			parts = append(parts, fmt.Sprintf("... and %d more pieces of evidence", len(s.AllEvidence)-i))
			break
		}
		parts = append(parts, entry)
		total += len(entry)
	}

	return strings.Join(parts, "\n\n")
}

// SearchHistory returns a copy of every query tried so far, in the order they
// were first attempted.
func (s *ResearchState) SearchHistory() []string {
	history := make([]string, len(s.AllSearchQueries))
	copy(history, s.AllSearchQueries)
	return history
}
