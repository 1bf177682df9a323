package research

import "fmt"

// The loop converts every provider-level failure into a safe fallback at the
// call site; these types exist so logs and tests can tell the failure classes
// apart. None of them ever escapes a research session.

// ProviderError wraps a failed LLM call.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("llm %s: %v", e.Op, e.Err) }
func (e *ProviderError) Unwrap() error { return e.Err }

// EmbeddingError wraps a failed query-embedding call. It is fatal for the
// single query that triggered it and nothing else.
type EmbeddingError struct {
	Query string
	Err   error
}

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embed %q: %v", e.Query, e.Err) }
func (e *EmbeddingError) Unwrap() error { return e.Err }

// SearchError wraps a failed vector-store lookup.
type SearchError struct {
	Query string
	Err   error
}

func (e *SearchError) Error() string { return fmt.Sprintf("search %q: %v", e.Query, e.Err) }
func (e *SearchError) Unwrap() error { return e.Err }
