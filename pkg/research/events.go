package research

// EventType identifies a phase transition in a research session.
type EventType string

const (
	EventSessionStart       EventType = "session_start"
	EventIterationStart     EventType = "iteration_start"
	EventPlanning           EventType = "planning"
	EventSearchPlanned      EventType = "search_planned"
	EventSearching          EventType = "searching"
	EventSearchComplete     EventType = "search_complete"
	EventSynthesizing       EventType = "synthesizing"
	EventSynthesisComplete  EventType = "synthesis_complete"
	EventReflecting         EventType = "reflecting"
	EventReflectionComplete EventType = "reflection_complete"
	EventGenerating         EventType = "generating"
	EventComplete           EventType = "complete"
)

// Event is delivered synchronously to the engine's OnEvent callback at each
// phase transition. Consumers must return quickly; the session does not
// advance while the callback runs.
type Event struct {
	Type       EventType `json:"type"`
	Iteration  int       `json:"iteration,omitempty"`
	Message    string    `json:"message,omitempty"`
	Queries    []string  `json:"queries,omitempty"`
	Count      int       `json:"count,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}
