package research

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

// scriptedLLM answers each phase from its own list, dispatching on the system
// prompt. Running past the end of a list is an error so tests notice
// unexpected extra calls.
type scriptedLLM struct {
	plans       []string
	syntheses   []string
	reflections []string
	finals      []string

	planIdx, synthIdx, reflectIdx, finalIdx int

	failFinal bool
	panicOn   string
}

func (s *scriptedLLM) next(list []string, idx *int) (string, error) {
	if *idx >= len(list) {
		return "", errors.New("no scripted response available")
	}
	resp := list[*idx]
	*idx++
	return resp, nil
}

func (s *scriptedLLM) Generate(_ context.Context, messages []Message, _ string) (string, error) {
	system := messages[0].Content
	if s.panicOn != "" && system == s.panicOn {
		panic("scripted panic: provider exploded")
	}
	switch system {
	case planningSystemPrompt:
		return s.next(s.plans, &s.planIdx)
	case synthesisSystemPrompt:
		return s.next(s.syntheses, &s.synthIdx)
	case reflectionSystemPrompt:
		return s.next(s.reflections, &s.reflectIdx)
	case finalSystemPrompt:
		if s.failFinal {
			return "", errors.New("provider down")
		}
		return s.next(s.finals, &s.finalIdx)
	}
	return "", errors.New("unknown system prompt")
}

func newTestEngine(llm LLM, index *stubIndex) *Engine {
	return NewEngine(Config{MaxIterations: 8}, llm, &stubEmbedder{}, index, slog.New(slog.DiscardHandler))
}

func TestEngineStopsWhenPlanNeedsNoSearch(t *testing.T) {
	llm := &scriptedLLM{
		plans:  []string{`{"reasoning": "question already answered", "needs_search": false, "search_queries": []}`},
		finals: []string{"final answer"},
	}
	index := &stubIndex{docsPerQuery: 2}
	engine := newTestEngine(llm, index)

	result := engine.Research(context.Background(), "what is dharma?", nil)

	if !result.Completed {
		t.Fatalf("expected completed session, got %+v", result)
	}
	if result.Iterations != 1 {
		t.Errorf("expected exactly 1 iteration, got %d", result.Iterations)
	}
	if index.calls.Load() != 0 {
		t.Errorf("no search should run when the plan opts out, got %d store calls", index.calls.Load())
	}
	if llm.synthIdx != 0 || llm.reflectIdx != 0 {
		t.Error("synthesis/reflection should be skipped when the plan opts out")
	}
	if result.Reason != "no further search needed" {
		t.Errorf("unexpected reason %q", result.Reason)
	}
	if !strings.Contains(result.Answer, "couldn't find relevant information") {
		t.Errorf("empty session should apologize, got %q", result.Answer)
	}
}

func TestEngineTerminationPriorityHighConfidence(t *testing.T) {
	// needs_more_research=true blocks the agent-decision rule even though
	// confidence and completeness are high, so the high-confidence rule must
	// be the one that fires.
	llm := &scriptedLLM{
		plans:       []string{`{"needs_search": true, "search_queries": ["q1", "q2"]}`},
		syntheses:   []string{"an insight"},
		reflections: []string{`{"confidence": 0.9, "needs_more_research": true, "research_completeness": 0.9, "termination_confidence": 0.5}`},
		finals:      []string{"the answer"},
	}
	engine := newTestEngine(llm, &stubIndex{docsPerQuery: 2})

	result := engine.Research(context.Background(), "question", nil)

	if result.Reason != "high confidence" {
		t.Errorf("expected high-confidence termination, got %q", result.Reason)
	}
	if result.Iterations != 1 {
		t.Errorf("expected 1 iteration, got %d", result.Iterations)
	}
	if result.Confidence != 0.9 {
		t.Errorf("confidence = %v", result.Confidence)
	}
	if result.Answer != "the answer" {
		t.Errorf("answer = %q", result.Answer)
	}
}

func TestEngineAgentDecisionTermination(t *testing.T) {
	llm := &scriptedLLM{
		plans:       []string{`{"needs_search": true, "search_queries": ["q1"]}`},
		syntheses:   []string{"insight"},
		reflections: []string{`{"confidence": 0.4, "needs_more_research": false, "research_completeness": 0.6, "termination_confidence": 0.8}`},
		finals:      []string{"answer"},
	}
	engine := newTestEngine(llm, &stubIndex{docsPerQuery: 1})

	result := engine.Research(context.Background(), "question", nil)
	if result.Reason != "agent decision" {
		t.Errorf("expected agent-decision termination, got %q", result.Reason)
	}
}

func TestEngineEvidenceLimitTermination(t *testing.T) {
	llm := &scriptedLLM{
		plans: []string{
			`{"needs_search": true, "search_queries": ["a", "b", "c"]}`,
			`{"needs_search": true, "search_queries": ["d", "e", "f"]}`,
		},
		syntheses: []string{"insight 1", "insight 2"},
		reflections: []string{
			`{"confidence": 0.2, "needs_more_research": true, "research_completeness": 0.2, "termination_confidence": 0.1}`,
			`{"confidence": 0.2, "needs_more_research": true, "research_completeness": 0.2, "termination_confidence": 0.1}`,
		},
		finals: []string{"answer"},
	}
	// 3 queries x 5 distinct docs reach the 15-chunk limit in one round.
	engine := newTestEngine(llm, &stubIndex{docsPerQuery: 5})

	result := engine.Research(context.Background(), "question", nil)
	if result.Reason != "evidence limit" {
		t.Errorf("expected evidence-limit termination, got %q", result.Reason)
	}
	if result.Iterations != 1 {
		t.Errorf("limit should fire after the first round, got %d iterations", result.Iterations)
	}
	if result.EvidenceCount < 15 {
		t.Errorf("evidence count %d below limit", result.EvidenceCount)
	}
}

func TestEngineEvidenceBoundPerIteration(t *testing.T) {
	llm := &scriptedLLM{
		plans:       []string{`{"needs_search": true, "search_queries": ["a", "b", "c"]}`},
		syntheses:   []string{"insight"},
		reflections: []string{`{"confidence": 0.9, "needs_more_research": false, "research_completeness": 0.9, "termination_confidence": 0.9}`},
		finals:      []string{"answer"},
	}
	engine := newTestEngine(llm, &stubIndex{docsPerQuery: 2})

	result := engine.Research(context.Background(), "question", nil)
	if result.EvidenceCount > 6 {
		t.Errorf("3 queries x 2 docs should yield at most 6 evidence entries, got %d", result.EvidenceCount)
	}
}

func TestEngineFallbackPlanOnGarbage(t *testing.T) {
	llm := &scriptedLLM{
		plans:       []string{"I refuse to emit JSON today."},
		syntheses:   []string{"insight"},
		reflections: []string{`{"confidence": 0.9, "needs_more_research": false, "research_completeness": 0.9, "termination_confidence": 0.9}`},
		finals:      []string{"answer"},
	}
	var planned []string
	engine := newTestEngine(llm, &stubIndex{docsPerQuery: 1})
	engine.OnEvent = func(event Event) {
		if event.Type == EventSearchPlanned {
			planned = event.Queries
		}
	}

	engine.Research(context.Background(), "the original question", nil)

	if len(planned) != 1 || planned[0] != "the original question" {
		t.Errorf("fallback plan should search the original question, got %v", planned)
	}
}

func TestEngineFallbackReflectionKeepsLooping(t *testing.T) {
	// Unparseable reflections fall back to needs_more_research = iteration<2,
	// so the loop should run three iterations and then stop by agent
	// decision... except the fallback's termination_confidence is 0.3, which
	// blocks that rule; it exhausts MaxIterations instead.
	llm := &scriptedLLM{
		plans: []string{
			`{"needs_search": true, "search_queries": ["a"]}`,
			`{"needs_search": true, "search_queries": ["b"]}`,
			`{"needs_search": true, "search_queries": ["c"]}`,
		},
		syntheses:   []string{"i1", "i2", "i3"},
		reflections: []string{"garbage", "garbage", "garbage"},
		finals:      []string{"answer"},
	}
	engine := NewEngine(Config{MaxIterations: 3}, llm, &stubEmbedder{}, &stubIndex{docsPerQuery: 1}, slog.New(slog.DiscardHandler))

	result := engine.Research(context.Background(), "question", nil)
	if result.Iterations != 3 {
		t.Errorf("expected 3 iterations, got %d", result.Iterations)
	}
	if result.Reason != "exhausted" {
		t.Errorf("expected exhausted termination, got %q", result.Reason)
	}
	if result.Confidence != 0.5 {
		t.Errorf("fallback reflection confidence should be 0.5, got %v", result.Confidence)
	}
}

func TestEngineRecoversFromPanic(t *testing.T) {
	llm := &scriptedLLM{panicOn: planningSystemPrompt}
	engine := newTestEngine(llm, &stubIndex{docsPerQuery: 1})

	result := engine.Research(context.Background(), "question", nil)

	if result.Completed {
		t.Error("a panicked session must not report completion")
	}
	if result.Reason != "error" {
		t.Errorf("reason = %q", result.Reason)
	}
	if !strings.Contains(result.Answer, "I apologize") || !strings.Contains(result.Answer, "provider exploded") {
		t.Errorf("error answer should carry the failure text, got %q", result.Answer)
	}
}

func TestEngineEmitsPhaseEvents(t *testing.T) {
	llm := &scriptedLLM{
		plans:       []string{`{"needs_search": true, "search_queries": ["a"]}`},
		syntheses:   []string{"insight"},
		reflections: []string{`{"confidence": 0.9, "needs_more_research": false, "research_completeness": 0.9, "termination_confidence": 0.9}`},
		finals:      []string{"answer"},
	}
	engine := newTestEngine(llm, &stubIndex{docsPerQuery: 1})

	var seen []EventType
	engine.OnEvent = func(event Event) { seen = append(seen, event.Type) }

	engine.Research(context.Background(), "question", nil)

	want := []EventType{
		EventSessionStart, EventIterationStart, EventPlanning, EventSearchPlanned,
		EventSearching, EventSearchComplete, EventSynthesizing, EventSynthesisComplete,
		EventReflecting, EventReflectionComplete, EventGenerating, EventComplete,
	}
	if len(seen) != len(want) {
		t.Fatalf("got %d events %v, want %d", len(seen), seen, len(want))
	}
	for i, typ := range want {
		if seen[i] != typ {
			t.Errorf("event[%d] = %q, want %q", i, seen[i], typ)
		}
	}
}

func TestEngineCapsPlannedQueries(t *testing.T) {
	llm := &scriptedLLM{
		plans:       []string{`{"needs_search": true, "search_queries": ["a", "b", "c", "d", "e"]}`},
		syntheses:   []string{"insight"},
		reflections: []string{`{"confidence": 0.9, "needs_more_research": false, "research_completeness": 0.9, "termination_confidence": 0.9}`},
		finals:      []string{"answer"},
	}
	engine := newTestEngine(llm, &stubIndex{docsPerQuery: 1})

	var executed []string
	engine.OnEvent = func(event Event) {
		if event.Type == EventSearchComplete {
			executed = event.Queries
		}
	}

	engine.Research(context.Background(), "question", nil)

	if len(executed) != 3 {
		t.Errorf("expected queries capped at the parallelism limit (3), got %d: %v", len(executed), executed)
	}
}
