package research

import (
	"context"
	"fmt"
	"log/slog"
)

// Config carries the tunables of a research session. It is built once at
// process start and injected; the engine never reads ambient state.
type Config struct {
	// Model is the chat model name passed to the LLM provider.
	Model string
	// MaxIterations bounds the plan/search/synthesize/reflect loop.
	MaxIterations int
	// ConfidenceThreshold is the self-reported confidence above which the
	// loop may stop when completeness is also high.
	ConfidenceThreshold float64
	// MaxParallelQueries bounds the search fan-out and caps how many of the
	// planned queries are executed per iteration.
	MaxParallelQueries int
	// QueriesPerIteration is how many queries planning asks the LLM for.
	QueriesPerIteration int
	// SearchK is the number of nearest neighbors fetched per query.
	SearchK int
	// MaxEvidenceChunks stops the loop once this many distinct passages have
	// been collected.
	MaxEvidenceChunks int
	// EvidenceMaxChars bounds the evidence summary embedded in prompts.
	EvidenceMaxChars int
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 8
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = 0.75
	}
	if c.MaxParallelQueries <= 0 {
		c.MaxParallelQueries = 3
	}
	if c.QueriesPerIteration <= 0 {
		c.QueriesPerIteration = 5
	}
	if c.SearchK <= 0 {
		c.SearchK = 5
	}
	if c.MaxEvidenceChunks <= 0 {
		c.MaxEvidenceChunks = 15
	}
	if c.EvidenceMaxChars <= 0 {
		c.EvidenceMaxChars = 8000
	}
	return c
}

// Result is what a research session produces. Completed is false only when
// the session was cut short by an unexpected error, in which case Answer
// still holds a user-facing message.
type Result struct {
	Answer        string  `json:"answer"`
	Completed     bool    `json:"completed"`
	Reason        string  `json:"reason"`
	Confidence    float64 `json:"confidence"`
	Iterations    int     `json:"iterations"`
	EvidenceCount int     `json:"evidence_count"`
}

// Engine drives the iterative research loop: plan, search in parallel,
// synthesize an insight, reflect, then decide whether to continue. One engine
// serves one request at a time; concurrent requests get their own state.
type Engine struct {
	cfg      Config
	llm      LLM
	searcher *Searcher
	logger   *slog.Logger

	// OnEvent, when set, is called synchronously at each phase transition.
	OnEvent func(Event)
	// OnStateUpdate, when set, receives a snapshot of the session state after
	// every mutation worth persisting.
	OnStateUpdate func(state ResearchState)
}

func NewEngine(cfg Config, llm LLM, embedder Embedder, index VectorIndex, logger *slog.Logger) *Engine {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		llm:      llm,
		searcher: NewSearcher(embedder, index, cfg, logger),
		logger:   logger,
	}
}

// Research runs one full session and always returns a Result; provider
// failures degrade to fallbacks inside the loop, and anything unexpected is
// caught here and turned into a user-facing error message.
func (e *Engine) Research(ctx context.Context, question string, history []Message) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("research session aborted", "question", question, "panic", r)
			res = Result{
				Answer: fmt.Sprintf("I apologize, but I encountered an error while researching your question: %v", r),
				Reason: "error",
			}
		}
	}()
	return e.run(ctx, question, history)
}

func (e *Engine) run(ctx context.Context, question string, history []Message) Result {
	state := NewState(question)
	e.logger.Info("starting research session", "question", question, "max_iterations", e.cfg.MaxIterations)
	e.emit(Event{Type: EventSessionStart, Message: question})
	e.snapshot(state)

	finalConfidence := 0.0
	reason := "exhausted"

	for iteration := 0; iteration < e.cfg.MaxIterations; iteration++ {
		iter := state.StartIteration()
		e.emit(Event{Type: EventIterationStart, Iteration: iter.Iteration})

		// Plan.
		e.emit(Event{Type: EventPlanning, Iteration: iter.Iteration})
		plan := e.plan(ctx, state)
		iter.Plan = plan

		if !getBool(plan, "needs_search", true) {
			e.logger.Info("plan signals research complete", "iteration", iter.Iteration)
			reason = "no further search needed"
			break
		}

		queries := getStringSlice(plan, "search_queries")
		if len(queries) == 0 {
			queries = []string{question}
		}
		if len(queries) > e.cfg.MaxParallelQueries {
			queries = queries[:e.cfg.MaxParallelQueries]
		}
		e.emit(Event{
			Type:      EventSearchPlanned,
			Iteration: iter.Iteration,
			Queries:   queries,
			Message:   getString(plan, "reasoning", ""),
		})

		// Search.
		e.emit(Event{Type: EventSearching, Iteration: iter.Iteration, Count: len(queries)})
		results := e.searcher.Search(ctx, queries)
		found := 0
		for _, result := range results {
			state.AddSearchResult(result)
			found += len(result.Documents)
		}
		e.logger.Info("search round complete", "iteration", iter.Iteration, "queries", len(queries), "passages", found)
		e.emit(Event{Type: EventSearchComplete, Iteration: iter.Iteration, Count: found, Queries: queries})
		e.snapshot(state)

		// Synthesize.
		e.emit(Event{Type: EventSynthesizing, Iteration: iter.Iteration})
		if insight := e.synthesize(ctx, results, question); insight != "" {
			state.AddInsight(insight)
			e.emit(Event{
				Type:      EventSynthesisComplete,
				Iteration: iter.Iteration,
				Message:   truncate(insight, 200),
			})
		}

		// Reflect.
		e.emit(Event{Type: EventReflecting, Iteration: iter.Iteration})
		reflection := e.reflect(ctx, state, iteration)
		iter.Reflection = reflection
		confidence := getFloat(reflection, "confidence", 0)
		iter.Confidence = confidence
		finalConfidence = confidence
		e.emit(Event{
			Type:       EventReflectionComplete,
			Iteration:  iter.Iteration,
			Confidence: confidence,
			Message:    getString(reflection, "reasoning", ""),
		})
		e.snapshot(state)

		// Termination rules, in priority order.
		needsMore := getBool(reflection, "needs_more_research", true)
		terminationConfidence := getFloat(reflection, "termination_confidence", 0.5)
		completeness := getFloat(reflection, "research_completeness", 0.5)

		if !needsMore && terminationConfidence > 0.7 {
			e.logger.Info("research complete", "iteration", iter.Iteration, "reason", "agent decision")
			reason = "agent decision"
			break
		}
		if confidence >= e.cfg.ConfidenceThreshold && completeness > 0.8 {
			e.logger.Info("research complete", "iteration", iter.Iteration, "reason", "high confidence")
			reason = "high confidence"
			break
		}
		if len(state.AllEvidence) >= e.cfg.MaxEvidenceChunks {
			e.logger.Info("research complete", "iteration", iter.Iteration, "reason", "evidence limit")
			reason = "evidence limit"
			break
		}
	}

	// Final synthesis.
	e.emit(Event{Type: EventGenerating})
	answer := e.finalResponse(ctx, state, history)
	e.emit(Event{
		Type:       EventComplete,
		Iteration:  len(state.Iterations),
		Count:      len(state.AllEvidence),
		Confidence: finalConfidence,
	})
	e.snapshot(state)
	e.logger.Info("research session finished",
		"iterations", len(state.Iterations),
		"evidence", len(state.AllEvidence),
		"insights", len(state.AccumulatedInsights),
		"reason", reason,
	)

	return Result{
		Answer:        answer,
		Completed:     true,
		Reason:        reason,
		Confidence:    finalConfidence,
		Iterations:    len(state.Iterations),
		EvidenceCount: len(state.AllEvidence),
	}
}

func (e *Engine) plan(ctx context.Context, state *ResearchState) map[string]any {
	fallback := map[string]any{
		"reasoning":      "Query planning failed, falling back to the original question",
		"needs_search":   true,
		"search_queries": []any{state.OriginalQuestion},
	}

	response, err := e.llm.Generate(ctx, []Message{
		{Role: "system", Content: planningSystemPrompt},
		{Role: "user", Content: buildPlanningPrompt(state, e.cfg.QueriesPerIteration, e.cfg.MaxIterations, e.cfg.EvidenceMaxChars)},
	}, e.cfg.Model)
	if err != nil {
		e.logger.Warn("query planning failed", "error", &ProviderError{Op: "plan", Err: err})
		return fallback
	}
	return ParseJSONResponse(response, fallback)
}

func (e *Engine) synthesize(ctx context.Context, results []SearchResult, question string) string {
	found := false
	for _, result := range results {
		if len(result.Documents) > 0 {
			found = true
			break
		}
	}
	if !found {
		return ""
	}

	response, err := e.llm.Generate(ctx, []Message{
		{Role: "system", Content: synthesisSystemPrompt},
		{Role: "user", Content: buildSynthesisPrompt(results, question)},
	}, e.cfg.Model)
	if err != nil {
		e.logger.Warn("insight synthesis failed", "error", &ProviderError{Op: "synthesize", Err: err})
		return ""
	}
	return response
}

func (e *Engine) reflect(ctx context.Context, state *ResearchState, iteration int) map[string]any {
	fallback := map[string]any{
		"confidence":             0.5,
		"reasoning":              "Reflection failed, using conservative assessment",
		"needs_more_research":    iteration < 2,
		"research_completeness":  0.5,
		"termination_confidence": 0.3,
	}

	response, err := e.llm.Generate(ctx, []Message{
		{Role: "system", Content: reflectionSystemPrompt},
		{Role: "user", Content: buildReflectionPrompt(state, e.cfg.MaxIterations, e.cfg.EvidenceMaxChars)},
	}, e.cfg.Model)
	if err != nil {
		e.logger.Warn("reflection failed", "error", &ProviderError{Op: "reflect", Err: err})
		return fallback
	}
	return ParseJSONResponse(response, fallback)
}

func (e *Engine) emit(event Event) {
	if e.OnEvent != nil {
		e.OnEvent(event)
	}
}

func (e *Engine) snapshot(state *ResearchState) {
	if e.OnStateUpdate != nil {
		e.OnStateUpdate(*state)
	}
}
