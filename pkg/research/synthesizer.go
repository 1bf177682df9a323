package research

import (
	"context"
	"fmt"
	"strings"
)

// finalResponse turns the accumulated insights into the answer returned to
// the user. The LLM gets one shot; if it fails, the insights themselves are
// concatenated so a session that completed any iteration still produces
// output.
func (e *Engine) finalResponse(ctx context.Context, state *ResearchState, history []Message) string {
	if len(state.AccumulatedInsights) == 0 && len(state.AllEvidence) == 0 {
		return "I couldn't find relevant information to answer your question."
	}

	response, err := e.llm.Generate(ctx, []Message{
		{Role: "system", Content: finalSystemPrompt},
		{Role: "user", Content: buildFinalPrompt(state, history)},
	}, e.cfg.Model)
	if err != nil {
		e.logger.Warn("final synthesis failed", "error", &ProviderError{Op: "final response", Err: err})
		return fallbackResponse(state)
	}
	return strings.TrimSpace(response)
}

func fallbackResponse(state *ResearchState) string {
	if len(state.AccumulatedInsights) == 0 {
		return "I couldn't find relevant information to answer your question."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on my research into %q, here are the key insights I discovered:\n\n", state.OriginalQuestion)
	for i, insight := range state.AccumulatedInsights {
		fmt.Fprintf(&b, "Research Phase %d: %s\n\n", i+1, insight)
	}
	return strings.TrimSpace(b.String())
}
