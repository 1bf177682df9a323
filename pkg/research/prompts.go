package research

import (
	"fmt"
	"strings"
)

const (
	planningSystemPrompt = "You are a deep research strategist. You plan focused searches over an " +
		"indexed document corpus. Be thorough and avoid redundant queries."

	synthesisSystemPrompt = "You are a research analyst specializing in synthesis of retrieved source " +
		"material. Provide clear, well-grounded insights rather than summaries."

	reflectionSystemPrompt = "You are a research depth assessor. Balance thoroughness with practical " +
		"completion and be honest about gaps in the evidence."

	finalSystemPrompt = "You are a researcher presenting the findings of an extensive literature " +
		"search. Your responses synthesize the collected insights into a clear, complete answer."
)

func buildPlanningPrompt(state *ResearchState, queriesPerIteration, maxIterations, evidenceMaxChars int) string {
	history := state.SearchHistory()
	historyText := "None yet."
	if len(history) > 0 {
		historyText = "- " + strings.Join(history, "\n- ")
	}

	insightsSection := `This is the initial research phase. Generate diverse queries that:
1. Explore different aspects and dimensions of the question
2. Seek both background context and specific details
3. Use varied terminology (synonyms, domain terms, related concepts)
`
	if len(state.AccumulatedInsights) > 0 {
		insightsSection = fmt.Sprintf(`ACCUMULATED INSIGHTS FROM PREVIOUS RESEARCH:
- %s

Based on these insights, generate queries that:
1. Explore concepts mentioned but not fully explained
2. Seek deeper understanding or differing viewpoints
3. Fill the gaps previous iterations left open
`, strings.Join(lastN(state.AccumulatedInsights, 3), "\n- "))
	}

	return fmt.Sprintf(`You are planning the next round of searches over an indexed document corpus.

ORIGINAL QUESTION: %s

CURRENT EVIDENCE SUMMARY:
%s

PREVIOUS SEARCH QUERIES:
%s

%s
Current iteration: %d of %d

Your task: decide whether more searching is needed, and if so generate %d diverse, specific search queries. Each query should be specific enough to retrieve relevant passages and must not repeat a previous query.

Respond in JSON format:
{
    "reasoning": "Your strategic thinking about what still needs investigation",
    "needs_search": true,
    "search_queries": ["query1", "query2"]
}

Set "needs_search" to false only when the evidence already answers the question.`,
		state.OriginalQuestion,
		state.EvidenceSummary(evidenceMaxChars),
		historyText,
		insightsSection,
		len(state.Iterations), maxIterations,
		queriesPerIteration,
	)
}

func buildSynthesisPrompt(results []SearchResult, question string) string {
	var passages []string
	for _, result := range results {
		// Top matches only; the full tail adds little and costs context.
		for i, doc := range result.Documents {
			if i >= 3 {
				break
			}
			if doc == "" {
				continue
			}
			source := "unknown"
			if i < len(result.Metadatas) {
				if s, ok := result.Metadatas[i]["source"].(string); ok && s != "" {
					source = s
				}
			}
			passages = append(passages, fmt.Sprintf("[%s] (query: %q): %s", source, result.Query, doc))
		}
	}
	if len(passages) > 10 {
		passages = passages[:10]
	}

	return fmt.Sprintf(`Synthesize the passages retrieved in this research round into coherent insights.

ORIGINAL RESEARCH QUESTION: %s

RETRIEVED PASSAGES:
%s

Focus on:
1. Key concepts and themes that emerge
2. How the passages relate to or contradict each other
3. What the passages contribute toward answering the question
4. Concepts mentioned here that deserve deeper exploration

Write a flowing, comprehensive analysis, not bullet points. Synthesize; do not merely summarize.`,
		question,
		strings.Join(passages, "\n\n"),
	)
}

func buildReflectionPrompt(state *ResearchState, maxIterations, evidenceMaxChars int) string {
	insightsSection := ""
	if len(state.AccumulatedInsights) > 0 {
		insightsSection = fmt.Sprintf("ACCUMULATED INSIGHTS FROM RESEARCH:\n- %s\n\n",
			strings.Join(lastN(state.AccumulatedInsights, 3), "\n- "))
	}

	return fmt.Sprintf(`You are evaluating the completeness of research on a question.

ORIGINAL QUESTION: %s

%sCURRENT EVIDENCE SUMMARY:
%s

SEARCH QUERIES USED:
- %s

RESEARCH CONTEXT:
- Iterations completed: %d of %d
- Evidence collected: %d passages

Assess how thoroughly the question has been answered, what remains unexplored, and whether research should continue.

Respond in JSON format:
{
    "confidence": 0.0,
    "reasoning": "Detailed reasoning for your assessment",
    "needs_more_research": true,
    "research_completeness": 0.0,
    "termination_confidence": 0.0
}

All numeric fields range from 0.0 to 1.0. "termination_confidence" is how certain you are that stopping now is the right call.`,
		state.OriginalQuestion,
		insightsSection,
		state.EvidenceSummary(evidenceMaxChars),
		strings.Join(state.SearchHistory(), "\n- "),
		len(state.Iterations), maxIterations,
		len(state.AllEvidence),
	)
}

func buildFinalPrompt(state *ResearchState, history []Message) string {
	var insights []string
	for i, insight := range state.AccumulatedInsights {
		insights = append(insights, fmt.Sprintf("=== Research Iteration %d ===\n%s", i+1, insight))
	}
	insightsText := "No specific insights were generated."
	if len(insights) > 0 {
		insightsText = strings.Join(insights, "\n\n")
	}

	chatContext := ""
	if len(history) > 0 {
		var turns []string
		for _, m := range lastNMessages(history, 3) {
			turns = append(turns, fmt.Sprintf("%s: %s", m.Role, truncate(m.Content, 200)))
		}
		chatContext = "RECENT CONVERSATION CONTEXT:\n" + strings.Join(turns, "\n") + "\n\n"
	}

	return fmt.Sprintf(`You are writing the final answer after deep research through an indexed document corpus.

%sCURRENT QUESTION: %s

RESEARCH INSIGHTS FROM %d ITERATIONS:
%s

Drawing from %d collected passages, provide a complete, well-structured response that:
1. Directly answers the question with clarity and depth
2. Synthesizes the insights rather than listing them
3. Acknowledges complexity where sources disagree
4. Does not mention the research process itself

Be comprehensive yet accessible.`,
		chatContext,
		state.OriginalQuestion,
		len(state.Iterations),
		insightsText,
		len(state.AllEvidence),
	)
}

func lastN(items []string, n int) []string {
	if len(items) > n {
		items = items[len(items)-n:]
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = truncate(item, 200)
	}
	return out
}

func lastNMessages(msgs []Message, n int) []Message {
	if len(msgs) > n {
		return msgs[len(msgs)-n:]
	}
	return msgs
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
