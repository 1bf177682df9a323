package research

import (
	"encoding/json"
	"strings"
)

// ParseJSONResponse extracts and parses the JSON object an LLM was asked to
// produce. Models wrap their JSON in prose or markdown fences more often than
// not, so the extraction tries a fenced ```json block first and falls back to
// the first '{' .. last '}' span. If nothing parses, the supplied fallback is
// returned (copied, not mutated) with "_parse_error" and "_original_response"
// added for diagnostics. This function never fails.
func ParseJSONResponse(response string, fallback map[string]any) map[string]any {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err != nil {
		out := make(map[string]any, len(fallback)+2)
		for k, v := range fallback {
			out[k] = v
		}
		out["_parse_error"] = err.Error()
		out["_original_response"] = response
		return out
	}
	return parsed
}

func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if start := strings.Index(response, "```json"); start >= 0 {
		rest := response[start+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		return response[start : end+1]
	}
	return response
}

// Typed accessors for the loosely-typed maps ParseJSONResponse produces.
// LLMs are sloppy about number/bool types, so these are forgiving.

func getString(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return def
}

func getFloat(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return def
}

func getBool(m map[string]any, key string, def bool) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes":
			return true
		case "false", "no":
			return false
		}
	}
	return def
}

func getStringSlice(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
