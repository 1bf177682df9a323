package research

import "testing"

func TestParseJSONResponsePlainObject(t *testing.T) {
	got := ParseJSONResponse(`{"confidence": 0.8, "needs_more_research": false}`, nil)
	if getFloat(got, "confidence", 0) != 0.8 {
		t.Errorf("confidence = %v", got["confidence"])
	}
	if getBool(got, "needs_more_research", true) {
		t.Error("needs_more_research should parse as false")
	}
}

func TestParseJSONResponseFencedBlock(t *testing.T) {
	response := "Here is the plan:\n```json\n{\"search_queries\": [\"a\", \"b\"]}\n```\nDone."
	got := ParseJSONResponse(response, nil)
	queries := getStringSlice(got, "search_queries")
	if len(queries) != 2 || queries[0] != "a" || queries[1] != "b" {
		t.Errorf("unexpected queries: %v", queries)
	}
}

func TestParseJSONResponseEmbeddedSpan(t *testing.T) {
	response := `The model says {"needs_search": true} which should be extracted.`
	got := ParseJSONResponse(response, nil)
	if !getBool(got, "needs_search", false) {
		t.Errorf("expected needs_search=true, got %v", got)
	}
}

func TestParseJSONResponseFallback(t *testing.T) {
	fallback := map[string]any{"x": 1}
	got := ParseJSONResponse("not json at all", fallback)

	if got["x"] != 1 {
		t.Errorf("fallback value lost: %v", got["x"])
	}
	if s, ok := got["_parse_error"].(string); !ok || s == "" {
		t.Errorf("expected non-empty _parse_error, got %v", got["_parse_error"])
	}
	if got["_original_response"] != "not json at all" {
		t.Errorf("_original_response = %v", got["_original_response"])
	}
	if _, ok := fallback["_parse_error"]; ok {
		t.Error("fallback map was mutated")
	}
}

func TestGetAccessors(t *testing.T) {
	m := map[string]any{
		"f":    1.5,
		"b":    "true",
		"s":    "text",
		"list": []any{"one", 2, "three"},
	}

	if getFloat(m, "f", 0) != 1.5 {
		t.Error("getFloat failed on float64")
	}
	if getFloat(m, "missing", 0.3) != 0.3 {
		t.Error("getFloat default not applied")
	}
	if !getBool(m, "b", false) {
		t.Error("getBool should accept the string \"true\"")
	}
	if getString(m, "s", "") != "text" {
		t.Error("getString failed")
	}
	if got := getStringSlice(m, "list"); len(got) != 2 || got[0] != "one" || got[1] != "three" {
		t.Errorf("getStringSlice should skip non-strings, got %v", got)
	}
}
