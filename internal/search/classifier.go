package search

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	json "github.com/goccy/go-json"

	"moviediscovery/searchservice/internal/domain"
)

const fallbackIntent = "general movie search"

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

type analysisPayload struct {
	Type              string         `json:"type"`
	Intent            string         `json:"intent"`
	Keywords          []string       `json:"keywords"`
	AdditionalContext map[string]any `json:"additionalContext"`
}

// AnalyzeQueryIntent classifies query with the LLM. It always returns a usable
// analysis: any call, parse or shape failure yields FallbackQueryAnalysis.
func (h *QueryHandler) AnalyzeQueryIntent(ctx context.Context, query string) domain.QueryAnalysis {
	text, err := h.generate(ctx, "classify", buildClassifierPrompt(query))
	if err != nil {
		h.logger.Warn("query intent analysis failed, using fallback",
			slog.String("query", truncateQuery(query)),
			slog.String("error", err.Error()),
		)
		return FallbackQueryAnalysis(query)
	}
	analysis, ok := decodeQueryAnalysis(text, query)
	if !ok {
		h.logger.Warn("query intent response unusable, using fallback",
			slog.String("query", truncateQuery(query)),
			slog.String("response", truncateQuery(strings.TrimSpace(text))),
		)
		return FallbackQueryAnalysis(query)
	}
	return analysis
}

// FallbackQueryAnalysis is the deterministic analysis used whenever the
// classifier cannot produce one.
func FallbackQueryAnalysis(query string) domain.QueryAnalysis {
	keywords := strings.Fields(query)
	if keywords == nil {
		keywords = []string{}
	}
	return domain.QueryAnalysis{
		Type:              domain.QueryTypeGenericSearch,
		Intent:            fallbackIntent,
		Keywords:          keywords,
		AdditionalContext: map[string]any{},
	}
}

func decodeQueryAnalysis(text, query string) (domain.QueryAnalysis, bool) {
	raw, ok := extractJSONObject(text)
	if !ok {
		return domain.QueryAnalysis{}, false
	}
	var payload analysisPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.QueryAnalysis{}, false
	}
	if strings.TrimSpace(payload.Type) == "" && strings.TrimSpace(payload.Intent) == "" {
		return domain.QueryAnalysis{}, false
	}

	analysis := domain.QueryAnalysis{
		Type:              domain.ParseQueryType(payload.Type),
		Intent:            strings.TrimSpace(payload.Intent),
		Keywords:          make([]string, 0, len(payload.Keywords)),
		AdditionalContext: payload.AdditionalContext,
	}
	if analysis.Intent == "" {
		analysis.Intent = query
	}
	for _, keyword := range payload.Keywords {
		if keyword = strings.TrimSpace(keyword); keyword != "" {
			analysis.Keywords = append(analysis.Keywords, keyword)
		}
	}
	if analysis.AdditionalContext == nil {
		analysis.AdditionalContext = map[string]any{}
	}
	return analysis, true
}

// extractJSONObject pulls a JSON object out of free text. The outermost brace
// span is tried first; when it does not parse, each balanced span is tried in
// order and the first valid one wins.
func extractJSONObject(text string) (string, bool) {
	if candidate := jsonObjectPattern.FindString(text); candidate != "" && json.Valid([]byte(candidate)) {
		return candidate, true
	}
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := balancedObjectEnd(text, start); end > start {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// balancedObjectEnd returns the index of the brace closing the object opened at
// start, skipping braces inside string literals, or -1.
func balancedObjectEnd(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func buildClassifierPrompt(query string) string {
	return fmt.Sprintf(`Analyze this movie search query in detail:
Query: %q

Respond with a single JSON object with these fields:
- "type": one of "recommendation", "specific_theme", "plot_description", "generic_search"
- "intent": a detailed description of the user's intent
- "keywords": an array of relevant keywords
- "additionalContext": an object with any extra contextual information`, query)
}
