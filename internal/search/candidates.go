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

var listMarkerPattern = regexp.MustCompile(`^\s*(?:\d{1,3}[.)]|[-*•])\s+`)

func (h *QueryHandler) generateRecommendation(ctx context.Context, query string, analysis domain.QueryAnalysis) domain.SearchResponse {
	contextJSON, err := json.Marshal(analysis.AdditionalContext)
	if err != nil {
		contextJSON = []byte("{}")
	}
	prompt := fmt.Sprintf(`Generate a list of movie titles that match this recommendation request:
Context: %s
Additional Context: %s

Provide a comma-separated list of movie titles.`, analysis.Intent, contextJSON)

	titles := h.candidateTitles(ctx, "recommend", query, prompt)
	return h.resolveAndRank(ctx, query, titles, "Recommendations based on "+analysis.Intent)
}

func (h *QueryHandler) findMoviesByTheme(ctx context.Context, query string, analysis domain.QueryAnalysis) domain.SearchResponse {
	prompt := fmt.Sprintf(`Find movie titles that match this theme:
Theme: %s
Intent: %s

Provide a comma-separated list of movie titles.`, strings.Join(analysis.Keywords, " "), analysis.Intent)

	titles := h.candidateTitles(ctx, "theme", query, prompt)
	return h.resolveAndRank(ctx, query, titles, "Movies related to theme: "+analysis.Intent)
}

func (h *QueryHandler) findMovieByPlot(ctx context.Context, query string, analysis domain.QueryAnalysis) domain.SearchResponse {
	prompt := fmt.Sprintf(`Find movie titles that match this plot description:
Plot: %s

Provide a comma-separated list of movie titles.`, analysis.Intent)

	titles := h.candidateTitles(ctx, "plot", query, prompt)
	return h.resolveAndRank(ctx, query, titles, "Movies matching plot description")
}

// performGenericSearch searches the catalogs with the keywords directly and
// makes no LLM call before fetching.
func (h *QueryHandler) performGenericSearch(ctx context.Context, query string, analysis domain.QueryAnalysis) domain.SearchResponse {
	text := strings.TrimSpace(strings.Join(analysis.Keywords, " "))
	if text == "" {
		text = query
	}
	return h.resolveAndRank(ctx, query, []string{text}, "Generic movie search results")
}

func (h *QueryHandler) resolveAndRank(ctx context.Context, query string, titles []string, explanation string) domain.SearchResponse {
	results := h.ResolveTitles(ctx, titles)
	ranked := h.VerifyAndRankResults(ctx, results, query)
	return domain.SearchResponse{
		Results:     ranked,
		Explanation: explanation,
	}
}

func (h *QueryHandler) candidateTitles(ctx context.Context, operation, query, prompt string) []string {
	text, err := h.generate(ctx, operation, prompt)
	if err != nil {
		h.logger.Warn("candidate generation failed",
			slog.String("operation", operation),
			slog.String("query", truncateQuery(query)),
			slog.String("error", err.Error()),
		)
		return nil
	}
	titles := parseTitleList(text, h.cfg.MaxTitlesToSearch)
	h.logger.Debug("candidate titles generated",
		slog.String("operation", operation),
		slog.Int("titles", len(titles)),
	)
	return titles
}

// parseTitleList splits a comma-separated LLM answer into at most limit
// distinct titles. Newlines are treated as separators too.
func parseTitleList(text string, limit int) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	titles := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		title := cleanTitle(field)
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		titles = append(titles, title)
		if limit > 0 && len(titles) == limit {
			break
		}
	}
	return titles
}

// cleanTitle strips list numbering, bullets and wrapping quotes or emphasis.
func cleanTitle(raw string) string {
	title := listMarkerPattern.ReplaceAllString(strings.TrimSpace(raw), "")
	title = strings.Trim(title, " \t\r\"'`*_")
	return strings.TrimSpace(title)
}
