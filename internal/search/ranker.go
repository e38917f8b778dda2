package search

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"moviediscovery/searchservice/internal/domain"
)

var trailingYearPattern = regexp.MustCompile(`\s*\(\d{4}\)\s*$`)

// VerifyAndRankResults asks the LLM to order results by relevance to query.
// Results the LLM does not mention keep their relative order after the ranked
// ones. On any failure the input order is returned unchanged.
func (h *QueryHandler) VerifyAndRankResults(ctx context.Context, results []domain.MovieRecord, query string) []domain.MovieRecord {
	if len(results) < 2 || h.llm == nil {
		return results
	}

	text, err := h.generate(ctx, "rank", buildRankingPrompt(results, query))
	if err != nil {
		h.logger.Warn("result ranking failed, keeping catalog order",
			slog.String("query", truncateQuery(query)),
			slog.Int("results", len(results)),
			slog.String("error", err.Error()),
		)
		return results
	}
	return reorderByRanking(results, parseRankedTitles(text))
}

// reorderByRanking places, for every ranked title, the first not yet placed
// result whose name contains it (case-insensitively). The remainder follows in
// original order. The output is always a permutation of results.
func reorderByRanking(results []domain.MovieRecord, ranked []string) []domain.MovieRecord {
	folder := cases.Fold()
	folded := make([]string, len(results))
	for i, record := range results {
		folded[i] = folder.String(record.Name)
	}

	placed := make([]bool, len(results))
	ordered := make([]domain.MovieRecord, 0, len(results))
	for _, title := range ranked {
		needle := folder.String(title)
		if needle == "" {
			continue
		}
		for i := range results {
			if placed[i] || !strings.Contains(folded[i], needle) {
				continue
			}
			placed[i] = true
			ordered = append(ordered, results[i])
			break
		}
	}
	for i, record := range results {
		if !placed[i] {
			ordered = append(ordered, record)
		}
	}
	return ordered
}

func parseRankedTitles(text string) []string {
	lines := strings.Split(text, "\n")
	titles := make([]string, 0, len(lines))
	for _, line := range lines {
		title := cleanTitle(trailingYearPattern.ReplaceAllString(strings.TrimSpace(line), ""))
		if title != "" {
			titles = append(titles, title)
		}
	}
	return titles
}

func buildRankingPrompt(results []domain.MovieRecord, query string) string {
	var b strings.Builder
	for i, record := range results {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(record.Name)
		if record.YearReleased != "" {
			fmt.Fprintf(&b, " (%s)", record.YearReleased)
		}
	}
	return fmt.Sprintf(`Rank and verify these movie search results for the query: %q

%s

Criteria for ranking:
1. Relevance to query
2. Recency
3. Popularity
4. Thematic match

Return only the movie titles, one per line, most relevant first.`, query, b.String())
}
