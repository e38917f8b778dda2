package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"moviediscovery/searchservice/internal/domain"
)

func records(titles ...string) []domain.MovieRecord {
	out := make([]domain.MovieRecord, len(titles))
	for i, title := range titles {
		out[i] = domain.MovieRecord{Name: title}
	}
	return out
}

func TestReorderByRanking(t *testing.T) {
	tests := []struct {
		name    string
		results []string
		ranked  []string
		want    []string
	}{
		{
			name:    "unranked appended in original order",
			results: []string{"Alpha", "Beta", "Gamma"},
			ranked:  []string{"Gamma", "Alpha"},
			want:    []string{"Gamma", "Alpha", "Beta"},
		},
		{
			name:    "case-insensitive substring",
			results: []string{"The Dark Knight", "Heat"},
			ranked:  []string{"heat", "dark knight"},
			want:    []string{"Heat", "The Dark Knight"},
		},
		{
			name:    "shared substring places distinct results",
			results: []string{"Batman Begins", "The Batman", "Batman Returns"},
			ranked:  []string{"Batman", "Batman"},
			want:    []string{"Batman Begins", "The Batman", "Batman Returns"},
		},
		{
			name:    "placed results are not matched again",
			results: []string{"Alien", "Aliens"},
			ranked:  []string{"Aliens", "Alien", "Alien"},
			want:    []string{"Aliens", "Alien"},
		},
		{
			name:    "unknown titles ignored",
			results: []string{"Alpha", "Beta"},
			ranked:  []string{"Zeta", "Beta"},
			want:    []string{"Beta", "Alpha"},
		},
		{
			name:    "no ranking",
			results: []string{"Alpha", "Beta"},
			ranked:  nil,
			want:    []string{"Alpha", "Beta"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := names(reorderByRanking(records(tc.results...), tc.ranked))
			if !equalStrings(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestVerifyAndRankResultsUsesLLMOrder(t *testing.T) {
	llm := &fakeLLM{respond: func(string) (string, error) {
		return "Gamma\nAlpha", nil
	}}
	h := newTestHandler(DefaultConfig(), nil, WithLLM(llm))

	got := h.VerifyAndRankResults(context.Background(), records("Alpha", "Beta", "Gamma"), "greek letters")
	if n := names(got); !equalStrings(n, []string{"Gamma", "Alpha", "Beta"}) {
		t.Fatalf("got %v", n)
	}
	llm.mu.Lock()
	prompt := llm.prompts[0]
	llm.mu.Unlock()
	if !strings.Contains(prompt, `"greek letters"`) || !strings.Contains(prompt, "Beta") {
		t.Fatalf("unexpected ranking prompt: %q", prompt)
	}
}

func TestVerifyAndRankResultsToleratesDecoratedLines(t *testing.T) {
	llm := &fakeLLM{respond: func(string) (string, error) {
		return "Here is the ranking:\n1. \"Heat\" (1995)\n2. Ronin (1998)\n", nil
	}}
	h := newTestHandler(DefaultConfig(), nil, WithLLM(llm))

	input := []domain.MovieRecord{{Name: "Ronin", YearReleased: "1998"}, {Name: "Heat", YearReleased: "1995"}}
	got := h.VerifyAndRankResults(context.Background(), input, "michael mann style")
	if n := names(got); !equalStrings(n, []string{"Heat", "Ronin"}) {
		t.Fatalf("got %v", n)
	}
}

func TestVerifyAndRankResultsKeepsOrderOnFailure(t *testing.T) {
	llm := &fakeLLM{respond: func(string) (string, error) {
		return "", errors.New("quota exceeded")
	}}
	h := newTestHandler(DefaultConfig(), nil, WithLLM(llm))

	input := records("Alpha", "Beta", "Gamma")
	got := h.VerifyAndRankResults(context.Background(), input, "q")
	if n := names(got); !equalStrings(n, []string{"Alpha", "Beta", "Gamma"}) {
		t.Fatalf("got %v", n)
	}
}

func TestVerifyAndRankResultsSkipsSingleResult(t *testing.T) {
	llm := &fakeLLM{respond: func(string) (string, error) {
		return "Other", nil
	}}
	h := newTestHandler(DefaultConfig(), nil, WithLLM(llm))

	got := h.VerifyAndRankResults(context.Background(), records("Only"), "q")
	if len(got) != 1 || llm.calls() != 0 {
		t.Fatalf("expected no ranking call, got %d calls", llm.calls())
	}
}
