package search

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"moviediscovery/searchservice/internal/domain"
)

func TestAnalyzeQueryIntentFallbackOnLLMError(t *testing.T) {
	llm := &fakeLLM{respond: func(string) (string, error) {
		return "", errors.New("503 service unavailable")
	}}
	h := newTestHandler(DefaultConfig(), nil, WithLLM(llm))

	got := h.AnalyzeQueryIntent(context.Background(), "The Matrix")
	want := domain.QueryAnalysis{
		Type:              domain.QueryTypeGenericSearch,
		Intent:            "general movie search",
		Keywords:          []string{"The", "Matrix"},
		AdditionalContext: map[string]any{},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestAnalyzeQueryIntentFallbackWithoutLLM(t *testing.T) {
	h := newTestHandler(DefaultConfig(), nil)
	got := h.AnalyzeQueryIntent(context.Background(), "The Matrix")
	if !reflect.DeepEqual(got, FallbackQueryAnalysis("The Matrix")) {
		t.Fatalf("unexpected analysis: %+v", got)
	}
}

func TestAnalyzeQueryIntentParsesWrappedJSON(t *testing.T) {
	llm := &fakeLLM{respond: func(string) (string, error) {
		return "Here is the analysis:\n```json\n" +
			`{"type":"plot_description","intent":"a man relives the same day","keywords":["time loop"," "],"additionalContext":{"era":"90s"}}` +
			"\n```\nLet me know if you need more.", nil
	}}
	h := newTestHandler(DefaultConfig(), nil, WithLLM(llm))

	got := h.AnalyzeQueryIntent(context.Background(), "guy lives same day over and over")
	if got.Type != domain.QueryTypePlotDescription {
		t.Fatalf("type = %q", got.Type)
	}
	if got.Intent != "a man relives the same day" {
		t.Fatalf("intent = %q", got.Intent)
	}
	if !reflect.DeepEqual(got.Keywords, []string{"time loop"}) {
		t.Fatalf("keywords = %v", got.Keywords)
	}
	if got.AdditionalContext["era"] != "90s" {
		t.Fatalf("additionalContext = %v", got.AdditionalContext)
	}
}

func TestDecodeQueryAnalysis(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantOK     bool
		wantType   domain.QueryType
		wantIntent string
	}{
		{name: "no json", text: "I think this is a recommendation.", wantOK: false},
		{name: "malformed", text: `{"type": "recommendation", "intent": }`, wantOK: false},
		{name: "wrong shape", text: `{"type": ["recommendation"], "intent": 42}`, wantOK: false},
		{name: "empty object", text: `{}`, wantOK: false},
		{name: "unknown type", text: `{"type":"documentary","intent":"nature films"}`, wantOK: true, wantType: domain.QueryTypeGenericSearch, wantIntent: "nature films"},
		{name: "missing intent", text: `{"type":"specific_theme","keywords":["heist"]}`, wantOK: true, wantType: domain.QueryTypeSpecificTheme, wantIntent: "heist movies"},
		{name: "upper case type", text: `{"type":" Recommendation ","intent":"x"}`, wantOK: true, wantType: domain.QueryTypeRecommendation, wantIntent: "x"},
		{
			name:       "two objects in prose",
			text:       `first {"type":"recommendation","intent":"a"} then {"type":"plot_description","intent":"b"}`,
			wantOK:     true,
			wantType:   domain.QueryTypeRecommendation,
			wantIntent: "a",
		},
		{
			name:       "braces inside strings",
			text:       `note {not json} {"type":"specific_theme","intent":"sets with {curly} props"}`,
			wantOK:     true,
			wantType:   domain.QueryTypeSpecificTheme,
			wantIntent: "sets with {curly} props",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := decodeQueryAnalysis(tc.text, "heist movies")
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v (analysis %+v)", ok, tc.wantOK, got)
			}
			if !ok {
				return
			}
			if got.Type != tc.wantType || got.Intent != tc.wantIntent {
				t.Fatalf("got (%q, %q), want (%q, %q)", got.Type, got.Intent, tc.wantType, tc.wantIntent)
			}
			if got.Keywords == nil || got.AdditionalContext == nil {
				t.Fatalf("expected populated collections, got %+v", got)
			}
		})
	}
}

func TestFallbackQueryAnalysisEmptyKeywords(t *testing.T) {
	got := FallbackQueryAnalysis("   ")
	if got.Keywords == nil || len(got.Keywords) != 0 {
		t.Fatalf("expected empty keyword slice, got %#v", got.Keywords)
	}
}
