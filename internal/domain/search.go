package domain

type QueryType string

const (
	QueryTypeRecommendation  QueryType = "recommendation"
	QueryTypeSpecificTheme   QueryType = "specific_theme"
	QueryTypePlotDescription QueryType = "plot_description"
	QueryTypeGenericSearch   QueryType = "generic_search"
)

// ParseQueryType maps a classifier label onto a QueryType. Unknown labels
// resolve to QueryTypeGenericSearch.
func ParseQueryType(raw string) QueryType {
	switch QueryType(normalizeLabel(raw)) {
	case QueryTypeRecommendation:
		return QueryTypeRecommendation
	case QueryTypeSpecificTheme:
		return QueryTypeSpecificTheme
	case QueryTypePlotDescription:
		return QueryTypePlotDescription
	default:
		return QueryTypeGenericSearch
	}
}

type QueryAnalysis struct {
	Type              QueryType      `json:"type"`
	Intent            string         `json:"intent"`
	Keywords          []string       `json:"keywords"`
	AdditionalContext map[string]any `json:"additionalContext"`
}

type ResponseType string

const (
	ResponseTypeNone     ResponseType = "none"
	ResponseTypeSingle   ResponseType = "single"
	ResponseTypeMultiple ResponseType = "multiple"
)

// ResponseTypeFor classifies a result count.
func ResponseTypeFor(count int) ResponseType {
	switch {
	case count <= 0:
		return ResponseTypeNone
	case count == 1:
		return ResponseTypeSingle
	default:
		return ResponseTypeMultiple
	}
}

type SearchResponse struct {
	Type        ResponseType  `json:"type"`
	Results     []MovieRecord `json:"results"`
	Explanation string        `json:"explanation,omitempty"`
}

// EmptySearchResponse is the degraded response returned when nothing could be
// resolved for a query.
func EmptySearchResponse() SearchResponse {
	return SearchResponse{Type: ResponseTypeNone, Results: []MovieRecord{}}
}
