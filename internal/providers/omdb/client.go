package omdb

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moviediscovery/searchservice/internal/domain"
	"moviediscovery/searchservice/internal/providers/common"
)

const (
	serviceName        = "omdb"
	defaultBaseURL     = "http://www.omdbapi.com/"
	defaultHTTPTimeout = 30 * time.Second
)

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	now     func() time.Time
}

type Config struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

type Rating struct {
	Source string `json:"Source"`
	Value  string `json:"Value"`
}

type SearchItem struct {
	Title   string   `json:"Title"`
	Year    string   `json:"Year"`
	IMDbID  string   `json:"imdbID,omitempty"`
	Poster  string   `json:"Poster,omitempty"`
	Ratings []Rating `json:"Ratings,omitempty"`
}

type searchResponse struct {
	Search   []SearchItem `json:"Search"`
	Response string       `json:"Response"`
	Error    string       `json:"Error,omitempty"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURL,
		http:    httpClient,
		now:     time.Now,
	}
}

func (c *Client) Name() string { return serviceName }

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Search returns the movie hits for query as MovieRecords. A missing Search
// array is "no results", not an error.
func (c *Client) Search(ctx context.Context, query string) ([]domain.MovieRecord, error) {
	if !c.Enabled() {
		return []domain.MovieRecord{}, nil
	}
	items, err := c.SearchTitles(ctx, query)
	if err != nil {
		return nil, err
	}
	now := c.now().UTC()
	records := make([]domain.MovieRecord, 0, len(items))
	for _, item := range items {
		records = append(records, toRecord(item, now))
	}
	return records, nil
}

func (c *Client) SearchTitles(ctx context.Context, query string) ([]SearchItem, error) {
	params := url.Values{
		"apikey": {c.apiKey},
		"s":      {strings.TrimSpace(query)},
		"type":   {"movie"},
	}
	reqURL := c.baseURL
	if strings.Contains(reqURL, "?") {
		reqURL += "&" + params.Encode()
	} else {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	var response searchResponse
	if err := common.DoJSON(c.http, serviceName, req, &response); err != nil {
		return nil, err
	}
	if response.Search == nil {
		// OMDB answers 200 with Response=False for both "not found" and quota errors.
		if strings.Contains(strings.ToLower(response.Error), "limit") {
			return nil, &common.UpstreamError{
				Service:    serviceName,
				Kind:       common.KindRateLimited,
				StatusCode: http.StatusTooManyRequests,
				Details:    response.Error,
			}
		}
		return []SearchItem{}, nil
	}
	return response.Search, nil
}

func toRecord(item SearchItem, now time.Time) domain.MovieRecord {
	record := domain.MovieRecord{
		Name:         strings.TrimSpace(item.Title),
		Poster:       common.CleanValue(item.Poster),
		Description:  "",
		Cast:         []string{},
		YearReleased: strings.TrimSpace(item.Year),
		Metadata: domain.MovieMetadata{
			Source:      serviceName,
			LastUpdated: now,
		},
	}
	for _, rating := range item.Ratings {
		source := strings.TrimSpace(rating.Source)
		value := common.CleanValue(rating.Value)
		if source == "" || value == "" {
			continue
		}
		record.Metadata.Ratings = append(record.Metadata.Ratings, domain.Rating{Source: source, Value: value})
	}
	return record
}
