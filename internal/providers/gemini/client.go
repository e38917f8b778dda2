package gemini

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"moviediscovery/searchservice/internal/providers/common"
)

const (
	serviceName        = "gemini"
	defaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel       = "gemini-pro"
	defaultHTTPTimeout = 30 * time.Second
)

type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Client  *http.Client
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type generateResponse struct {
	Candidates     []candidate `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    httpClient,
	}
}

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// GenerateContent sends a single-turn prompt and returns the concatenated text
// of the first candidate.
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}
	reqURL := c.baseURL + "/models/" + url.PathEscape(c.model) + ":generateContent?" + url.Values{"key": {c.apiKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var response generateResponse
	if err := common.DoJSON(c.http, serviceName, req, &response); err != nil {
		return "", err
	}
	if reason := response.PromptFeedback.BlockReason; reason != "" {
		return "", common.ServiceError(serviceName, http.StatusBadRequest, "prompt blocked: "+reason)
	}
	if len(response.Candidates) == 0 {
		return "", common.ServiceError(serviceName, http.StatusBadGateway, "no candidates returned")
	}
	first := response.Candidates[0]
	if first.FinishReason == "SAFETY" {
		return "", common.ServiceError(serviceName, http.StatusBadRequest, "response blocked by safety filters")
	}
	var text strings.Builder
	for _, p := range first.Content.Parts {
		text.WriteString(p.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", common.ServiceError(serviceName, http.StatusBadGateway, "empty response text")
	}
	return text.String(), nil
}
