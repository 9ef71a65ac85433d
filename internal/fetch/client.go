package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL = "https://api.firecrawl.dev"
	defaultTimeout = 90 * time.Second
)

var retryableStatus = map[int]struct{}{
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// APIError is a non-2xx response from the scrape provider.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scrape api: status %d: %s", e.Status, e.Body)
}

// Retryable reports whether the status indicates a transient condition
// (rate limiting or a server-side failure).
func (e *APIError) Retryable() bool {
	_, ok := retryableStatus[e.Status]
	return ok
}

// IsRetryable reports whether err is worth another attempt. Network-level
// failures are always retryable; API errors only for transient statuses.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Retryable()
	}
	if _, ok := err.(*url.Error); ok {
		return true
	}
	return false
}

// Result is the content of one fetched inventory page.
type Result struct {
	URL      string
	Markdown string
	HTML     string
	RawHTML  string
	Metadata map[string]any
	Source   string // "scrape" or "extract"
}

// BestContent returns the richest representation available, preferring
// markdown over rendered HTML over raw HTML.
func (r *Result) BestContent() string {
	if r.Markdown != "" {
		return r.Markdown
	}
	if r.HTML != "" {
		return r.HTML
	}
	return r.RawHTML
}

// Empty reports whether the fetch yielded no usable content at all.
func (r *Result) Empty() bool {
	return r.BestContent() == ""
}

// Client talks to a Firecrawl-compatible scrape API. It performs a single
// request per call; retry and backoff belong to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(httpClient *http.Client, baseURL, apiKey string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{httpClient: httpClient, baseURL: baseURL, apiKey: apiKey}
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	WaitFor         int      `json:"waitFor,omitempty"`
}

type scrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string         `json:"markdown"`
		HTML     string         `json:"html"`
		RawHTML  string         `json:"rawHtml"`
		Metadata map[string]any `json:"metadata"`
	} `json:"data"`
	Error string `json:"error"`
}

// Scrape fetches one URL and returns its rendered content.
func (c *Client) Scrape(ctx context.Context, pageURL string) (*Result, error) {
	body, err := c.doPost(ctx, "/v1/scrape", scrapeRequest{
		URL:             pageURL,
		Formats:         []string{"markdown", "html"},
		OnlyMainContent: false,
		WaitFor:         3000,
	})
	if err != nil {
		return nil, err
	}
	var resp scrapeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode scrape response: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("scrape rejected: %s", resp.Error)
	}
	return &Result{
		URL:      pageURL,
		Markdown: resp.Data.Markdown,
		HTML:     resp.Data.HTML,
		RawHTML:  resp.Data.RawHTML,
		Metadata: resp.Data.Metadata,
		Source:   "scrape",
	}, nil
}

type extractRequest struct {
	URLs   []string       `json:"urls"`
	Prompt string         `json:"prompt,omitempty"`
	Schema map[string]any `json:"schema,omitempty"`
}

type extractResponse struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Error   string         `json:"error"`
}

// Extract runs provider-side structured extraction against a URL. Used as a
// fallback when a scrape returns a page with no parseable listings.
func (c *Client) Extract(ctx context.Context, pageURL string, schema map[string]any) (*Result, error) {
	body, err := c.doPost(ctx, "/v1/extract", extractRequest{URLs: []string{pageURL}, Schema: schema})
	if err != nil {
		return nil, err
	}
	var resp extractResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode extract response: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("extract rejected: %s", resp.Error)
	}
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("encode extract data: %w", err)
	}
	return &Result{
		URL:      pageURL,
		Markdown: string(raw),
		Metadata: resp.Data,
		Source:   "extract",
	}, nil
}

func (c *Client) doPost(ctx context.Context, path string, payload any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
