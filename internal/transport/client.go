// Package transport maps domain calls onto the health-knowledge HTTP+JSON API.
// It performs no retries and no caching.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/healthlib/internal/models"
)

// Operation names reported in RequestFailedError.Op.
const (
	OpListCategories  = "list categories"
	OpSearchKnowledge = "search knowledge"
	OpBrowseKnowledge = "browse knowledge"
	OpGetItem         = "get item"
	OpSendChat        = "send chat message"
	OpListSuggestions = "list chat suggestions"
	OpWebSearch       = "web search"
	OpPreviewContent  = "preview content"
	OpImportContent   = "import content"
)

// DefaultBaseURL is the address of a locally running backend.
const DefaultBaseURL = "http://127.0.0.1:8000"

// Backend is the set of backend operations the controllers depend on.
type Backend interface {
	ListCategories(ctx context.Context, lang models.Lang) ([]models.Category, error)
	SearchKnowledge(ctx context.Context, query string, category *models.CategoryID, lang models.Lang) ([]models.SearchResult, error)
	BrowseKnowledge(ctx context.Context, params BrowseParams, lang models.Lang) ([]models.SearchResult, error)
	GetKnowledgeItem(ctx context.Context, id string, lang models.Lang) (models.KnowledgeItem, error)
	SendChatMessage(ctx context.Context, text, conversationID string, history []models.ChatMessage) (models.ChatResponse, error)
	ListChatSuggestions(ctx context.Context) ([]models.Suggestion, error)
	WebSearch(ctx context.Context, query string) ([]models.WebSearchResult, error)
	PreviewContent(ctx context.Context, url string) (models.ContentPreview, error)
	ImportContent(ctx context.Context, preview models.ContentPreview) (models.ImportResult, error)
}

// Verify *Client satisfies Backend at compile time.
var _ Backend = (*Client)(nil)

// BrowseParams filters and pages a browse request.
type BrowseParams struct {
	Category *models.CategoryID
	Tier     *models.Tier
	Page     int
	PageSize int
}

// Defaults used when BrowseParams leaves paging unset.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
)

// Client talks to the backend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client for baseURL. An empty baseURL selects DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalised backend address.
func (c *Client) BaseURL() string { return c.baseURL }

// ListCategories handles GET /api/knowledge/categories.
func (c *Client) ListCategories(ctx context.Context, lang models.Lang) ([]models.Category, error) {
	q := url.Values{"lang": {lang.String()}}
	var out []models.Category
	if err := c.do(ctx, OpListCategories, http.MethodGet, "/api/knowledge/categories", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchKnowledge handles GET /api/knowledge/search. A nil category searches
// across all categories.
func (c *Client) SearchKnowledge(ctx context.Context, query string, category *models.CategoryID, lang models.Lang) ([]models.SearchResult, error) {
	q := url.Values{"q": {query}, "lang": {lang.String()}}
	if category != nil {
		q.Set("category", category.String())
	}
	var resp struct {
		Results []models.SearchResult `json:"results"`
	}
	if err := c.do(ctx, OpSearchKnowledge, http.MethodGet, "/api/knowledge/search", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// BrowsePage handles GET /api/knowledge/browse and returns the raw envelope.
func (c *Client) BrowsePage(ctx context.Context, params BrowseParams, lang models.Lang) (models.BrowsePage, error) {
	page, size := params.Page, params.PageSize
	if page <= 0 {
		page = DefaultPage
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	q := url.Values{
		"page":      {strconv.Itoa(page)},
		"page_size": {strconv.Itoa(size)},
		"lang":      {lang.String()},
	}
	if params.Category != nil {
		q.Set("category", params.Category.String())
	}
	if params.Tier != nil {
		q.Set("tier", strconv.Itoa(int(*params.Tier)))
	}
	var out models.BrowsePage
	if err := c.do(ctx, OpBrowseKnowledge, http.MethodGet, "/api/knowledge/browse", q, nil, &out); err != nil {
		return models.BrowsePage{}, err
	}
	return out, nil
}

// BrowseKnowledge browses the corpus and maps every item into a SearchResult
// with a relevance score of 1.
func (c *Client) BrowseKnowledge(ctx context.Context, params BrowseParams, lang models.Lang) ([]models.SearchResult, error) {
	page, err := c.BrowsePage(ctx, params, lang)
	if err != nil {
		return nil, err
	}
	return page.SearchResults(), nil
}

// GetKnowledgeItem handles GET /api/knowledge/{id}.
func (c *Client) GetKnowledgeItem(ctx context.Context, id string, lang models.Lang) (models.KnowledgeItem, error) {
	q := url.Values{"lang": {lang.String()}}
	var out models.KnowledgeItem
	if err := c.do(ctx, OpGetItem, http.MethodGet, "/api/knowledge/"+url.PathEscape(id), q, nil, &out); err != nil {
		return models.KnowledgeItem{}, err
	}
	return out, nil
}

type chatRequest struct {
	Message        string               `json:"message"`
	ConversationID string               `json:"conversation_id,omitempty"`
	History        []models.ChatMessage `json:"history,omitempty"`
}

// SendChatMessage handles POST /api/chat/send.
func (c *Client) SendChatMessage(ctx context.Context, text, conversationID string, history []models.ChatMessage) (models.ChatResponse, error) {
	body := chatRequest{Message: text, ConversationID: conversationID, History: history}
	var out models.ChatResponse
	if err := c.do(ctx, OpSendChat, http.MethodPost, "/api/chat/send", nil, body, &out); err != nil {
		return models.ChatResponse{}, err
	}
	return out, nil
}

// ListChatSuggestions handles GET /api/chat/suggestions.
func (c *Client) ListChatSuggestions(ctx context.Context) ([]models.Suggestion, error) {
	var out []models.Suggestion
	if err := c.do(ctx, OpListSuggestions, http.MethodGet, "/api/chat/suggestions", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// WebSearch handles GET /api/collector/search.
func (c *Client) WebSearch(ctx context.Context, query string) ([]models.WebSearchResult, error) {
	q := url.Values{"q": {query}}
	var out []models.WebSearchResult
	if err := c.do(ctx, OpWebSearch, http.MethodGet, "/api/collector/search", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PreviewContent handles POST /api/collector/preview.
func (c *Client) PreviewContent(ctx context.Context, pageURL string) (models.ContentPreview, error) {
	body := map[string]string{"url": pageURL}
	var out models.ContentPreview
	if err := c.do(ctx, OpPreviewContent, http.MethodPost, "/api/collector/preview", nil, body, &out); err != nil {
		return models.ContentPreview{}, err
	}
	return out, nil
}

// ImportContent handles POST /api/collector/import.
func (c *Client) ImportContent(ctx context.Context, preview models.ContentPreview) (models.ImportResult, error) {
	var out models.ImportResult
	if err := c.do(ctx, OpImportContent, http.MethodPost, "/api/collector/import", nil, preview, &out); err != nil {
		return models.ImportResult{}, err
	}
	return out, nil
}

// do issues one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return wrapError(op, fmt.Errorf("marshaling request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return wrapError(op, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend call failed",
			slog.String("op", op),
			slog.String("error", err.Error()))
		return wrapError(op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend call",
		slog.String("op", op),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return statusError(op, resp.StatusCode, data)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return wrapError(op, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// backendMessage extracts a human-readable message from an error body.
// FastAPI reports {"detail": ...}; other handlers use {"error": ...}.
func backendMessage(body []byte) string {
	var payload struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if s, ok := payload.Detail.(string); ok && s != "" {
		return s
	}
	return payload.Error
}
