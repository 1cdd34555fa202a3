package testutil

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/starford/healthlib/internal/models"
)

// Route names used to inspect and steer the fake backend.
const (
	RouteCategories  = "categories"
	RouteSearch      = "search"
	RouteBrowse      = "browse"
	RouteItem        = "item"
	RouteChat        = "chat"
	RouteSuggestions = "suggestions"
	RouteWebSearch   = "web_search"
	RoutePreview     = "preview"
	RouteImport      = "import"
)

// Doc is a corpus entry with its English translation.
type Doc struct {
	Item      models.KnowledgeItem
	TitleEN   string
	ContentEN string
}

// ChatCall records one request received on /api/chat/send.
type ChatCall struct {
	Message        string               `json:"message"`
	ConversationID string               `json:"conversation_id"`
	History        []models.ChatMessage `json:"history"`
}

// Request is one recorded call.
type Request struct {
	Route string
	Query url.Values
}

// Backend is an in-memory stand-in for the health-knowledge service.
type Backend struct {
	URL string

	mu          sync.Mutex
	docs        []Doc
	suggestions []models.Suggestion
	web         []models.WebSearchResult
	previews    map[string]models.ContentPreview
	imported    []models.ContentPreview
	chats       []ChatCall
	requests    []Request
	failing     map[string]bool
	gates       map[string]*gate
}

type gate struct {
	ch   chan struct{}
	once sync.Once
}

func (g *gate) open() { g.once.Do(func() { close(g.ch) }) }

// NewBackend starts a fake backend seeded with DefaultDocs and registers its
// shutdown with t.Cleanup.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		docs:        DefaultDocs(),
		suggestions: DefaultSuggestions(),
		web:         DefaultWebResults(),
		previews:    make(map[string]models.ContentPreview),
		failing:     make(map[string]bool),
		gates:       make(map[string]*gate),
	}
	srv := httptest.NewServer(b.Router())
	b.URL = srv.URL
	t.Cleanup(func() {
		b.mu.Lock()
		for name, g := range b.gates {
			g.open()
			delete(b.gates, name)
		}
		b.mu.Unlock()
		srv.Close()
	})
	return b
}

// Router returns the chi router serving the backend API.
func (b *Backend) Router() chi.Router {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/knowledge/categories", b.handle(RouteCategories, b.categories))
		r.Get("/knowledge/search", b.handle(RouteSearch, b.search))
		r.Get("/knowledge/browse", b.handle(RouteBrowse, b.browse))
		r.Get("/knowledge/{id}", b.handle(RouteItem, b.item))
		r.Post("/chat/send", b.handle(RouteChat, b.chat))
		r.Get("/chat/suggestions", b.handle(RouteSuggestions, b.suggest))
		r.Get("/collector/search", b.handle(RouteWebSearch, b.webSearch))
		r.Post("/collector/preview", b.handle(RoutePreview, b.preview))
		r.Post("/collector/import", b.handle(RouteImport, b.importContent))
	})
	return r
}

// Fail makes every subsequent call on route answer 500.
func (b *Backend) Fail(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing[route] = true
}

// Recover undoes Fail.
func (b *Backend) Recover(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failing, route)
}

// Hold blocks calls on route until the returned release func is called.
func (b *Backend) Hold(route string) (release func()) {
	g := &gate{ch: make(chan struct{})}
	b.mu.Lock()
	b.gates[route] = g
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		if b.gates[route] == g {
			delete(b.gates, route)
		}
		b.mu.Unlock()
		g.open()
	}
}

// Calls returns how many requests route has received.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.requests {
		if r.Route == route {
			n++
		}
	}
	return n
}

// Requests returns a copy of every recorded call.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// LastRequest returns the most recent call on route.
func (b *Backend) LastRequest(route string) (Request, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.requests) - 1; i >= 0; i-- {
		if b.requests[i].Route == route {
			return b.requests[i], true
		}
	}
	return Request{}, false
}

// Chats returns every chat request received.
func (b *Backend) Chats() []ChatCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ChatCall(nil), b.chats...)
}

// Imported returns every previewed document that was imported.
func (b *Backend) Imported() []models.ContentPreview {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.ContentPreview(nil), b.imported...)
}

// SetPreview fixes the extraction result for url.
func (b *Backend) SetPreview(url string, p models.ContentPreview) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.previews[url] = p
}

// SetWebResults replaces the web search results.
func (b *Backend) SetWebResults(results []models.WebSearchResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.web = results
}

// handle records the call, honours Fail and Hold, then runs fn.
func (b *Backend) handle(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, Request{Route: route, Query: r.URL.Query()})
		g := b.gates[route]
		b.mu.Unlock()

		if g != nil {
			select {
			case <-g.ch:
			case <-r.Context().Done():
				return
			}
		}

		b.mu.Lock()
		failing := b.failing[route]
		b.mu.Unlock()
		if failing {
			writeJSON(w, http.StatusInternalServerError, errorBody("simulated failure"))
			return
		}
		fn(w, r)
	}
}

func (b *Backend) categories(w http.ResponseWriter, r *http.Request) {
	en := r.URL.Query().Get("lang") == string(models.LangEN)
	b.mu.Lock()
	counts := make(map[models.CategoryID]int)
	for _, d := range b.docs {
		counts[d.Item.Category]++
	}
	b.mu.Unlock()

	names := map[models.CategoryID][2]string{
		models.CategoryHeartRate: {"心率", "Heart Rate"},
		models.CategoryHRV:       {"HRV", "HRV"},
		models.CategorySleep:     {"睡眠", "Sleep"},
		models.CategoryExercise:  {"运动", "Exercise"},
		models.CategoryStress:    {"压力", "Stress"},
	}
	order := []models.CategoryID{
		models.CategoryHeartRate, models.CategoryHRV, models.CategorySleep,
		models.CategoryExercise, models.CategoryStress,
	}
	out := make([]models.Category, 0, len(order))
	for _, id := range order {
		n := names[id]
		name := n[0]
		if en {
			name = n[1]
		}
		out = append(out, models.Category{ID: id, Name: name, NameEN: n[1], Count: counts[id]})
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("query parameter 'q' is required"))
		return
	}
	lang := models.Lang(q.Get("lang"))
	category := q.Get("category")
	words := strings.Fields(strings.ToLower(query))

	type hit struct {
		res   models.SearchResult
		score float64
	}
	var hits []hit
	b.mu.Lock()
	for _, d := range b.docs {
		if category != "" && string(d.Item.Category) != category {
			continue
		}
		item := localize(d, lang)
		text := strings.ToLower(item.Title + " " + item.Content + " " + d.TitleEN + " " + d.ContentEN)
		matched := 0
		for _, word := range words {
			if strings.Contains(text, word) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		res := item.AsSearchResult()
		res.RelevanceScore = float64(matched) / float64(len(words))
		hits = append(hits, hit{res: res, score: res.RelevanceScore})
	}
	b.mu.Unlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	results := make([]models.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = h.res
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
		"total":   len(results),
	})
}

func (b *Backend) browse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lang := models.Lang(q.Get("lang"))
	category := q.Get("category")
	tier, _ := strconv.Atoi(q.Get("tier"))
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	var items []models.KnowledgeItem
	b.mu.Lock()
	for _, d := range b.docs {
		if category != "" && string(d.Item.Category) != category {
			continue
		}
		if tier != 0 && int(d.Item.Tier) != tier {
			continue
		}
		items = append(items, localize(d, lang))
	}
	b.mu.Unlock()

	total := len(items)
	start := min((page-1)*size, total)
	end := min(start+size, total)
	writeJSON(w, http.StatusOK, models.BrowsePage{
		Items:    append([]models.KnowledgeItem{}, items[start:end]...),
		Total:    total,
		Page:     page,
		PageSize: size,
	})
}

func (b *Backend) item(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lang := models.Lang(r.URL.Query().Get("lang"))
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.docs {
		if d.Item.ID == id {
			writeJSON(w, http.StatusOK, localize(d, lang))
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorBody("Item not found"))
}

func (b *Backend) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatCall
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	b.mu.Lock()
	b.chats = append(b.chats, req)
	var sources []models.SourceCitation
	for _, d := range b.docs {
		if len(sources) == 3 {
			break
		}
		if strings.Contains(strings.ToLower(req.Message), strings.ToLower(d.TitleEN)) {
			sources = append(sources, models.SourceCitation{
				Title:          d.TitleEN,
				Source:         d.Item.Source,
				URL:            d.Item.SourceURL,
				Tier:           d.Item.Tier,
				RelevanceScore: 0.9,
			})
		}
	}
	b.mu.Unlock()

	convID := req.ConversationID
	if convID == "" {
		convID = "conv-1"
	}
	if sources == nil {
		sources = []models.SourceCitation{}
	}
	confidence := models.ConfidenceLow
	if len(sources) > 0 {
		confidence = models.ConfidenceHigh
	}
	writeJSON(w, http.StatusOK, models.ChatResponse{
		ConversationID: convID,
		Message: models.ChatMessage{
			Role:    models.RoleAssistant,
			Content: "answer: " + req.Message,
		},
		Sources:    sources,
		Confidence: confidence,
	})
}

func (b *Backend) suggest(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.suggestions)
}

func (b *Backend) webSearch(w http.ResponseWriter, r *http.Request) {
	if len(strings.TrimSpace(r.URL.Query().Get("q"))) < 2 {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("query too short"))
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.web)
}

func (b *Backend) preview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("url is required"))
		return
	}
	b.mu.Lock()
	p, ok := b.previews[req.URL]
	b.mu.Unlock()
	if !ok {
		host := req.URL
		if u, err := url.Parse(req.URL); err == nil && u.Host != "" {
			host = u.Host
		}
		p = models.ContentPreview{
			Title:      "Draft from " + host,
			Category:   models.CategoryGeneral,
			Summary:    "Summary of " + req.URL,
			Content:    "Cleaned content of " + req.URL,
			Tier:       models.TierReference,
			SourceName: host,
		}
	}
	p.URL = req.URL
	writeJSON(w, http.StatusOK, p)
}

func (b *Backend) importContent(w http.ResponseWriter, r *http.Request) {
	var p models.ContentPreview
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("invalid document"))
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.imported = append(b.imported, p)
	id := fmt.Sprintf("doc-%d", len(b.imported))
	b.docs = append(b.docs, Doc{
		Item: models.KnowledgeItem{
			ID:        id,
			Title:     p.Title,
			Content:   p.Content,
			Category:  p.Category,
			Source:    p.SourceName,
			SourceURL: p.URL,
			Tier:      p.Tier,
		},
		TitleEN:   p.Title,
		ContentEN: p.Content,
	})
	writeJSON(w, http.StatusOK, models.ImportResult{ID: id, Status: "success"})
}

func localize(d Doc, lang models.Lang) models.KnowledgeItem {
	item := d.Item
	if lang == models.LangEN {
		item.Title = d.TitleEN
		item.Content = d.ContentEN
	}
	return item
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Detail string `json:"detail"`
}

func errorBody(msg string) errResponse {
	return errResponse{Detail: msg}
}
