// Package browse drives the knowledge browse/search view: category sidebar,
// result list and item detail.
package browse

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/healthlib/internal/events"
	"github.com/starford/healthlib/internal/locale"
	"github.com/starford/healthlib/internal/models"
	"github.com/starford/healthlib/internal/transport"
)

// Mode tells whether the result list comes from browsing or searching.
type Mode string

const (
	ModeBrowse Mode = "browse"
	ModeSearch Mode = "search"
)

// Snapshot is a copy of the controller state.
type Snapshot struct {
	Category   *models.CategoryID
	Query      string
	Mode       Mode
	Results    []models.SearchResult
	Loading    bool
	Categories []models.Category
	Detail     *models.KnowledgeItem
	// Banner is a localized failure message for the last applied reload, empty on success.
	Banner string
}

// Controller owns the result list. It is safe for concurrent use; backend
// calls are made without holding the lock.
type Controller struct {
	backend  transport.Backend
	tr       locale.Translator
	pub      events.Publisher
	logger   *slog.Logger
	pageSize int

	mu         sync.Mutex
	category   *models.CategoryID
	query      string
	results    []models.SearchResult
	categories []models.Category
	detail     *models.KnowledgeItem
	detailFrom models.SearchResult
	banner     string
	inflight   int
	issued     uint64
	applied    uint64
	catIssued  uint64
	catApplied uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithPublisher sets where state changes are announced.
func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) {
		if p != nil {
			c.pub = p
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPageSize sets how many items a browse reload requests.
func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithCategory starts the controller with a category filter selected.
func WithCategory(id models.CategoryID) Option {
	return func(c *Controller) {
		c.category = models.CategoryPtr(id)
	}
}

// New creates a Controller.
func New(backend transport.Backend, tr locale.Translator, opts ...Option) *Controller {
	c := &Controller{
		backend:  backend,
		tr:       tr,
		pub:      events.Discard,
		logger:   slog.Default(),
		pageSize: transport.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Query:      c.query,
		Mode:       modeFor(c.query),
		Results:    append([]models.SearchResult(nil), c.results...),
		Loading:    c.inflight > 0,
		Categories: append([]models.Category(nil), c.categories...),
		Banner:     c.banner,
	}
	if c.category != nil {
		s.Category = models.CategoryPtr(*c.category)
	}
	if c.detail != nil {
		d := *c.detail
		s.Detail = &d
	}
	return s
}

// Init loads the category list and the first page concurrently. A failure of
// one does not cancel the other.
func (c *Controller) Init(ctx context.Context, lang models.Lang) error {
	var g errgroup.Group
	g.Go(func() error { return c.LoadCategories(ctx, lang) })
	g.Go(func() error { return c.reload(ctx, lang) })
	return g.Wait()
}

// LoadCategories fetches the sidebar categories in lang. On failure the
// previous list is kept. Like result reloads, a response older than the last
// applied one is dropped.
func (c *Controller) LoadCategories(ctx context.Context, lang models.Lang) error {
	c.mu.Lock()
	c.catIssued++
	seq := c.catIssued
	c.mu.Unlock()

	cats, err := c.backend.ListCategories(ctx, lang)

	c.mu.Lock()
	stale := seq < c.catApplied
	if !stale {
		c.catApplied = seq
		if err == nil {
			c.categories = cats
		}
	}
	c.mu.Unlock()

	if stale {
		c.logger.Debug("browse: dropped stale categories", slog.Uint64("seq", seq))
		return nil
	}
	if err != nil {
		c.logger.Warn("browse: load categories failed", slog.String("error", err.Error()))
		return err
	}
	c.pub.Publish(events.Event{Type: events.BrowseCategories, Data: cats})
	return nil
}

// SelectCategory sets the category filter (nil for all), clears the query and
// reloads in browse mode.
func (c *Controller) SelectCategory(ctx context.Context, lang models.Lang, id *models.CategoryID) error {
	c.mu.Lock()
	if id != nil {
		c.category = models.CategoryPtr(*id)
	} else {
		c.category = nil
	}
	c.query = ""
	c.mu.Unlock()
	return c.reload(ctx, lang)
}

// SetQuery updates the search text without issuing a request.
func (c *Controller) SetQuery(text string) {
	c.mu.Lock()
	c.query = text
	c.mu.Unlock()
}

// SubmitSearch searches for the current query within the selected category,
// or browses when the query is blank.
func (c *Controller) SubmitSearch(ctx context.Context, lang models.Lang) error {
	return c.reload(ctx, lang)
}

// SetLanguage reloads the categories, the current mode and an open detail in lang.
func (c *Controller) SetLanguage(ctx context.Context, lang models.Lang) error {
	var g errgroup.Group
	g.Go(func() error { return c.LoadCategories(ctx, lang) })
	g.Go(func() error { return c.reload(ctx, lang) })
	g.Go(func() error {
		c.refreshDetail(ctx, lang)
		return nil
	})
	return g.Wait()
}

// OpenDetail fetches the full item for r in lang. If the fetch fails the item
// is rebuilt from r itself, so OpenDetail always yields something to show.
func (c *Controller) OpenDetail(ctx context.Context, lang models.Lang, r models.SearchResult) models.KnowledgeItem {
	item, err := c.backend.GetKnowledgeItem(ctx, r.ID, lang)
	if err != nil {
		c.logger.Warn("browse: get item failed, using summary",
			slog.String("id", r.ID),
			slog.String("error", err.Error()))
		item = r.AsKnowledgeItem()
	}
	c.mu.Lock()
	c.detail = &item
	c.detailFrom = r
	c.mu.Unlock()
	c.pub.Publish(events.Event{Type: events.BrowseDetail, Data: item})
	return item
}

// refreshDetail refetches the open detail in lang. It keeps the summary
// fallback and leaves the view alone if it was closed or replaced meanwhile.
func (c *Controller) refreshDetail(ctx context.Context, lang models.Lang) {
	c.mu.Lock()
	if c.detail == nil {
		c.mu.Unlock()
		return
	}
	from := c.detailFrom
	c.mu.Unlock()

	item, err := c.backend.GetKnowledgeItem(ctx, from.ID, lang)
	if err != nil {
		c.logger.Warn("browse: refresh item failed, using summary",
			slog.String("id", from.ID),
			slog.String("error", err.Error()))
		item = from.AsKnowledgeItem()
	}

	c.mu.Lock()
	if c.detail == nil || c.detailFrom.ID != from.ID {
		c.mu.Unlock()
		return
	}
	c.detail = &item
	c.mu.Unlock()
	c.pub.Publish(events.Event{Type: events.BrowseDetail, Data: item})
}

// CloseDetail dismisses the detail view.
func (c *Controller) CloseDetail() {
	c.mu.Lock()
	c.detail = nil
	c.mu.Unlock()
}

// reload fetches the current mode. Every call takes a sequence number; a
// response older than the last applied one is dropped.
func (c *Controller) reload(ctx context.Context, lang models.Lang) error {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	var category *models.CategoryID
	if c.category != nil {
		category = models.CategoryPtr(*c.category)
	}
	query := strings.TrimSpace(c.query)
	c.inflight++
	c.mu.Unlock()
	c.pub.Publish(events.Event{Type: events.BrowseLoading, Data: true})

	var (
		results []models.SearchResult
		err     error
	)
	if query == "" {
		results, err = c.backend.BrowseKnowledge(ctx, transport.BrowseParams{
			Category: category,
			Page:     transport.DefaultPage,
			PageSize: c.pageSize,
		}, lang)
	} else {
		results, err = c.backend.SearchKnowledge(ctx, query, category, lang)
	}

	c.mu.Lock()
	c.inflight--
	loading := c.inflight > 0
	stale := seq < c.applied
	if !stale {
		c.applied = seq
		if err != nil {
			c.banner = c.tr.T(lang, "browse.failed")
		} else {
			c.banner = ""
			c.results = results
		}
	}
	banner := c.banner
	c.mu.Unlock()

	c.pub.Publish(events.Event{Type: events.BrowseLoading, Data: loading})
	if stale {
		c.logger.Debug("browse: dropped stale response", slog.Uint64("seq", seq))
		return nil
	}
	if err != nil {
		c.logger.Warn("browse: reload failed",
			slog.String("mode", string(modeFor(query))),
			slog.String("error", err.Error()))
		c.pub.Publish(events.Event{Type: events.BrowseBanner, Data: banner})
		return err
	}
	c.pub.Publish(events.Event{Type: events.BrowseResults, Data: results})
	return nil
}

func modeFor(query string) Mode {
	if strings.TrimSpace(query) == "" {
		return ModeBrowse
	}
	return ModeSearch
}
