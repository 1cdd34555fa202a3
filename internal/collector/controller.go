// Package collector runs the human-gated pipeline that turns web pages into
// corpus documents: search the web, have a page extracted into a draft,
// review and edit the draft, then import it.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/healthlib/internal/apperr"
	"github.com/starford/healthlib/internal/events"
	"github.com/starford/healthlib/internal/locale"
	"github.com/starford/healthlib/internal/models"
	"github.com/starford/healthlib/internal/transport"
)

// Stage is the pipeline position derived from the controller's flags.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageSearching   Stage = "searching"
	StageResults     Stage = "results"
	StagePreviewing  Stage = "previewing"
	StageReviewReady Stage = "review_ready"
	StageImporting   Stage = "importing"
)

// DraftStore keeps the item under review across restarts.
type DraftStore interface {
	SaveDraft(p models.ContentPreview) error
	LoadDraft() (models.ContentPreview, error)
	DeleteDraft() error
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	Stage     Stage
	Query     string
	Results   []models.WebSearchResult
	Searching bool
	Analyzing bool
	Importing bool
	// Review is the item under review, nil when there is none.
	Review *models.ContentPreview
	// Banner is a localized error message; Notice a localized success message.
	Banner     string
	Notice     string
	LastImport *models.ImportResult
}

// Controller owns at most one item under review.
type Controller struct {
	backend transport.Backend
	tr      locale.Translator
	pub     events.Publisher
	logger  *slog.Logger
	drafts  DraftStore

	mu         sync.Mutex
	query      string
	results    []models.WebSearchResult
	searching  bool
	analyzing  bool
	importing  bool
	review     *models.ContentPreview
	banner     string
	notice     string
	lastImport *models.ImportResult
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

// WithDraftStore persists the item under review.
func WithDraftStore(s DraftStore) Option {
	return func(c *Controller) { c.drafts = s }
}

// New creates a Controller.
func New(backend transport.Backend, tr locale.Translator, opts ...Option) *Controller {
	c := &Controller{
		backend: backend,
		tr:      tr,
		pub:     events.Discard,
		logger:  slog.Default(),
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
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Stage:     c.stageLocked(),
		Query:     c.query,
		Results:   append([]models.WebSearchResult(nil), c.results...),
		Searching: c.searching,
		Analyzing: c.analyzing,
		Importing: c.importing,
		Banner:    c.banner,
		Notice:    c.notice,
	}
	if c.review != nil {
		r := *c.review
		s.Review = &r
	}
	if c.lastImport != nil {
		li := *c.lastImport
		s.LastImport = &li
	}
	return s
}

func (c *Controller) stageLocked() Stage {
	switch {
	case c.importing:
		return StageImporting
	case c.analyzing:
		return StagePreviewing
	case c.review != nil:
		return StageReviewReady
	case c.searching:
		return StageSearching
	case len(c.results) > 0:
		return StageResults
	default:
		return StageIdle
	}
}

// Search looks for pages matching query and replaces the result list on
// success. A blank query is rejected without a request.
func (c *Controller) Search(ctx context.Context, lang models.Lang, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return apperr.ErrBlankInput
	}

	c.mu.Lock()
	if c.searching {
		c.mu.Unlock()
		return apperr.ErrBusy
	}
	c.searching = true
	c.query = query
	c.banner = ""
	c.mu.Unlock()
	c.publishState()

	results, err := c.backend.WebSearch(ctx, query)

	c.mu.Lock()
	c.searching = false
	if err != nil {
		c.banner = c.tr.T(lang, "collector.search_failed")
	} else {
		c.results = results
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("collector: search failed", slog.String("query", query), slog.String("error", err.Error()))
		c.publishBanner()
		c.publishState()
		return err
	}
	c.logger.Debug("collector: search done", slog.String("query", query), slog.Int("results", len(results)))
	c.pub.Publish(events.Event{Type: events.CollectorResults, Data: results})
	c.publishState()
	return nil
}

// ResultURL returns the URL of the i-th search result.
func (c *Controller) ResultURL(i int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.results) {
		return "", fmt.Errorf("result %d: %w", i, apperr.ErrNotFound)
	}
	return c.results[i].URL, nil
}

// Preview asks the backend to extract pageURL into a draft. On success the
// draft becomes the item under review; on failure any previous item is kept.
// Cancel does not abort a pending preview.
func (c *Controller) Preview(ctx context.Context, lang models.Lang, pageURL string) error {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return apperr.ErrBlankInput
	}

	c.mu.Lock()
	if c.analyzing {
		c.mu.Unlock()
		return apperr.ErrBusy
	}
	c.analyzing = true
	c.banner = ""
	c.mu.Unlock()
	c.publishState()

	draft, err := c.backend.PreviewContent(ctx, pageURL)

	c.mu.Lock()
	c.analyzing = false
	if err != nil {
		c.banner = c.tr.T(lang, "collector.preview_failed")
	} else {
		if draft.URL == "" {
			draft.URL = pageURL
		}
		c.review = &draft
		c.notice = ""
		c.saveDraftLocked()
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("collector: preview failed", slog.String("url", pageURL), slog.String("error", err.Error()))
		c.publishBanner()
		c.publishState()
		return err
	}
	c.pub.Publish(events.Event{Type: events.CollectorReview, Data: draft})
	c.publishState()
	return nil
}

// Edit applies fn to the item under review. The URL cannot be changed.
func (c *Controller) Edit(fn func(*models.ContentPreview)) error {
	c.mu.Lock()
	if c.review == nil {
		c.mu.Unlock()
		return apperr.ErrNoReviewItem
	}
	if c.importing {
		c.mu.Unlock()
		return apperr.ErrBusy
	}
	edited := *c.review
	fn(&edited)
	edited.URL = c.review.URL
	*c.review = edited
	c.saveDraftLocked()
	c.mu.Unlock()

	c.pub.Publish(events.Event{Type: events.CollectorReview, Data: edited})
	return nil
}

// SetTitle edits the draft title.
func (c *Controller) SetTitle(s string) error {
	return c.Edit(func(p *models.ContentPreview) { p.Title = s })
}

// SetSummary edits the draft summary.
func (c *Controller) SetSummary(s string) error {
	return c.Edit(func(p *models.ContentPreview) { p.Summary = s })
}

// SetContent edits the draft body.
func (c *Controller) SetContent(s string) error {
	return c.Edit(func(p *models.ContentPreview) { p.Content = s })
}

// SetSourceName edits the draft source label.
func (c *Controller) SetSourceName(s string) error {
	return c.Edit(func(p *models.ContentPreview) { p.SourceName = s })
}

// SetCategory edits the draft category.
func (c *Controller) SetCategory(id models.CategoryID) error {
	if _, err := models.ParseCategoryID(string(id)); err != nil {
		return err
	}
	return c.Edit(func(p *models.ContentPreview) { p.Category = id })
}

// SetTier edits the draft tier.
func (c *Controller) SetTier(t models.Tier) error {
	if _, err := models.TierFromInt(int(t)); err != nil {
		return err
	}
	return c.Edit(func(p *models.ContentPreview) { p.Tier = t })
}

// Import sends the item under review to the corpus. An incomplete draft is
// refused before any request. On failure the draft stays exactly as edited.
func (c *Controller) Import(ctx context.Context, lang models.Lang) (models.ImportResult, error) {
	c.mu.Lock()
	if c.review == nil {
		c.mu.Unlock()
		return models.ImportResult{}, apperr.ErrNoReviewItem
	}
	if c.importing {
		c.mu.Unlock()
		return models.ImportResult{}, apperr.ErrBusy
	}
	draft := *c.review
	if err := draft.Validate(); err != nil {
		c.banner = c.tr.T(lang, "collector.invalid_draft")
		c.mu.Unlock()
		c.publishBanner()
		return models.ImportResult{}, fmt.Errorf("collector: invalid draft: %w", err)
	}
	reviewed := c.review
	c.importing = true
	c.banner = ""
	c.notice = ""
	c.mu.Unlock()
	c.publishState()

	res, err := c.backend.ImportContent(ctx, draft)

	c.mu.Lock()
	c.importing = false
	if err != nil {
		c.banner = c.tr.T(lang, "collector.import_failed")
	} else {
		c.notice = c.tr.T(lang, "collector.import_success")
		c.lastImport = &res
		if c.review == reviewed {
			c.review = nil
			c.deleteDraftLocked()
		}
	}
	notice := c.notice
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("collector: import failed", slog.String("url", draft.URL), slog.String("error", err.Error()))
		c.publishBanner()
		c.publishState()
		return models.ImportResult{}, err
	}
	c.logger.Info("collector: imported", slog.String("id", res.ID), slog.String("url", draft.URL))
	c.pub.Publish(events.Event{Type: events.CollectorNotice, Data: notice})
	c.publishState()
	return res, nil
}

// Cancel discards the item under review without contacting the backend.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.review = nil
	c.banner = ""
	c.deleteDraftLocked()
	c.mu.Unlock()
	c.publishState()
}

// Restore reloads a persisted draft as the item under review. It does nothing
// when no draft store is configured, no draft exists or an item is already
// under review.
func (c *Controller) Restore() (bool, error) {
	if c.drafts == nil {
		return false, nil
	}
	draft, err := c.drafts.LoadDraft()
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("collector: restore draft: %w", err)
	}

	c.mu.Lock()
	restored := c.review == nil
	if restored {
		c.review = &draft
	}
	c.mu.Unlock()

	if restored {
		c.logger.Info("collector: restored draft", slog.String("url", draft.URL))
		c.publishState()
	}
	return restored, nil
}

// DismissMessages clears the banner and notice.
func (c *Controller) DismissMessages() {
	c.mu.Lock()
	c.banner = ""
	c.notice = ""
	c.mu.Unlock()
}

func (c *Controller) saveDraftLocked() {
	if c.drafts == nil || c.review == nil {
		return
	}
	if err := c.drafts.SaveDraft(*c.review); err != nil {
		c.logger.Warn("collector: save draft failed", slog.String("error", err.Error()))
	}
}

func (c *Controller) deleteDraftLocked() {
	if c.drafts == nil {
		return
	}
	if err := c.drafts.DeleteDraft(); err != nil {
		c.logger.Warn("collector: delete draft failed", slog.String("error", err.Error()))
	}
}

func (c *Controller) publishState() {
	c.pub.Publish(events.Event{Type: events.CollectorState, Data: c.Snapshot().Stage})
}

func (c *Controller) publishBanner() {
	c.mu.Lock()
	banner := c.banner
	c.mu.Unlock()
	c.pub.Publish(events.Event{Type: events.CollectorBanner, Data: banner})
}
