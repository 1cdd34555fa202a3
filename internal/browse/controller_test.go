package browse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/healthlib/internal/events"
	"github.com/starford/healthlib/internal/locale"
	"github.com/starford/healthlib/internal/models"
	"github.com/starford/healthlib/internal/testutil"
	"github.com/starford/healthlib/internal/transport"
)

func setup(t *testing.T, opts ...Option) (*Controller, *testutil.Backend) {
	t.Helper()
	b := testutil.NewBackend(t)
	client := transport.New(b.URL, transport.WithLogger(testutil.Logger(t)))
	opts = append([]Option{WithLogger(testutil.Logger(t))}, opts...)
	return New(client, locale.MustCatalog(), opts...), b
}

func ids(results []models.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestInitLoadsCategoriesAndFirstPage(t *testing.T) {
	c, b := setup(t)
	require.NoError(t, c.Init(context.Background(), models.LangZH))

	s := c.Snapshot()
	assert.Len(t, s.Categories, 5)
	assert.Len(t, s.Results, 6)
	assert.Equal(t, ModeBrowse, s.Mode)
	assert.False(t, s.Loading)
	for _, r := range s.Results {
		assert.Equal(t, models.BrowseScore, r.RelevanceScore)
	}

	req, ok := b.LastRequest(testutil.RouteBrowse)
	require.True(t, ok)
	assert.Equal(t, "zh", req.Query.Get("lang"))
	assert.Equal(t, "1", req.Query.Get("page"))
	assert.Equal(t, "20", req.Query.Get("page_size"))
	assert.Empty(t, req.Query.Get("category"))
}

func TestSelectCategoryClearsQueryAndBrowses(t *testing.T) {
	c, b := setup(t)
	ctx := context.Background()

	c.SetQuery("sleep")
	require.NoError(t, c.SelectCategory(ctx, models.LangZH, models.CategoryPtr(models.CategoryHeartRate)))

	s := c.Snapshot()
	assert.Empty(t, s.Query)
	assert.Equal(t, ModeBrowse, s.Mode)
	require.NotNil(t, s.Category)
	assert.Equal(t, models.CategoryHeartRate, *s.Category)
	assert.ElementsMatch(t, []string{"hr-001", "hr-002"}, ids(s.Results))
	assert.Equal(t, 0, b.Calls(testutil.RouteSearch))

	require.NoError(t, c.SelectCategory(ctx, models.LangZH, nil))
	s = c.Snapshot()
	assert.Nil(t, s.Category)
	assert.Len(t, s.Results, 6)
}

func TestSequentialTogglesAreOrdered(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, c.SelectCategory(ctx, models.LangEN, models.CategoryPtr(models.CategorySleep)))
	assert.Equal(t, []string{"sl-001"}, ids(c.Snapshot().Results))

	c.SetQuery("stress")
	require.NoError(t, c.SubmitSearch(ctx, models.LangEN))
	s := c.Snapshot()
	assert.Equal(t, ModeSearch, s.Mode)
	assert.Empty(t, s.Results, "search is scoped to the sleep category")

	require.NoError(t, c.SelectCategory(ctx, models.LangEN, nil))
	c.SetQuery("stress")
	require.NoError(t, c.SubmitSearch(ctx, models.LangEN))
	assert.Equal(t, []string{"st-001"}, ids(c.Snapshot().Results))
}

func TestSearchWithoutCategorySpansCategories(t *testing.T) {
	c, b := setup(t)
	c.SetQuery("heart rate zones")
	require.NoError(t, c.SubmitSearch(context.Background(), models.LangEN))

	req, ok := b.LastRequest(testutil.RouteSearch)
	require.True(t, ok)
	assert.False(t, req.Query.Has("category"))

	seen := make(map[models.CategoryID]bool)
	for _, r := range c.Snapshot().Results {
		seen[r.Metadata.Category] = true
	}
	assert.GreaterOrEqual(t, len(seen), 2, "results should span several categories: %v", seen)
}

func TestSearchScopedToSelectedCategory(t *testing.T) {
	c, b := setup(t)
	ctx := context.Background()
	require.NoError(t, c.SelectCategory(ctx, models.LangEN, models.CategoryPtr(models.CategoryExercise)))

	c.SetQuery("heart rate zones")
	require.NoError(t, c.SubmitSearch(ctx, models.LangEN))

	req, _ := b.LastRequest(testutil.RouteSearch)
	assert.Equal(t, "exercise", req.Query.Get("category"))
	assert.Equal(t, []string{"ex-001"}, ids(c.Snapshot().Results))
}

func TestBlankSearchBrowses(t *testing.T) {
	c, b := setup(t)
	c.SetQuery("   ")
	require.NoError(t, c.SubmitSearch(context.Background(), models.LangZH))

	assert.Equal(t, 0, b.Calls(testutil.RouteSearch))
	assert.Equal(t, 1, b.Calls(testutil.RouteBrowse))
	assert.Len(t, c.Snapshot().Results, 6)
}

func TestSetLanguageReloadsCurrentMode(t *testing.T) {
	c, b := setup(t)
	ctx := context.Background()
	require.NoError(t, c.Init(ctx, models.LangZH))
	assert.Equal(t, "静息心率", c.Snapshot().Results[0].Metadata.Title)

	require.NoError(t, c.SetLanguage(ctx, models.LangEN))
	s := c.Snapshot()
	assert.Equal(t, "Resting heart rate", s.Results[0].Metadata.Title)
	assert.Equal(t, "Heart Rate", s.Categories[0].Name)

	c.SetQuery("sleep")
	require.NoError(t, c.SubmitSearch(ctx, models.LangEN))
	require.NoError(t, c.SetLanguage(ctx, models.LangZH))
	req, _ := b.LastRequest(testutil.RouteSearch)
	assert.Equal(t, "zh", req.Query.Get("lang"))
	assert.Equal(t, "sleep", req.Query.Get("q"))
	assert.Equal(t, ModeSearch, c.Snapshot().Mode)
}

func TestOpenDetail(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, c.Init(ctx, models.LangEN))

	item := c.OpenDetail(ctx, models.LangEN, c.Snapshot().Results[0])
	assert.Equal(t, "hr-001", item.ID)
	assert.Equal(t, "Resting heart rate", item.Title)
	require.NotNil(t, c.Snapshot().Detail)

	c.CloseDetail()
	assert.Nil(t, c.Snapshot().Detail)
}

func TestOpenDetailFallsBackToSummary(t *testing.T) {
	c, b := setup(t)
	b.Fail(testutil.RouteItem)

	r := models.SearchResult{
		ID:      "hr-009",
		Content: "summary text",
		Metadata: models.ResultMetadata{
			Title:     "Recovery heart rate",
			Source:    "ACC",
			SourceURL: "https://acc.org/recovery",
			Category:  models.CategoryHeartRate,
			Tier:      models.TierResearch,
		},
		RelevanceScore: 0.42,
	}
	item := c.OpenDetail(context.Background(), models.LangZH, r)

	assert.Equal(t, r.ID, item.ID)
	assert.Equal(t, r.Content, item.Content)
	assert.Equal(t, r.Metadata.Title, item.Title)
	assert.Equal(t, r.Metadata.Category, item.Category)
	assert.Equal(t, r.Metadata.Source, item.Source)
	assert.Equal(t, r.Metadata.SourceURL, item.SourceURL)
	assert.Equal(t, r.Metadata.Tier, item.Tier)
	assert.Equal(t, 1, b.Calls(testutil.RouteItem))
}

func TestReloadFailureKeepsResults(t *testing.T) {
	c, b := setup(t)
	ctx := context.Background()
	require.NoError(t, c.Init(ctx, models.LangEN))

	b.Fail(testutil.RouteSearch)
	c.SetQuery("sleep")
	err := c.SubmitSearch(ctx, models.LangEN)

	var rf *transport.RequestFailedError
	require.ErrorAs(t, err, &rf)
	s := c.Snapshot()
	assert.Len(t, s.Results, 6)
	assert.False(t, s.Loading)
	assert.Equal(t, "Could not load results. Please try again.", s.Banner)

	b.Recover(testutil.RouteSearch)
	require.NoError(t, c.SubmitSearch(ctx, models.LangEN))
	assert.Empty(t, c.Snapshot().Banner)
}

func TestStaleResponseIsDropped(t *testing.T) {
	c, b := setup(t)
	ctx := context.Background()

	release := b.Hold(testutil.RouteSearch)
	c.SetQuery("sleep")
	done := make(chan error, 1)
	go func() { done <- c.SubmitSearch(ctx, models.LangEN) }()

	require.Eventually(t, func() bool { return b.Calls(testutil.RouteSearch) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, c.Snapshot().Loading)

	require.NoError(t, c.SelectCategory(ctx, models.LangEN, models.CategoryPtr(models.CategoryStress)))
	assert.Equal(t, []string{"st-001"}, ids(c.Snapshot().Results))
	assert.True(t, c.Snapshot().Loading, "older search still in flight")

	release()
	require.NoError(t, <-done)

	s := c.Snapshot()
	assert.Equal(t, []string{"st-001"}, ids(s.Results), "older search must not overwrite newer browse")
	assert.False(t, s.Loading)
}

func TestWithCategoryScopesFirstSearch(t *testing.T) {
	c, b := setup(t, WithCategory(models.CategorySleep))
	c.SetQuery("sleep")
	require.NoError(t, c.SubmitSearch(context.Background(), models.LangEN))

	req, ok := b.LastRequest(testutil.RouteSearch)
	require.True(t, ok)
	assert.Equal(t, "sleep", req.Query.Get("category"))
	assert.Equal(t, 0, b.Calls(testutil.RouteBrowse))
}

func TestStaleCategoriesAreDropped(t *testing.T) {
	c, b := setup(t)
	ctx := context.Background()

	releaseZH := b.Hold(testutil.RouteCategories)
	done := make(chan error, 1)
	go func() { done <- c.SetLanguage(ctx, models.LangZH) }()
	require.Eventually(t, func() bool { return b.Calls(testutil.RouteCategories) == 1 }, 2*time.Second, 10*time.Millisecond)

	// Let later category calls through while the zh one stays parked.
	b.Hold(testutil.RouteCategories)()
	require.NoError(t, c.SetLanguage(ctx, models.LangEN))
	require.NotEmpty(t, c.Snapshot().Categories)
	assert.Equal(t, "Heart Rate", c.Snapshot().Categories[0].Name)

	releaseZH()
	require.NoError(t, <-done)

	cats := c.Snapshot().Categories
	require.NotEmpty(t, cats)
	assert.Equal(t, "Heart Rate", cats[0].Name, "older zh categories must not overwrite en")
}

func TestSetLanguageRefreshesOpenDetail(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, c.Init(ctx, models.LangZH))

	var first models.SearchResult
	for _, r := range c.Snapshot().Results {
		if r.ID == "hr-001" {
			first = r
		}
	}
	require.Equal(t, "hr-001", first.ID)
	assert.Equal(t, "静息心率", c.OpenDetail(ctx, models.LangZH, first).Title)

	require.NoError(t, c.SetLanguage(ctx, models.LangEN))
	detail := c.Snapshot().Detail
	require.NotNil(t, detail)
	assert.Equal(t, "hr-001", detail.ID)
	assert.Equal(t, "Resting heart rate", detail.Title)
}

func TestSetLanguageDetailFallsBackToSummary(t *testing.T) {
	c, b := setup(t)
	ctx := context.Background()
	require.NoError(t, c.Init(ctx, models.LangZH))

	r := c.Snapshot().Results[0]
	c.OpenDetail(ctx, models.LangZH, r)
	b.Fail(testutil.RouteItem)

	require.NoError(t, c.SetLanguage(ctx, models.LangEN))
	detail := c.Snapshot().Detail
	require.NotNil(t, detail)
	assert.Equal(t, r.AsKnowledgeItem(), *detail)
}

func TestSetLanguageLeavesClosedDetail(t *testing.T) {
	c, b := setup(t)
	ctx := context.Background()
	require.NoError(t, c.Init(ctx, models.LangZH))
	c.OpenDetail(ctx, models.LangZH, c.Snapshot().Results[0])
	c.CloseDetail()
	calls := b.Calls(testutil.RouteItem)

	require.NoError(t, c.SetLanguage(ctx, models.LangEN))
	assert.Nil(t, c.Snapshot().Detail)
	assert.Equal(t, calls, b.Calls(testutil.RouteItem))
}

func TestPublishesEvents(t *testing.T) {
	broker := events.NewBroker()
	defer broker.Close()
	sub := broker.Subscribe()

	c, _ := setup(t, WithPublisher(broker))
	require.NoError(t, c.SelectCategory(context.Background(), models.LangZH, nil))

	var types []string
	timeout := time.After(2 * time.Second)
	for len(types) < 3 {
		select {
		case ev := <-sub:
			types = append(types, ev.Type)
		case <-timeout:
			t.Fatalf("got only %v", types)
		}
	}
	assert.Equal(t, []string{events.BrowseLoading, events.BrowseLoading, events.BrowseResults}, types)
}
