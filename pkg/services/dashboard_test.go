package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdash/opsdash/pkg/config"
	"github.com/opsdash/opsdash/pkg/errors"
	"github.com/opsdash/opsdash/pkg/storage/sqlite"
)

func testConfig() *config.Config {
	return &config.Config{
		Amazon:    config.Amazon{AccessKey: "mock", SecretKey: "mock", Marketplace: "US"},
		Dashboard: config.Dashboard{Marketplace: "US", WindowDays: 7, TopN: 20},
		Storage:   config.Storage{},
		OpenAI:    config.OpenAI{},
	}
}

func testContext(t *testing.T, opts ...Option) *Context {
	t.Helper()
	sc, err := NewContext(context.Background(), testConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Close() })
	return sc
}

func testStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "test.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type fakeLLM struct {
	prompt string
	reply  string
	err    error
}

func (f *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

type fakeBestsellers struct {
	query BestsellerQuery
	items []BestsellerItem
}

func (f *fakeBestsellers) Search(_ context.Context, q BestsellerQuery) ([]BestsellerItem, error) {
	f.query = q
	return f.items, nil
}

func TestFetchDashboardDataExplicitWindow(t *testing.T) {
	t.Parallel()

	sc := testContext(t)
	res, err := FetchDashboardData(context.Background(), sc, map[string]any{
		"start": "2026-01-01",
		"end":   "2026-01-03",
	})
	require.NoError(t, err)

	m := res.(map[string]any)
	window := m["window"].(map[string]any)
	assert.Equal(t, "2026-01-01", window["start"])
	assert.Equal(t, "2026-01-03", window["end"])

	// Three default ASINs over three days.
	assert.Len(t, m["sales"].([]SalesRow), 9)
	assert.Len(t, m["traffic"].([]TrafficRow), 9)
}

func TestFetchDashboardDataStartAnchorsWindow(t *testing.T) {
	t.Parallel()

	sc := testContext(t)
	res, err := FetchDashboardData(context.Background(), sc, map[string]any{
		"start":       "2026-01-01",
		"window_days": 3,
	})
	require.NoError(t, err)

	window := res.(map[string]any)["window"].(map[string]any)
	assert.Equal(t, "2026-01-03", window["end"])
}

func TestFetchDashboardDataEndAnchorsWindow(t *testing.T) {
	t.Parallel()

	sc := testContext(t)
	res, err := FetchDashboardData(context.Background(), sc, map[string]any{
		"end":         "2026-01-10",
		"window_days": 3,
	})
	require.NoError(t, err)

	window := res.(map[string]any)["window"].(map[string]any)
	assert.Equal(t, "2026-01-08", window["start"])
}

func TestFetchDashboardDataDefaultWindow(t *testing.T) {
	t.Parallel()

	sc := testContext(t)
	res, err := FetchDashboardData(context.Background(), sc, map[string]any{})
	require.NoError(t, err)

	window := res.(map[string]any)["window"].(map[string]any)
	start, err := time.Parse("2006-01-02", window["start"].(string))
	require.NoError(t, err)
	end, err := time.Parse("2006-01-02", window["end"].(string))
	require.NoError(t, err)
	assert.Equal(t, 6, int(end.Sub(start).Hours()/24))
}

func TestFetchDashboardDataInvalidWindow(t *testing.T) {
	t.Parallel()

	sc := testContext(t)

	_, err := FetchDashboardData(context.Background(), sc, map[string]any{
		"start": "2026-01-10",
		"end":   "2026-01-01",
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = FetchDashboardData(context.Background(), sc, map[string]any{
		"start": "01/10/2026",
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
}

func fetchWindow(t *testing.T, sc *Context) map[string]any {
	t.Helper()
	res, err := FetchDashboardData(context.Background(), sc, map[string]any{
		"start": "2026-01-01",
		"end":   "2026-01-07",
	})
	require.NoError(t, err)
	return res.(map[string]any)
}

func TestComputeDashboardMetrics(t *testing.T) {
	t.Parallel()

	sc := testContext(t)
	fetched := fetchWindow(t, sc)

	res, err := ComputeDashboardMetrics(context.Background(), sc, map[string]any{
		"start":   "2026-01-01",
		"end":     "2026-01-07",
		"sales":   fetched["sales"],
		"traffic": fetched["traffic"],
	})
	require.NoError(t, err)

	m := res.(map[string]any)
	summary := m["summary"].(map[string]any)
	totals := summary["totals"].(map[string]any)
	assert.Greater(t, totals["revenue"].(float64), 0.0)
	assert.NotEmpty(t, summary["top_products"])
	assert.NotContains(t, m, "summary_id")
}

func TestComputeDashboardMetricsPersists(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	sc := testContext(t, WithStore(store))
	fetched := fetchWindow(t, sc)

	res, err := ComputeDashboardMetrics(context.Background(), sc, map[string]any{
		"start":   "2026-01-01",
		"end":     "2026-01-07",
		"sales":   fetched["sales"],
		"traffic": fetched["traffic"],
	})
	require.NoError(t, err)
	assert.Contains(t, res.(map[string]any), "summary_id")

	saved, err := store.RecentSummaries(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "2026-01-01", saved[0].Start)
}

func TestComputeDashboardMetricsRequiresWindow(t *testing.T) {
	t.Parallel()

	sc := testContext(t)
	_, err := ComputeDashboardMetrics(context.Background(), sc, map[string]any{
		"start": "2026-01-01",
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestGenerateDashboardInsights(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{reply: "revenue is trending up"}
	sc := testContext(t, WithLLM(llm))

	res, err := GenerateDashboardInsights(context.Background(), sc, map[string]any{
		"start": "2026-01-01",
		"end":   "2026-01-07",
	})
	require.NoError(t, err)

	report := res.(map[string]any)["report"].(map[string]any)
	assert.Equal(t, "revenue is trending up", report["insights"])
	assert.Contains(t, report, "summary")
	assert.Contains(t, llm.prompt, "top_products")
}

func TestGenerateDashboardInsightsWithoutModel(t *testing.T) {
	t.Parallel()

	sc := testContext(t)
	_, err := GenerateDashboardInsights(context.Background(), sc, map[string]any{})
	require.Error(t, err)
	assert.True(t, errors.IsHandler(err))
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestBestsellerSearchWithProvider(t *testing.T) {
	t.Parallel()

	provider := &fakeBestsellers{items: []BestsellerItem{{ASIN: "B0X", Title: "Widget", Rank: 1}}}
	sc := testContext(t, WithBestsellers(provider))

	res, err := BestsellerSearch(context.Background(), sc, map[string]any{
		"query": "widgets",
	})
	require.NoError(t, err)

	m := res.(map[string]any)
	assert.Equal(t, "widgets", m["query"])
	assert.Len(t, m["items"].([]BestsellerItem), 1)
	assert.Equal(t, "US", provider.query.Marketplace)
	assert.Equal(t, 10, provider.query.Limit)
}

func TestBestsellerSearchMockCredentials(t *testing.T) {
	t.Parallel()

	sc := testContext(t)
	_, err := BestsellerSearch(context.Background(), sc, map[string]any{
		"query": "widgets",
	})
	require.Error(t, err)
	assert.True(t, errors.IsHandler(err))
	assert.Contains(t, err.Error(), "mock")
}

func TestBestsellerSearchRequiresQuery(t *testing.T) {
	t.Parallel()

	sc := testContext(t)
	_, err := BestsellerSearch(context.Background(), sc, map[string]any{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
}
