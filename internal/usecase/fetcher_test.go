package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsPull/internal/domain/models"
	domrepo "NewsPull/internal/domain/repository"
	internalrepo "NewsPull/internal/repository"
	applogger "NewsPull/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordFetched(source, symbol string, n int)    {}
func (nopMetrics) RecordStored(source, symbol string, n int)     {}
func (nopMetrics) RecordDuplicates(source, symbol string, n int) {}
func (nopMetrics) RecordError(kind string)                       {}
func (nopMetrics) RecordStackDepth(symbol string, depth int)     {}
func (nopMetrics) RecordLatency(op string, seconds float64)      {}

func newTestLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	return l
}

type fetchCall struct {
	symbol   string
	from, to time.Time
}

type fakeProvider struct {
	name string
	recs []models.ProviderRecord
	err  error

	mu    sync.Mutex
	calls []fetchCall
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Fetch(ctx context.Context, symbol string, from, to time.Time) ([]models.ProviderRecord, error) {
	p.mu.Lock()
	p.calls = append(p.calls, fetchCall{symbol: symbol, from: from, to: to})
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.recs, nil
}

func (p *fakeProvider) lastCall() fetchCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[len(p.calls)-1]
}

func record(url string) models.ProviderRecord {
	return models.ProviderRecord{
		Title:       "title " + url,
		URL:         url,
		PublishedAt: time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
	}
}

func TestFetchCycleStoresAndAdvancesWatermark(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	watermarks := internalrepo.NewMemoryWatermarkStore(time.Minute, 24*time.Hour, internalrepo.WithClock(clock))
	staging := internalrepo.NewMemoryStagingStore(internalrepo.WithClock(clock))
	provider := &fakeProvider{name: "finnhub", recs: []models.ProviderRecord{
		record("https://example.com/a"),
		record("https://example.com/b"),
	}}

	f := NewFetcher([]domrepo.Provider{provider}, watermarks, staging, NewNormalizer(), nopMetrics{}, newTestLogger(t), withFetchClock(clock))

	report, err := f.FetchCycle(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	require.Equal(t, 2, report.TotalFetched)
	require.Equal(t, 2, report.TotalStored)

	call := provider.lastCall()
	require.Equal(t, "AAPL", call.symbol)
	require.Equal(t, now.Add(-24*time.Hour), call.from)
	require.Equal(t, now, call.to)

	wm, err := watermarks.Get(context.Background(), "AAPL", "finnhub")
	require.NoError(t, err)
	require.Equal(t, models.FetchSuccess, wm.Status)
	require.Equal(t, now, wm.LastTo)
	require.Equal(t, 2, wm.ArticlesFetched)
	require.Equal(t, 2, wm.ArticlesStored)
}

func TestFetchCycleFailureRetriesSameWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	watermarks := internalrepo.NewMemoryWatermarkStore(time.Minute, 24*time.Hour, internalrepo.WithClock(clock))
	staging := internalrepo.NewMemoryStagingStore(internalrepo.WithClock(clock))
	provider := &fakeProvider{name: "finnhub", err: errors.New("boom")}

	f := NewFetcher([]domrepo.Provider{provider}, watermarks, staging, NewNormalizer(), nopMetrics{}, newTestLogger(t), withFetchClock(clock))

	report, err := f.FetchCycle(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	require.Equal(t, 0, report.TotalStored)
	require.NotEmpty(t, report.Symbols[0].Sources[0].Error)

	firstFrom := provider.lastCall().from

	// Recover and run again later: the window must restart at the failed from.
	provider.err = nil
	now = now.Add(time.Hour)

	_, err = f.FetchCycle(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	require.Equal(t, firstFrom, provider.lastCall().from)
	require.Equal(t, now, provider.lastCall().to)
}

func TestFetchCycleOverlapRefetchCountsDuplicates(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	watermarks := internalrepo.NewMemoryWatermarkStore(time.Minute, 24*time.Hour, internalrepo.WithClock(clock))
	staging := internalrepo.NewMemoryStagingStore(internalrepo.WithClock(clock))
	provider := &fakeProvider{name: "finnhub", recs: []models.ProviderRecord{record("https://example.com/a")}}

	f := NewFetcher([]domrepo.Provider{provider}, watermarks, staging, NewNormalizer(), nopMetrics{}, newTestLogger(t), withFetchClock(clock))
	ctx := context.Background()

	_, err := f.FetchCycle(ctx, []string{"AAPL"})
	require.NoError(t, err)

	// Next cycle overlaps the last window and sees the same article again.
	now = now.Add(30 * time.Minute)
	report, err := f.FetchCycle(ctx, []string{"AAPL"})
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalFetched)
	require.Equal(t, 0, report.TotalStored)
	require.Equal(t, 1, report.Symbols[0].Sources[0].Duplicates)
}

func TestFetchCycleRunsEveryPairDespiteOneFailure(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	watermarks := internalrepo.NewMemoryWatermarkStore(time.Minute, 24*time.Hour, internalrepo.WithClock(clock))
	staging := internalrepo.NewMemoryStagingStore(internalrepo.WithClock(clock))
	good := &fakeProvider{name: "finnhub", recs: []models.ProviderRecord{record("https://example.com/a")}}
	bad := &fakeProvider{name: "polygon", err: errors.New("rate limited")}

	f := NewFetcher([]domrepo.Provider{good, bad}, watermarks, staging, NewNormalizer(), nopMetrics{}, newTestLogger(t), withFetchClock(clock))

	report, err := f.FetchCycle(context.Background(), []string{"AAPL", "MSFT"})
	require.NoError(t, err)
	require.Len(t, report.Symbols, 2)
	require.Equal(t, 2, report.TotalStored)

	// Every (symbol, source) pair got a watermark, failures included.
	for _, symbol := range []string{"AAPL", "MSFT"} {
		wm, err := watermarks.Get(context.Background(), symbol, "polygon")
		require.NoError(t, err)
		require.Equal(t, models.FetchFailure, wm.Status)
	}
}

func TestFetchCycleSkipsMalformedRecords(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	watermarks := internalrepo.NewMemoryWatermarkStore(time.Minute, 24*time.Hour, internalrepo.WithClock(clock))
	staging := internalrepo.NewMemoryStagingStore(internalrepo.WithClock(clock))
	provider := &fakeProvider{name: "finnhub", recs: []models.ProviderRecord{
		record("https://example.com/a"),
		{Title: "no url"},
	}}

	f := NewFetcher([]domrepo.Provider{provider}, watermarks, staging, NewNormalizer(), nopMetrics{}, newTestLogger(t), withFetchClock(clock))

	report, err := f.FetchCycle(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	require.Equal(t, 2, report.TotalFetched)
	require.Equal(t, 1, report.TotalStored)
	require.Equal(t, 1, report.Symbols[0].Sources[0].Skipped)
}

func TestFetcherSourcesListsProviders(t *testing.T) {
	f := NewFetcher(
		[]domrepo.Provider{&fakeProvider{name: "finnhub"}, &fakeProvider{name: "polygon"}},
		internalrepo.NewMemoryWatermarkStore(time.Minute, time.Hour),
		internalrepo.NewMemoryStagingStore(),
		NewNormalizer(), nopMetrics{}, newTestLogger(t),
	)
	require.ElementsMatch(t, []string{"finnhub", "polygon"}, f.Sources())
}
