package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsPull/internal/domain/models"
	internalrepo "NewsPull/internal/repository"
)

type capturingPublisher struct {
	mu      sync.Mutex
	entries []models.StackEntry
	err     error
}

func (p *capturingPublisher) PublishRanked(ctx context.Context, entry models.StackEntry) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	p.entries = append(p.entries, entry)
	p.mu.Unlock()
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

type fakeCategorizer struct {
	label string
	err   error
	calls int
}

func (c *fakeCategorizer) Categorize(ctx context.Context, item models.RawNewsItem) (string, error) {
	c.calls++
	return c.label, c.err
}

func stageItems(t *testing.T, staging *internalrepo.MemoryStagingStore, items ...models.RawNewsItem) {
	t.Helper()
	stats, err := staging.InsertBatch(context.Background(), items)
	require.NoError(t, err)
	require.Equal(t, len(items), stats.Inserted)
}

func stagedItem(symbol, url string) models.RawNewsItem {
	return models.RawNewsItem{
		Symbol:      symbol,
		Source:      "finnhub",
		Title:       "title " + url,
		URL:         url,
		PublishedAt: time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
	}
}

func TestProcessPendingPushesAndCompletes(t *testing.T) {
	staging := internalrepo.NewMemoryStagingStore()
	stacks := internalrepo.NewMemoryStackStore(5)
	pub := &capturingPublisher{}

	stageItems(t, staging,
		stagedItem("AAPL", "https://example.com/a"),
		stagedItem("AAPL", "https://example.com/b"),
	)

	p := NewProcessor(staging, stacks, pub, nil, nopMetrics{}, newTestLogger(t))
	stats, err := p.ProcessPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.Claimed)
	require.Equal(t, 2, stats.Pushed)
	require.Zero(t, stats.Duplicate)
	require.Zero(t, stats.Failed)

	top, err := stacks.Top(context.Background(), "AAPL", 5)
	require.NoError(t, err)
	require.Len(t, top, 2)

	require.Len(t, pub.entries, 2)
	for _, e := range pub.entries {
		require.Equal(t, 1, e.Position)
	}

	// Nothing left to claim.
	again, err := p.ProcessPending(context.Background())
	require.NoError(t, err)
	require.Zero(t, again.Claimed)
}

func TestProcessPendingCompletesStackDuplicates(t *testing.T) {
	staging := internalrepo.NewMemoryStagingStore()
	stacks := internalrepo.NewMemoryStackStore(5)

	// Same URL staged by two sources: both pass staging dedup, but only the
	// first lands on the stack.
	a := stagedItem("AAPL", "https://example.com/a")
	b := stagedItem("AAPL", "https://example.com/a")
	b.Source = "polygon"
	stageItems(t, staging, a, b)

	p := NewProcessor(staging, stacks, nil, nil, nopMetrics{}, newTestLogger(t))
	stats, err := p.ProcessPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.Claimed)
	require.Equal(t, 1, stats.Pushed)
	require.Equal(t, 1, stats.Duplicate)

	top, err := stacks.Top(context.Background(), "AAPL", 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
}

func TestProcessPendingMarksFailedOnCategorizerError(t *testing.T) {
	staging := internalrepo.NewMemoryStagingStore()
	stacks := internalrepo.NewMemoryStackStore(5)
	cat := &fakeCategorizer{err: errors.New("categorizer down")}

	stageItems(t, staging, stagedItem("AAPL", "https://example.com/a"))

	p := NewProcessor(staging, stacks, nil, cat, nopMetrics{}, newTestLogger(t))
	stats, err := p.ProcessPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 1, cat.calls)

	// The item reached the stack before categorization failed; the staging
	// record is what carries the failure.
	top, err := stacks.Top(context.Background(), "AAPL", 5)
	require.NoError(t, err)
	require.Len(t, top, 1)

	// Terminal: not claimable again.
	again, err := p.ProcessPending(context.Background())
	require.NoError(t, err)
	require.Zero(t, again.Claimed)
}

func TestProcessPendingPublishFailureStillCompletes(t *testing.T) {
	staging := internalrepo.NewMemoryStagingStore()
	stacks := internalrepo.NewMemoryStackStore(5)
	pub := &capturingPublisher{err: errors.New("broker down")}

	stageItems(t, staging, stagedItem("AAPL", "https://example.com/a"))

	p := NewProcessor(staging, stacks, pub, nil, nopMetrics{}, newTestLogger(t))
	stats, err := p.ProcessPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Pushed)
	require.Zero(t, stats.Failed)
}

func TestProcessPendingDrainsAcrossBatches(t *testing.T) {
	staging := internalrepo.NewMemoryStagingStore()
	stacks := internalrepo.NewMemoryStackStore(5)

	items := make([]models.RawNewsItem, 0, 7)
	for _, url := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		items = append(items, stagedItem("AAPL", "https://example.com/"+url))
	}
	stageItems(t, staging, items...)

	p := NewProcessor(staging, stacks, nil, nil, nopMetrics{}, newTestLogger(t), WithBatchSize(3))
	stats, err := p.ProcessPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, stats.Claimed)
	require.Equal(t, 7, stats.Pushed)

	// Stack is capped even though all seven completed.
	top, err := stacks.Top(context.Background(), "AAPL", 10)
	require.NoError(t, err)
	require.Len(t, top, 5)
	require.Equal(t, "https://example.com/g", top[0].URL)
}

func TestSweeperRecoversStaleClaims(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := now
	staging := internalrepo.NewMemoryStagingStore(internalrepo.WithClock(func() time.Time { return current }))

	stageItems(t, staging, stagedItem("AAPL", "https://example.com/a"))
	_, err := staging.ClaimPending(context.Background(), 1)
	require.NoError(t, err)

	s := NewSweeper(staging, nopMetrics{}, newTestLogger(t), 10*time.Minute)

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)

	current = now.Add(15 * time.Minute)
	n, err = s.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
