package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsPull/internal/domain/models"
	domrepo "NewsPull/internal/domain/repository"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newItem(symbol, source, url string) models.RawNewsItem {
	return models.RawNewsItem{
		Symbol:      symbol,
		Source:      source,
		Title:       "title for " + url,
		URL:         url,
		PublishedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// --- Watermarks ---

func TestNextWindowFirstFetchUsesLookback(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryWatermarkStore(time.Minute, 24*time.Hour, WithClock(fixedClock(now)))

	from, to, err := s.NextWindow(context.Background(), "AAPL", "finnhub")
	require.NoError(t, err)
	require.Equal(t, now.Add(-24*time.Hour), from)
	require.Equal(t, now, to)
}

func TestNextWindowIsIdempotentUntilRecorded(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryWatermarkStore(time.Minute, 24*time.Hour, WithClock(fixedClock(now)))

	f1, t1, err := s.NextWindow(context.Background(), "AAPL", "finnhub")
	require.NoError(t, err)
	f2, t2, err := s.NextWindow(context.Background(), "AAPL", "finnhub")
	require.NoError(t, err)
	require.Equal(t, f1, f2)
	require.Equal(t, t1, t2)
}

func TestNextWindowAfterSuccessOverlapsLastTo(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryWatermarkStore(time.Minute, 24*time.Hour, WithClock(fixedClock(now)))

	lastTo := now.Add(-time.Hour)
	require.NoError(t, s.RecordResult(context.Background(), models.FetchResult{
		Symbol: "AAPL",
		Source: "finnhub",
		From:   lastTo.Add(-2 * time.Hour),
		To:     lastTo,
		Status: models.FetchSuccess,
	}))

	from, to, err := s.NextWindow(context.Background(), "AAPL", "finnhub")
	require.NoError(t, err)
	require.Equal(t, lastTo.Add(-time.Minute), from)
	require.Equal(t, now, to)
}

func TestNextWindowAfterFailureRetriesSameFrom(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryWatermarkStore(time.Minute, 24*time.Hour, WithClock(fixedClock(now)))

	failedFrom := now.Add(-3 * time.Hour)
	require.NoError(t, s.RecordResult(context.Background(), models.FetchResult{
		Symbol: "AAPL",
		Source: "finnhub",
		From:   failedFrom,
		To:     now.Add(-time.Hour),
		Status: models.FetchFailure,
	}))

	from, to, err := s.NextWindow(context.Background(), "AAPL", "finnhub")
	require.NoError(t, err)
	require.Equal(t, failedFrom, from)
	require.Equal(t, now, to)
}

func TestRecordResultKeepsLastToMonotonic(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryWatermarkStore(time.Minute, 24*time.Hour, WithClock(fixedClock(now)))
	ctx := context.Background()

	require.NoError(t, s.RecordResult(ctx, models.FetchResult{
		Symbol: "AAPL", Source: "finnhub",
		From: now.Add(-2 * time.Hour), To: now,
		Status: models.FetchSuccess,
	}))
	// A stale success must not move last_to backwards.
	require.NoError(t, s.RecordResult(ctx, models.FetchResult{
		Symbol: "AAPL", Source: "finnhub",
		From: now.Add(-4 * time.Hour), To: now.Add(-3 * time.Hour),
		Status: models.FetchSuccess,
	}))

	wm, err := s.Get(ctx, "AAPL", "finnhub")
	require.NoError(t, err)
	require.Equal(t, now, wm.LastTo)
}

func TestWatermarksAreIndependentPerPair(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryWatermarkStore(time.Minute, 24*time.Hour, WithClock(fixedClock(now)))
	ctx := context.Background()

	require.NoError(t, s.RecordResult(ctx, models.FetchResult{
		Symbol: "AAPL", Source: "finnhub",
		From: now.Add(-time.Hour), To: now,
		Status: models.FetchSuccess,
	}))

	// The polygon pair is untouched and still gets the lookback window.
	from, _, err := s.NextWindow(ctx, "AAPL", "polygon")
	require.NoError(t, err)
	require.Equal(t, now.Add(-24*time.Hour), from)

	// And so is the same source under another symbol.
	from, _, err = s.NextWindow(ctx, "MSFT", "finnhub")
	require.NoError(t, err)
	require.Equal(t, now.Add(-24*time.Hour), from)
}

func TestClampWindowShrinksDegenerate(t *testing.T) {
	to := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	from, got, err := ClampWindow(to.Add(time.Hour), to)
	require.NoError(t, err)
	require.Equal(t, to, got)
	require.True(t, from.Before(got))
}

// --- Staging ---

func TestInsertBatchCountsDuplicatesOnSecondPass(t *testing.T) {
	s := NewMemoryStagingStore()
	ctx := context.Background()

	items := []models.RawNewsItem{
		newItem("AAPL", "finnhub", "https://example.com/a"),
		newItem("AAPL", "finnhub", "https://example.com/b"),
		newItem("AAPL", "finnhub", "https://example.com/c"),
	}

	stats, err := s.InsertBatch(ctx, items)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Inserted)
	require.Equal(t, 0, stats.Duplicates)

	stats, err = s.InsertBatch(ctx, items)
	require.NoError(t, err)
	require.Equal(t, 0, stats.Inserted)
	require.Equal(t, 3, stats.Duplicates)
}

func TestInsertBatchSkipsBadItemsWithoutAborting(t *testing.T) {
	s := NewMemoryStagingStore()

	stats, err := s.InsertBatch(context.Background(), []models.RawNewsItem{
		newItem("AAPL", "finnhub", ""),
		newItem("AAPL", "finnhub", "https://example.com/ok"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Inserted)
	require.Equal(t, 1, stats.Failed)
}

func TestSameURLDifferentSymbolIsNotDuplicate(t *testing.T) {
	s := NewMemoryStagingStore()

	stats, err := s.InsertBatch(context.Background(), []models.RawNewsItem{
		newItem("AAPL", "finnhub", "https://example.com/shared"),
		newItem("MSFT", "finnhub", "https://example.com/shared"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, stats.Inserted)
}

func TestClaimMarkLifecycle(t *testing.T) {
	s := NewMemoryStagingStore()
	ctx := context.Background()

	_, err := s.InsertBatch(ctx, []models.RawNewsItem{
		newItem("AAPL", "finnhub", "https://example.com/a"),
		newItem("AAPL", "finnhub", "https://example.com/b"),
	})
	require.NoError(t, err)

	claimed, err := s.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	for _, item := range claimed {
		require.Equal(t, models.StatusProcessing, item.Status)
	}

	// Claimed items are not claimable again.
	again, err := s.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, again)

	require.NoError(t, s.MarkResult(ctx, claimed[0].ID, models.StatusCompleted))
	require.NoError(t, s.MarkResult(ctx, claimed[1].ID, models.StatusFailed))

	// A terminal item cannot transition again.
	require.Error(t, s.MarkResult(ctx, claimed[0].ID, models.StatusFailed))
}

func TestMarkResultRejectsUnknownAndInvalid(t *testing.T) {
	s := NewMemoryStagingStore()
	ctx := context.Background()

	require.ErrorIs(t, s.MarkResult(ctx, "missing", models.StatusCompleted), domrepo.ErrNotFound)

	_, err := s.InsertBatch(ctx, []models.RawNewsItem{newItem("AAPL", "finnhub", "https://example.com/a")})
	require.NoError(t, err)
	claimed, err := s.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.Error(t, s.MarkResult(ctx, claimed[0].ID, models.StatusPending))
}

func TestRequeueStaleRecoversOldClaims(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := now
	s := NewMemoryStagingStore(WithClock(func() time.Time { return current }))
	ctx := context.Background()

	_, err := s.InsertBatch(ctx, []models.RawNewsItem{newItem("AAPL", "finnhub", "https://example.com/a")})
	require.NoError(t, err)
	claimed, err := s.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// Not yet stale.
	n, err := s.RequeueStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	require.Zero(t, n)

	current = now.Add(11 * time.Minute)
	n, err = s.RequeueStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	reclaimed, err := s.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	require.Equal(t, claimed[0].ID, reclaimed[0].ID)
}

// --- Stacks ---

func TestPushAssignsPositionOneAndShifts(t *testing.T) {
	s := NewMemoryStackStore(5)
	ctx := context.Background()

	e1, err := s.Push(ctx, "AAPL", newItem("AAPL", "finnhub", "https://example.com/1"))
	require.NoError(t, err)
	require.Equal(t, 1, e1.Position)

	e2, err := s.Push(ctx, "AAPL", newItem("AAPL", "finnhub", "https://example.com/2"))
	require.NoError(t, err)
	require.Equal(t, 1, e2.Position)

	top, err := s.Top(ctx, "AAPL", 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "https://example.com/2", top[0].URL)
	require.Equal(t, 1, top[0].Position)
	require.Equal(t, "https://example.com/1", top[1].URL)
	require.Equal(t, 2, top[1].Position)
}

func TestPushEvictsBeyondCapacity(t *testing.T) {
	s := NewMemoryStackStore(5)
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		_, err := s.Push(ctx, "AAPL", newItem("AAPL", "finnhub", fmt.Sprintf("https://example.com/%d", i)))
		require.NoError(t, err)
	}

	top, err := s.Top(ctx, "AAPL", 10)
	require.NoError(t, err)
	require.Len(t, top, 5)
	// Newest first: url 6 at position 1 down to url 2 at position 5. The
	// oldest entry (url 1) was evicted.
	for i, e := range top {
		require.Equal(t, i+1, e.Position)
		require.Equal(t, fmt.Sprintf("https://example.com/%d", 6-i), e.URL)
	}

	dup, err := s.IsDuplicate(ctx, "AAPL", "https://example.com/1")
	require.NoError(t, err)
	require.False(t, dup, "evicted url must be pushable again")
}

func TestPushRejectsDuplicateWithoutMutating(t *testing.T) {
	s := NewMemoryStackStore(5)
	ctx := context.Background()

	_, err := s.Push(ctx, "AAPL", newItem("AAPL", "finnhub", "https://example.com/1"))
	require.NoError(t, err)
	_, err = s.Push(ctx, "AAPL", newItem("AAPL", "finnhub", "https://example.com/2"))
	require.NoError(t, err)

	before, err := s.Top(ctx, "AAPL", 5)
	require.NoError(t, err)

	_, err = s.Push(ctx, "AAPL", newItem("AAPL", "polygon", "https://example.com/1"))
	require.ErrorIs(t, err, domrepo.ErrDuplicate)

	after, err := s.Top(ctx, "AAPL", 5)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestStacksAreIndependentPerSymbol(t *testing.T) {
	s := NewMemoryStackStore(5)
	ctx := context.Background()

	_, err := s.Push(ctx, "AAPL", newItem("AAPL", "finnhub", "https://example.com/1"))
	require.NoError(t, err)
	_, err = s.Push(ctx, "MSFT", newItem("MSFT", "finnhub", "https://example.com/1"))
	require.NoError(t, err)

	top, err := s.Top(ctx, "MSFT", 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, "MSFT", top[0].Symbol)
}

func TestTopHonorsLimit(t *testing.T) {
	s := NewMemoryStackStore(5)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		_, err := s.Push(ctx, "AAPL", newItem("AAPL", "finnhub", fmt.Sprintf("https://example.com/%d", i)))
		require.NoError(t, err)
	}

	top, err := s.Top(ctx, "AAPL", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, 1, top[0].Position)
	require.Equal(t, 2, top[1].Position)
}
