package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsPull/internal/domain/models"
	internalrepo "NewsPull/internal/repository"
)

func TestGetStackNormalizesSymbolAndDefaultsLimit(t *testing.T) {
	stacks := internalrepo.NewMemoryStackStore(5)
	watermarks := internalrepo.NewMemoryWatermarkStore(time.Minute, time.Hour)
	uc := NewNewsQueryUseCase(stacks, watermarks)
	ctx := context.Background()

	for _, url := range []string{"a", "b", "c"} {
		_, err := stacks.Push(ctx, "AAPL", stagedItem("AAPL", "https://example.com/"+url))
		require.NoError(t, err)
	}

	res, err := uc.GetStack(ctx, GetStackParams{Symbol: "aapl"})
	require.NoError(t, err)
	require.Equal(t, "AAPL", res.Symbol)
	require.Equal(t, 3, res.Count)
	require.Equal(t, 1, res.Entries[0].Position)

	_, err = uc.GetStack(ctx, GetStackParams{})
	require.Error(t, err)
}

func TestGetWatermarksListsAllSources(t *testing.T) {
	stacks := internalrepo.NewMemoryStackStore(5)
	watermarks := internalrepo.NewMemoryWatermarkStore(time.Minute, time.Hour)
	uc := NewNewsQueryUseCase(stacks, watermarks)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, source := range []string{"finnhub", "polygon"} {
		require.NoError(t, watermarks.RecordResult(ctx, models.FetchResult{
			Symbol: "AAPL", Source: source,
			From: now.Add(-time.Hour), To: now,
			Status: models.FetchSuccess,
		}))
	}

	res, err := uc.GetWatermarks(ctx, GetWatermarksParams{Symbol: "aapl"})
	require.NoError(t, err)
	require.Equal(t, "AAPL", res.Symbol)
	require.Len(t, res.Watermarks, 2)
}
