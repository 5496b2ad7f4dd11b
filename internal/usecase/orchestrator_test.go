package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsPull/internal/domain/models"
	domrepo "NewsPull/internal/domain/repository"
	internalrepo "NewsPull/internal/repository"
)

func TestRunCycleFetchesThenProcesses(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	watermarks := internalrepo.NewMemoryWatermarkStore(time.Minute, 24*time.Hour, internalrepo.WithClock(clock))
	staging := internalrepo.NewMemoryStagingStore(internalrepo.WithClock(clock))
	stacks := internalrepo.NewMemoryStackStore(5)
	provider := &fakeProvider{name: "finnhub", recs: []models.ProviderRecord{
		record("https://example.com/a"),
		record("https://example.com/b"),
	}}

	f := NewFetcher([]domrepo.Provider{provider}, watermarks, staging, NewNormalizer(), nopMetrics{}, newTestLogger(t), withFetchClock(clock))
	p := NewProcessor(staging, stacks, nil, nil, nopMetrics{}, newTestLogger(t))

	o := NewOrchestrator(f, p, []string{"aapl"}, newTestLogger(t))
	require.Equal(t, []string{"AAPL"}, o.Symbols())

	report, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.TotalStored)
	require.Equal(t, 2, report.Processing.Claimed)
	require.Equal(t, 2, report.Processing.Pushed)

	top, err := stacks.Top(context.Background(), "AAPL", 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
}

func TestRunCycleProcessesDespiteFetchFailure(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	watermarks := internalrepo.NewMemoryWatermarkStore(time.Minute, 24*time.Hour, internalrepo.WithClock(clock))
	staging := internalrepo.NewMemoryStagingStore(internalrepo.WithClock(clock))
	stacks := internalrepo.NewMemoryStackStore(5)
	provider := &fakeProvider{name: "finnhub", err: errors.New("provider down")}

	// An item staged by an earlier cycle must still be drained.
	stageItems(t, staging, stagedItem("AAPL", "https://example.com/earlier"))

	f := NewFetcher([]domrepo.Provider{provider}, watermarks, staging, NewNormalizer(), nopMetrics{}, newTestLogger(t), withFetchClock(clock))
	p := NewProcessor(staging, stacks, nil, nil, nopMetrics{}, newTestLogger(t))
	o := NewOrchestrator(f, p, []string{"AAPL"}, newTestLogger(t))

	report, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, report.TotalStored)
	require.Equal(t, 1, report.Processing.Pushed)
}
