package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsPull/internal/domain/models"
)

type nopMetrics struct{}

func (nopMetrics) RecordFetched(source, symbol string, n int)    {}
func (nopMetrics) RecordStored(source, symbol string, n int)     {}
func (nopMetrics) RecordDuplicates(source, symbol string, n int) {}
func (nopMetrics) RecordError(kind string)                       {}
func (nopMetrics) RecordStackDepth(symbol string, depth int)     {}
func (nopMetrics) RecordLatency(op string, seconds float64)      {}

type fakeStager struct {
	mu     sync.Mutex
	err    error
	staged []*models.Headline
}

func (s *fakeStager) Stage(ctx context.Context, h *models.Headline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.staged = append(s.staged, h)
	return nil
}

func (s *fakeStager) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeStager) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged)
}

func headline(symbol, url string) *models.Headline {
	return &models.Headline{
		Symbol:      symbol,
		Source:      "newswire",
		Title:       "title",
		URL:         url,
		PublishedAt: time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
	}
}

func TestProcessForwardsValidHeadline(t *testing.T) {
	stager := &fakeStager{}
	p := NewIngestPipeline(stager, nopMetrics{})

	require.NoError(t, p.Process(context.Background(), headline("AAPL", "https://example.com/a")))
	require.Len(t, stager.staged, 1)
}

func TestProcessRejectsInvalidHeadlines(t *testing.T) {
	stager := &fakeStager{}
	p := NewIngestPipeline(stager, nopMetrics{})
	ctx := context.Background()

	require.Error(t, p.Process(ctx, nil))
	require.Error(t, p.Process(ctx, &models.Headline{URL: "https://example.com/a"}))
	require.Error(t, p.Process(ctx, &models.Headline{Symbol: "AAPL"}))

	h := headline("AAPL", "https://example.com/a")
	h.PublishedAt = time.Time{}
	require.Error(t, p.Process(ctx, h))

	require.Empty(t, stager.staged)
}

func TestProcessThrottlesPerSymbol(t *testing.T) {
	stager := &fakeStager{}
	p := NewIngestPipeline(stager, nopMetrics{}, WithMaxRPS(1))
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, headline("AAPL", "https://example.com/a")))
	// Second headline inside the same second is dropped without error.
	require.NoError(t, p.Process(ctx, headline("AAPL", "https://example.com/b")))
	require.Len(t, stager.staged, 1)

	// Another symbol is throttled independently.
	require.NoError(t, p.Process(ctx, headline("MSFT", "https://example.com/c")))
	require.Len(t, stager.staged, 2)
}

func TestProcessBuffersWhenStagingFails(t *testing.T) {
	stager := &fakeStager{err: errors.New("staging down")}
	p := NewIngestPipeline(stager, nopMetrics{}, WithBufferSize(8))

	err := p.Process(context.Background(), headline("AAPL", "https://example.com/a"))
	require.Error(t, err)
	require.Len(t, p.bufCh, 1)

	// Once staging recovers, the flusher drains the buffer.
	stager.setErr(nil)
	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool { return stager.count() == 1 }, time.Second, 10*time.Millisecond)
}
