package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsPull/internal/domain/models"
	mid "NewsPull/internal/middleware"
)

// scriptedStream hands out one channel pair per Read call. Each script entry
// is replayed on its own pair; after the entry's headlines and error are
// delivered both channels close, matching the wire contract.
type scriptedStream struct {
	mu         sync.Mutex
	script     []streamScript
	reads      int
	reconnects int
	connected  bool
}

type streamScript struct {
	headlines []*models.Headline
	err       error
	stayOpen  bool
}

func (s *scriptedStream) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *scriptedStream) Subscribe(ctx context.Context) error { return nil }

func (s *scriptedStream) Read(ctx context.Context) (<-chan *models.Headline, <-chan error) {
	s.mu.Lock()
	idx := s.reads
	s.reads++
	s.mu.Unlock()

	headlines := make(chan *models.Headline, 16)
	errs := make(chan error, 1)
	var entry streamScript
	if idx < len(s.script) {
		entry = s.script[idx]
	} else {
		entry = streamScript{stayOpen: true}
	}
	for _, h := range entry.headlines {
		headlines <- h
	}
	if entry.err != nil {
		errs <- entry.err
	}
	if !entry.stayOpen {
		close(headlines)
		close(errs)
	}
	return headlines, errs
}

func (s *scriptedStream) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	s.connected = true
	return nil
}

func (s *scriptedStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *scriptedStream) counts() (reads, reconnects int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.reconnects
}

type recordingStager struct {
	mu   sync.Mutex
	urls []string
}

func (r *recordingStager) Stage(ctx context.Context, h *models.Headline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, h.URL)
	return nil
}

func (r *recordingStager) staged() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}

func wireHeadline(symbol, url string) *models.Headline {
	return &models.Headline{
		Symbol:      symbol,
		Source:      "newswire",
		Title:       "title",
		URL:         url,
		Publisher:   "pub",
		PublishedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCollectorResumesReadingAfterReconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := &scriptedStream{script: []streamScript{
		{headlines: []*models.Headline{wireHeadline("AAPL", "https://example.com/before")}, err: errors.New("read: connection reset")},
		{headlines: []*models.Headline{wireHeadline("MSFT", "https://example.com/after")}, stayOpen: true},
	}}
	stager := &recordingStager{}
	pipe := mid.NewIngestPipeline(stager, nopMetrics{}, mid.WithMaxRPS(100))
	c := NewHeadlineCollector(stream, nil, nopMetrics{}, pipe)

	require.NoError(t, c.Start(ctx))
	defer func() { _ = c.Shutdown(context.Background()) }()

	require.Eventually(t, func() bool {
		return len(stager.staged()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.ElementsMatch(t, []string{"https://example.com/before", "https://example.com/after"}, stager.staged())
	reads, reconnects := stream.counts()
	require.GreaterOrEqual(t, reads, 2)
	require.GreaterOrEqual(t, reconnects, 1)
}

func TestCollectorStopsWhenContextCancelledDuringReconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	stream := &scriptedStream{script: []streamScript{
		{err: errors.New("read: connection reset")},
	}}
	stager := &recordingStager{}
	pipe := mid.NewIngestPipeline(stager, nopMetrics{}, mid.WithMaxRPS(100))
	c := NewHeadlineCollector(stream, nil, nopMetrics{}, pipe)

	require.NoError(t, c.Start(ctx))
	cancel()

	require.Eventually(t, func() bool {
		reads, _ := stream.counts()
		return reads >= 1
	}, time.Second, 10*time.Millisecond)
	_ = c.Shutdown(context.Background())
}
