package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"NewsPull/internal/domain/models"
	domrepo "NewsPull/internal/domain/repository"
)

// Stager is the minimal downstream interface the pipeline needs.
type Stager interface {
	Stage(ctx context.Context, h *models.Headline) error
}

// IngestPipeline is a middleware between the realtime wire and staging.
// It validates, throttles per symbol, and buffers when staging is unavailable.
type IngestPipeline struct {
	stager   Stager
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.Headline
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time
}

type PipelineOption func(*IngestPipeline)

// WithMaxRPS sets the max headlines per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when staging is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewIngestPipeline creates a new pipeline.
func NewIngestPipeline(stager Stager, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		stager:   stager,
		metrics:  metrics,
		maxRPS:   5,   // headlines arrive far slower than ticks
		bufSize:  500, // default buffer
		bufCh:    make(chan *models.Headline, 500),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.Headline, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered headlines.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case h := <-p.bufCh:
				if h == nil {
					continue
				}
				if err := p.stager.Stage(ctx, h); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("ingest_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- h:
					default:
						p.metrics.RecordError("ingest_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards a headline to staging,
// buffering on errors.
func (p *IngestPipeline) Process(ctx context.Context, h *models.Headline) error {
	start := time.Now()
	if err := validateHeadline(h); err != nil {
		p.metrics.RecordError("ingest_validate")
		return err
	}
	if !p.allow(h.Symbol, start) {
		// throttled; record and drop silently
		p.metrics.RecordError("ingest_throttle")
		return nil
	}

	if err := p.stager.Stage(ctx, h); err != nil {
		p.metrics.RecordError("ingest_stage")
		// buffer non-blocking
		select {
		case p.bufCh <- h:
		default:
			p.metrics.RecordError("ingest_buffer_full")
		}
		return fmt.Errorf("ingest downstream: %w", err)
	}
	p.metrics.RecordLatency("ingest_process", time.Since(start).Seconds())
	return nil
}

func validateHeadline(h *models.Headline) error {
	if h == nil {
		return fmt.Errorf("headline nil")
	}
	if h.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if h.URL == "" {
		return fmt.Errorf("url empty")
	}
	if h.PublishedAt.IsZero() {
		return fmt.Errorf("published_at missing")
	}
	return nil
}

func (p *IngestPipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	last := p.lastSeen[symbol]
	if last.IsZero() {
		p.lastSeen[symbol] = now
		return true
	}
	min := time.Second / time.Duration(p.maxRPS)
	if now.Sub(last) < min {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
