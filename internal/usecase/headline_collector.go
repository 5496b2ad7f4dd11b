package usecase

import (
	"context"

	"NewsPull/internal/domain/models"
	drepo "NewsPull/internal/domain/repository"
	mid "NewsPull/internal/middleware"
)

// HeadlineStager stages realtime headlines through the normal dedup path.
type HeadlineStager struct {
	staging    drepo.StagingStore
	normalizer *Normalizer
	metrics    drepo.Metrics
}

func NewHeadlineStager(staging drepo.StagingStore, normalizer *Normalizer, metrics drepo.Metrics) *HeadlineStager {
	return &HeadlineStager{staging: staging, normalizer: normalizer, metrics: metrics}
}

func (s *HeadlineStager) Stage(ctx context.Context, h *models.Headline) error {
	item, err := s.normalizer.Normalize(h.Symbol, h.Source, h.ToRecord())
	if err != nil {
		return err
	}
	stats, err := s.staging.InsertBatch(ctx, []models.RawNewsItem{item})
	if err != nil {
		return err
	}
	s.metrics.RecordStored(h.Source, item.Symbol, stats.Inserted)
	s.metrics.RecordDuplicates(h.Source, item.Symbol, stats.Duplicates)
	return nil
}

var _ mid.Stager = (*HeadlineStager)(nil)

// HeadlineCollector collects headlines from the wire and stages them.
type HeadlineCollector struct {
	stream  drepo.NewsStream
	stager  *HeadlineStager
	metrics drepo.Metrics
	pipe    *mid.IngestPipeline
}

// NewHeadlineCollector creates a new HeadlineCollector instance.
func NewHeadlineCollector(stream drepo.NewsStream, stager *HeadlineStager, metrics drepo.Metrics, pipe *mid.IngestPipeline) *HeadlineCollector {
	return &HeadlineCollector{stream: stream, stager: stager, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the wire is connected.
func (c *HeadlineCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *HeadlineCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	hCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, hCh, errCh)
	return nil
}

// consume drains the wire channels until ctx is cancelled. The wire closes
// both channels after a read failure, so once the error arrives we drain the
// headlines already buffered, reconnect, and start a fresh Read on the new
// connection.
func (c *HeadlineCollector) consume(ctx context.Context, hCh <-chan *models.Headline, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if err != nil {
				c.metrics.RecordError("newswire")
			} else if ok {
				continue
			}
			if hCh != nil {
				for h := range hCh {
					c.handle(ctx, h)
				}
			}
			hCh, errCh = c.resume(ctx)
			if hCh == nil {
				return
			}
		case h, ok := <-hCh:
			if !ok {
				// Wire is going down; wait for the error side to drive
				// the reconnect.
				hCh = nil
				continue
			}
			c.handle(ctx, h)
		}
	}
}

func (c *HeadlineCollector) handle(ctx context.Context, h *models.Headline) {
	if h == nil {
		return
	}
	if c.pipe != nil {
		_ = c.pipe.Process(ctx, h)
	} else {
		_ = c.stager.Stage(ctx, h)
	}
}

// resume reconnects until it succeeds or ctx is cancelled, then returns the
// channels of a fresh Read.
func (c *HeadlineCollector) resume(ctx context.Context) (<-chan *models.Headline, <-chan error) {
	for ctx.Err() == nil {
		if err := c.stream.Reconnect(ctx); err != nil {
			c.metrics.RecordError("newswire")
			continue
		}
		return c.stream.Read(ctx)
	}
	return nil, nil
}

// Shutdown stops the pipeline and closes the wire.
func (c *HeadlineCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
