package usecase

import (
	"context"
	"errors"
	"time"

	"NewsPull/internal/domain/models"
	domrepo "NewsPull/internal/domain/repository"
	dservice "NewsPull/internal/domain/service"
	"NewsPull/pkg/logger"
)

// Processor drains pending staged items into the per-symbol stacks. Each
// claimed item ends as completed or failed; duplicates complete without
// touching the stack.
type Processor struct {
	staging     domrepo.StagingStore
	stacks      domrepo.StackStore
	publisher   domrepo.Publisher
	categorizer dservice.Categorizer
	metrics     domrepo.Metrics
	l           *logger.Logger

	batchSize    int
	maxStackSize int
}

type ProcessorOption func(*Processor)

// WithBatchSize sets how many pending items one claim pulls.
func WithBatchSize(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithMaxStackSize sets the stack depth reported after processing.
func WithMaxStackSize(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.maxStackSize = n
		}
	}
}

func NewProcessor(
	staging domrepo.StagingStore,
	stacks domrepo.StackStore,
	publisher domrepo.Publisher,
	categorizer dservice.Categorizer,
	metrics domrepo.Metrics,
	l *logger.Logger,
	opts ...ProcessorOption,
) *Processor {
	p := &Processor{
		staging:      staging,
		stacks:       stacks,
		publisher:    publisher,
		categorizer:  categorizer,
		metrics:      metrics,
		l:            l,
		batchSize:    50,
		maxStackSize: 5,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessPending drains the staging store until no pending items remain or
// the context is done. Returns the aggregate stats for the pass.
func (p *Processor) ProcessPending(ctx context.Context) (models.ProcessStats, error) {
	var stats models.ProcessStats
	touched := make(map[string]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		items, err := p.staging.ClaimPending(ctx, p.batchSize)
		if err != nil {
			p.metrics.RecordError("staging_claim")
			return stats, err
		}
		if len(items) == 0 {
			break
		}
		stats.Claimed += len(items)

		for _, item := range items {
			touched[item.Symbol] = struct{}{}
			switch p.processOne(ctx, item) {
			case outcomePushed:
				stats.Pushed++
			case outcomeDuplicate:
				stats.Duplicate++
			case outcomeFailed:
				stats.Failed++
			}
		}
		if len(items) < p.batchSize {
			break
		}
	}

	for symbol := range touched {
		p.reportDepth(ctx, symbol)
	}
	return stats, nil
}

type outcome int

const (
	outcomePushed outcome = iota
	outcomeDuplicate
	outcomeFailed
)

func (p *Processor) processOne(ctx context.Context, item models.RawNewsItem) outcome {
	start := time.Now()

	entry, err := p.stacks.Push(ctx, item.Symbol, item)
	if errors.Is(err, domrepo.ErrDuplicate) {
		// Already ranked; nothing left to do for this item.
		if markErr := p.staging.MarkResult(ctx, item.ID, models.StatusCompleted); markErr != nil {
			p.metrics.RecordError("staging_mark")
		}
		return outcomeDuplicate
	}
	if err != nil {
		p.metrics.RecordError("stack_push")
		p.l.Error("stack push failed",
			logger.String("symbol", item.Symbol),
			logger.String("url", item.URL),
			logger.Error(err))
		if markErr := p.staging.MarkResult(ctx, item.ID, models.StatusFailed); markErr != nil {
			p.metrics.RecordError("staging_mark")
		}
		return outcomeFailed
	}

	if p.publisher != nil {
		if err := p.publisher.PublishRanked(ctx, entry); err != nil {
			// The stack already holds the entry; publishing is best-effort.
			p.metrics.RecordError("publish_ranked")
			p.l.Warn("publish ranked failed",
				logger.String("symbol", item.Symbol),
				logger.Error(err))
		}
	}

	if p.categorizer != nil {
		if _, err := p.categorizer.Categorize(ctx, item); err != nil {
			p.metrics.RecordError("categorize")
			if markErr := p.staging.MarkResult(ctx, item.ID, models.StatusFailed); markErr != nil {
				p.metrics.RecordError("staging_mark")
			}
			return outcomeFailed
		}
	}

	if err := p.staging.MarkResult(ctx, item.ID, models.StatusCompleted); err != nil {
		p.metrics.RecordError("staging_mark")
		return outcomeFailed
	}
	p.metrics.RecordLatency("process_item", time.Since(start).Seconds())
	return outcomePushed
}

func (p *Processor) reportDepth(ctx context.Context, symbol string) {
	entries, err := p.stacks.Top(ctx, symbol, p.maxStackSize)
	if err != nil {
		p.metrics.RecordError("stack_top")
		return
	}
	p.metrics.RecordStackDepth(symbol, len(entries))
}
