package usecase

import (
	"context"
	"time"

	"NewsPull/internal/domain/models"
	"NewsPull/pkg/logger"
)

// Orchestrator runs the full pipeline cycle: incremental fetch for every
// symbol, then a processing pass that drains staging into the stacks. Each
// cycle ends with a summary log enumerating every count.
type Orchestrator struct {
	fetcher   *Fetcher
	processor *Processor
	symbols   []string
	l         *logger.Logger
}

func NewOrchestrator(fetcher *Fetcher, processor *Processor, symbols []string, l *logger.Logger) *Orchestrator {
	norm := make([]string, 0, len(symbols))
	for _, s := range symbols {
		norm = append(norm, models.NormalizeSymbol(s))
	}
	return &Orchestrator{fetcher: fetcher, processor: processor, symbols: norm, l: l}
}

// RunCycle executes one fetch-then-process cycle and returns the report.
// A fetch-side problem never skips the processing pass; items staged by
// earlier cycles or the realtime wire still get drained.
func (o *Orchestrator) RunCycle(ctx context.Context) (*models.CycleReport, error) {
	report, err := o.fetcher.FetchCycle(ctx, o.symbols)
	if err != nil {
		o.l.Error("fetch cycle failed", logger.Error(err))
	}

	stats, perr := o.processor.ProcessPending(ctx)
	report.Processing = stats
	if perr != nil && err == nil {
		err = perr
	}
	if report.FinishedAt.Before(report.StartedAt) || report.FinishedAt.IsZero() {
		report.FinishedAt = time.Now().UTC()
	}

	o.l.Info("cycle complete",
		logger.Int("symbols", len(report.Symbols)),
		logger.Int("fetched", report.TotalFetched),
		logger.Int("stored", report.TotalStored),
		logger.Int("claimed", stats.Claimed),
		logger.Int("pushed", stats.Pushed),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
		logger.Duration("took", report.FinishedAt.Sub(report.StartedAt)))
	return report, err
}

// Run executes cycles on the given interval until the context is done. The
// first cycle starts immediately.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if _, err := o.RunCycle(ctx); err != nil && ctx.Err() == nil {
		o.l.Error("cycle error", logger.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := o.RunCycle(ctx); err != nil && ctx.Err() == nil {
				o.l.Error("cycle error", logger.Error(err))
			}
		}
	}
}

// Symbols returns the configured symbol universe.
func (o *Orchestrator) Symbols() []string { return o.symbols }
