package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"NewsPull/internal/domain/models"
	domrepo "NewsPull/internal/domain/repository"
	"NewsPull/pkg/logger"
)

// Fetcher runs incremental fetch cycles: for every (symbol, source) pair it
// asks the watermark store for the next window, pulls the provider, stages
// what came back, and records the outcome so the next cycle resumes from the
// right place.
type Fetcher struct {
	providers  map[string]domrepo.Provider
	watermarks domrepo.WatermarkStore
	staging    domrepo.StagingStore
	normalizer *Normalizer
	metrics    domrepo.Metrics
	l          *logger.Logger

	concurrency int
	locks       *keyedLocks
	now         func() time.Time
}

type FetcherOption func(*Fetcher)

// WithFetchConcurrency bounds how many (symbol, source) fetches run at once.
func WithFetchConcurrency(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

func withFetchClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) { f.now = now }
}

func NewFetcher(
	providers []domrepo.Provider,
	watermarks domrepo.WatermarkStore,
	staging domrepo.StagingStore,
	normalizer *Normalizer,
	metrics domrepo.Metrics,
	l *logger.Logger,
	opts ...FetcherOption,
) *Fetcher {
	byName := make(map[string]domrepo.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	f := &Fetcher{
		providers:   byName,
		watermarks:  watermarks,
		staging:     staging,
		normalizer:  normalizer,
		metrics:     metrics,
		l:           l,
		concurrency: 4,
		locks:       newKeyedLocks(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Sources returns the names of the configured providers.
func (f *Fetcher) Sources() []string {
	names := make([]string, 0, len(f.providers))
	for name := range f.providers {
		names = append(names, name)
	}
	return names
}

// FetchCycle runs one incremental cycle over all symbols and sources and
// returns the per-symbol report. Pair failures are contained: one bad
// provider never stops the rest of the cycle.
func (f *Fetcher) FetchCycle(ctx context.Context, symbols []string) (*models.CycleReport, error) {
	report := &models.CycleReport{StartedAt: f.now().UTC()}

	var mu sync.Mutex
	bySymbol := make(map[string][]models.SourceReport, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for _, symbol := range symbols {
		symbol := models.NormalizeSymbol(symbol)
		for name, provider := range f.providers {
			name, provider := name, provider
			g.Go(func() error {
				sr := f.fetchPair(gctx, symbol, name, provider)
				mu.Lock()
				bySymbol[symbol] = append(bySymbol[symbol], sr)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	for _, symbol := range symbols {
		symbol = models.NormalizeSymbol(symbol)
		srs := bySymbol[symbol]
		sym := models.SymbolReport{Symbol: symbol, Sources: srs}
		for _, sr := range srs {
			sym.TotalFetched += sr.Fetched
			sym.TotalStored += sr.Stored
		}
		report.Add(sym)
	}
	report.FinishedAt = f.now().UTC()
	return report, nil
}

// fetchPair runs one (symbol, source) fetch under its pair lock so two
// cycles never race on the same watermark.
func (f *Fetcher) fetchPair(ctx context.Context, symbol, source string, provider domrepo.Provider) models.SourceReport {
	lock := f.locks.get(symbol + "|" + source)
	lock.Lock()
	defer lock.Unlock()

	sr := models.SourceReport{Source: source}
	start := f.now()

	from, to, err := f.watermarks.NextWindow(ctx, symbol, source)
	if err != nil {
		f.metrics.RecordError("watermark_window")
		sr.Error = err.Error()
		return sr
	}

	recs, err := provider.Fetch(ctx, symbol, from, to)
	if err != nil {
		// A cancelled fetch is not a provider failure; leave the watermark
		// alone so the next cycle retries the same window without marking
		// the pair failed.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			sr.Error = err.Error()
			return sr
		}
		f.metrics.RecordError("provider_fetch")
		f.l.Warn("fetch failed",
			logger.String("symbol", symbol),
			logger.String("source", source),
			logger.Error(err))
		sr.Error = err.Error()
		if recErr := f.watermarks.RecordResult(ctx, models.FetchResult{
			Symbol: symbol,
			Source: source,
			From:   from,
			To:     to,
			Status: models.FetchFailure,
		}); recErr != nil {
			f.metrics.RecordError("watermark_record")
		}
		return sr
	}

	sr.Fetched = len(recs)
	f.metrics.RecordFetched(source, symbol, len(recs))

	items, skipped := f.normalizer.NormalizeBatch(symbol, source, recs)
	sr.Skipped = skipped

	var stats models.InsertStats
	if len(items) > 0 {
		stats, err = f.staging.InsertBatch(ctx, items)
		if err != nil {
			f.metrics.RecordError("staging_insert")
			sr.Error = err.Error()
			if recErr := f.watermarks.RecordResult(ctx, models.FetchResult{
				Symbol: symbol,
				Source: source,
				From:   from,
				To:     to,
				Status: models.FetchFailure,
			}); recErr != nil {
				f.metrics.RecordError("watermark_record")
			}
			return sr
		}
	}
	sr.Stored = stats.Inserted
	sr.Duplicates = stats.Duplicates
	sr.Failed = stats.Failed
	f.metrics.RecordStored(source, symbol, stats.Inserted)
	f.metrics.RecordDuplicates(source, symbol, stats.Duplicates)

	if err := f.watermarks.RecordResult(ctx, models.FetchResult{
		Symbol:          symbol,
		Source:          source,
		From:            from,
		To:              to,
		ArticlesFetched: sr.Fetched,
		ArticlesStored:  sr.Stored,
		Status:          models.FetchSuccess,
	}); err != nil {
		f.metrics.RecordError("watermark_record")
		sr.Error = fmt.Sprintf("record watermark: %v", err)
	}

	f.metrics.RecordLatency("fetch_pair", f.now().Sub(start).Seconds())
	return sr
}
