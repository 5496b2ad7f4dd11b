package repository

import (
	"context"
	"time"

	"NewsPull/internal/domain/models"
)

// Provider fetches raw article records for a symbol inside a time window.
// Implementations must be safe to call with overlapping windows; downstream
// dedup absorbs repeats.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbol string, from, to time.Time) ([]models.ProviderRecord, error)
}

// WatermarkStore owns per-(symbol, source) fetch-progress bookkeeping.
// Overlap buffer and default lookback are fixed at construction.
type WatermarkStore interface {
	// NextWindow returns the time window the next fetch should request.
	// No watermark: [now - defaultLookback, now]. Last status success:
	// [lastTo - overlap, now]. Last status failure: [lastFrom, now], so a
	// failed fetch never creates a silent gap. Always from <= to.
	NextWindow(ctx context.Context, symbol, source string) (from, to time.Time, err error)

	// RecordResult upserts the watermark. Idempotent: repeating the same
	// result changes nothing but updated_at. A successful result never moves
	// last_to backwards.
	RecordResult(ctx context.Context, res models.FetchResult) error

	Get(ctx context.Context, symbol, source string) (*models.FetchWatermark, error)
	List(ctx context.Context, symbol string) ([]models.FetchWatermark, error)
}

// StagingStore owns the durable pending-work area between fetch and ranking,
// including every processing-status transition.
type StagingStore interface {
	// InsertBatch stages items with status pending, skipping duplicates by
	// (symbol, source, url). One bad item never aborts the rest.
	InsertBatch(ctx context.Context, items []models.RawNewsItem) (models.InsertStats, error)

	// ClaimPending flips up to limit pending items to processing and returns
	// them. At-most-once per claim; items stuck in processing are recovered
	// by RequeueStale.
	ClaimPending(ctx context.Context, limit int) ([]models.RawNewsItem, error)

	// MarkResult transitions a claimed item to completed or failed.
	MarkResult(ctx context.Context, id string, outcome models.ProcessingStatus) error

	// RequeueStale returns items stuck in processing longer than olderThan
	// back to pending. Returns the number requeued.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// StackStore owns the bounded, position-ordered, deduplicated per-symbol view.
// Position assignment happens nowhere else.
type StackStore interface {
	// Push inserts item at position 1, shifting live entries down and
	// evicting everything past capacity. The shift-insert-evict sequence is
	// atomic per symbol. Returns ErrDuplicate when the URL is already live
	// for the symbol; the stack is left untouched.
	Push(ctx context.Context, symbol string, item models.RawNewsItem) (models.StackEntry, error)

	// Top returns up to limit live entries ordered by position ascending.
	Top(ctx context.Context, symbol string, limit int) ([]models.StackEntry, error)

	// IsDuplicate reports whether the URL is live for the symbol, without
	// mutating anything.
	IsDuplicate(ctx context.Context, symbol, url string) (bool, error)
}

// Publisher emits pipeline events for downstream consumers.
type Publisher interface {
	PublishRanked(ctx context.Context, entry models.StackEntry) error
	Close() error
}

// Metrics records pipeline measurements.
type Metrics interface {
	RecordFetched(source, symbol string, n int)
	RecordStored(source, symbol string, n int)
	RecordDuplicates(source, symbol string, n int)
	RecordError(kind string)
	RecordStackDepth(symbol string, depth int)
	RecordLatency(op string, seconds float64)
}
