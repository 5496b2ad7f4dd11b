package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"NewsPull/internal/domain/models"
	domrepo "NewsPull/internal/domain/repository"

	"github.com/google/uuid"
)

// In-memory store implementations. They back the "memory" storage backend and
// are the reference semantics the ClickHouse/Redis implementations mirror.

func pairKey(symbol, source string) string {
	return symbol + "|" + source
}

func dedupKey(symbol, source, url string) string {
	return symbol + "|" + source + "|" + url
}

// MemoryOption overrides store internals, used by tests to pin the clock.
type MemoryOption func(*memoryBase)

type memoryBase struct {
	now func() time.Time
}

// WithClock injects a time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(b *memoryBase) {
		b.now = now
	}
}

func newMemoryBase(opts []MemoryOption) memoryBase {
	b := memoryBase{now: time.Now}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// --- Watermark store ---

// MemoryWatermarkStore keeps fetch watermarks in a map with upsert semantics.
type MemoryWatermarkStore struct {
	memoryBase
	mu       sync.Mutex
	overlap  time.Duration
	lookback time.Duration
	marks    map[string]models.FetchWatermark
}

// NewMemoryWatermarkStore creates a watermark store with the given overlap
// buffer and default lookback for first-time fetches.
func NewMemoryWatermarkStore(overlap, lookback time.Duration, opts ...MemoryOption) *MemoryWatermarkStore {
	return &MemoryWatermarkStore{
		memoryBase: newMemoryBase(opts),
		overlap:    overlap,
		lookback:   lookback,
		marks:      make(map[string]models.FetchWatermark),
	}
}

func (s *MemoryWatermarkStore) NextWindow(ctx context.Context, symbol, source string) (time.Time, time.Time, error) {
	symbol = models.NormalizeSymbol(symbol)
	now := s.now()

	s.mu.Lock()
	wm, ok := s.marks[pairKey(symbol, source)]
	s.mu.Unlock()

	var from time.Time
	switch {
	case !ok:
		from = now.Add(-s.lookback)
	case wm.Status == models.FetchSuccess:
		from = wm.LastTo.Add(-s.overlap)
	default:
		// Failed last time: retry the same window, never skip past it.
		from = wm.LastFrom
	}

	return ClampWindow(from, now)
}

func (s *MemoryWatermarkStore) RecordResult(ctx context.Context, res models.FetchResult) error {
	symbol := models.NormalizeSymbol(res.Symbol)
	key := pairKey(symbol, res.Source)

	s.mu.Lock()
	defer s.mu.Unlock()

	wm := models.FetchWatermark{
		Symbol:          symbol,
		Source:          res.Source,
		LastFrom:        res.From,
		LastTo:          res.To,
		ArticlesFetched: res.ArticlesFetched,
		ArticlesStored:  res.ArticlesStored,
		Status:          res.Status,
		UpdatedAt:       s.now(),
	}
	if cur, ok := s.marks[key]; ok && cur.Status == models.FetchSuccess && res.Status == models.FetchSuccess && res.To.Before(cur.LastTo) {
		// last_to is monotonic across successful updates
		wm.LastFrom = cur.LastFrom
		wm.LastTo = cur.LastTo
	}
	s.marks[key] = wm
	return nil
}

func (s *MemoryWatermarkStore) Get(ctx context.Context, symbol, source string) (*models.FetchWatermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wm, ok := s.marks[pairKey(models.NormalizeSymbol(symbol), source)]
	if !ok {
		return nil, domrepo.ErrNotFound
	}
	out := wm
	return &out, nil
}

func (s *MemoryWatermarkStore) List(ctx context.Context, symbol string) ([]models.FetchWatermark, error) {
	symbol = models.NormalizeSymbol(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.FetchWatermark, 0, len(s.marks))
	for _, wm := range s.marks {
		if symbol == "" || wm.Symbol == symbol {
			out = append(out, wm)
		}
	}
	return out, nil
}

// ClampWindow guarantees from <= to, shrinking degenerate windows to one
// second. Exported so every watermark backend clamps the same way.
func ClampWindow(from, to time.Time) (time.Time, time.Time, error) {
	if !from.Before(to) {
		from = to.Add(-time.Second)
	}
	return from, to, nil
}

// --- Staging store ---

type stagedItem struct {
	item      models.RawNewsItem
	claimedAt time.Time
}

// MemoryStagingStore keeps staged articles in insert order.
type MemoryStagingStore struct {
	memoryBase
	mu    sync.Mutex
	byID  map[string]*stagedItem
	byURL map[string]string // (symbol, source, url) -> id
	order []string
}

func NewMemoryStagingStore(opts ...MemoryOption) *MemoryStagingStore {
	return &MemoryStagingStore{
		memoryBase: newMemoryBase(opts),
		byID:       make(map[string]*stagedItem),
		byURL:      make(map[string]string),
	}
}

func (s *MemoryStagingStore) InsertBatch(ctx context.Context, items []models.RawNewsItem) (models.InsertStats, error) {
	stats := models.InsertStats{Total: len(items)}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		item.Symbol = models.NormalizeSymbol(item.Symbol)
		if item.Symbol == "" || item.URL == "" {
			stats.Failed++
			continue
		}
		key := dedupKey(item.Symbol, item.Source, item.URL)
		if _, exists := s.byURL[key]; exists {
			stats.Duplicates++
			continue
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if item.FetchedAt.IsZero() {
			item.FetchedAt = s.now()
		}
		item.Status = models.StatusPending

		s.byID[item.ID] = &stagedItem{item: item}
		s.byURL[key] = item.ID
		s.order = append(s.order, item.ID)
		stats.Inserted++
	}

	return stats, nil
}

func (s *MemoryStagingStore) ClaimPending(ctx context.Context, limit int) ([]models.RawNewsItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	claimed := make([]models.RawNewsItem, 0, limit)
	for _, id := range s.order {
		if len(claimed) == limit {
			break
		}
		st := s.byID[id]
		if st.item.Status != models.StatusPending {
			continue
		}
		st.item.Status = models.StatusProcessing
		st.claimedAt = s.now()
		claimed = append(claimed, st.item)
	}
	return claimed, nil
}

func (s *MemoryStagingStore) MarkResult(ctx context.Context, id string, outcome models.ProcessingStatus) error {
	if outcome != models.StatusCompleted && outcome != models.StatusFailed {
		return fmt.Errorf("invalid outcome %q", outcome)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.byID[id]
	if !ok {
		return domrepo.ErrNotFound
	}
	if st.item.Status != models.StatusProcessing {
		return fmt.Errorf("item %s is %s, not processing", id, st.item.Status)
	}
	st.item.Status = outcome
	return nil
}

func (s *MemoryStagingStore) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	requeued := 0
	for _, st := range s.byID {
		if st.item.Status == models.StatusProcessing && st.claimedAt.Before(cutoff) {
			st.item.Status = models.StatusPending
			requeued++
		}
	}
	return requeued, nil
}

// --- Stack store ---

// MemoryStackStore keeps per-symbol stacks ordered by position ascending.
type MemoryStackStore struct {
	mu      sync.Mutex
	maxSize int
	stacks  map[string][]models.StackEntry
}

func NewMemoryStackStore(maxSize int) *MemoryStackStore {
	if maxSize < 1 {
		maxSize = 1
	}
	return &MemoryStackStore{
		maxSize: maxSize,
		stacks:  make(map[string][]models.StackEntry),
	}
}

func (s *MemoryStackStore) Push(ctx context.Context, symbol string, item models.RawNewsItem) (models.StackEntry, error) {
	symbol = models.NormalizeSymbol(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	stack := s.stacks[symbol]
	for _, e := range stack {
		if e.URL == item.URL {
			return models.StackEntry{}, domrepo.ErrDuplicate
		}
	}

	item.Symbol = symbol
	entry := models.StackEntry{RawNewsItem: item, Position: 1}

	// Shift first, then evict: an entry landing exactly on the capacity
	// boundary must survive at its new position.
	next := make([]models.StackEntry, 0, len(stack)+1)
	next = append(next, entry)
	for _, e := range stack {
		e.Position++
		if e.Position > s.maxSize {
			continue
		}
		next = append(next, e)
	}
	s.stacks[symbol] = next

	return entry, nil
}

func (s *MemoryStackStore) Top(ctx context.Context, symbol string, limit int) ([]models.StackEntry, error) {
	symbol = models.NormalizeSymbol(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	stack := s.stacks[symbol]
	if limit <= 0 || limit > len(stack) {
		limit = len(stack)
	}
	out := make([]models.StackEntry, limit)
	copy(out, stack[:limit])
	return out, nil
}

func (s *MemoryStackStore) IsDuplicate(ctx context.Context, symbol, url string) (bool, error) {
	symbol = models.NormalizeSymbol(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.stacks[symbol] {
		if e.URL == url {
			return true, nil
		}
	}
	return false, nil
}

var (
	_ domrepo.WatermarkStore = (*MemoryWatermarkStore)(nil)
	_ domrepo.StagingStore   = (*MemoryStagingStore)(nil)
	_ domrepo.StackStore     = (*MemoryStackStore)(nil)
)
