package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"NewsPull/internal/domain/models"
	domrepo "NewsPull/internal/domain/repository"
	applogger "NewsPull/pkg/logger"

	"github.com/google/uuid"
)

// CHStagingStore implements StagingStore backed by ClickHouse.
//
// Rows live in a ReplacingMergeTree ordered by (symbol, source, url) and
// versioned by status_updated_at: status transitions are re-inserts of the
// same key, and reads use FINAL to observe the latest version. Claims are
// serialized by the orchestrator's processing pass, which is what makes the
// select-then-reinsert claim safe.
type CHStagingStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
	now   func() time.Time
}

func NewCHStagingStore(db *sql.DB, table string) *CHStagingStore {
	return &CHStagingStore{db: db, table: table, now: time.Now}
}

// SetLogger injects a structured logger.
func (s *CHStagingStore) SetLogger(l *applogger.Logger) { s.l = l }

const stagingColumns = "id, symbol, source, external_id, title, summary, url, published_at, fetched_at, metadata, status, status_updated_at"

func (s *CHStagingStore) InsertBatch(ctx context.Context, items []models.RawNewsItem) (models.InsertStats, error) {
	stats := models.InsertStats{Total: len(items)}
	if len(items) == 0 {
		return stats, nil
	}

	// One dedup lookup for the whole batch: fetch already-staged URLs for
	// every (symbol, source) pair present in it.
	existing, err := s.stagedURLs(ctx, items)
	if err != nil {
		return stats, fmt.Errorf("%w: staged urls: %v", domrepo.ErrStorageUnavailable, err)
	}

	values := make([]string, 0, len(items))
	args := make([]interface{}, 0, len(items)*12)
	inserted := make([]string, 0, len(items))

	now := s.now()
	for _, item := range items {
		item.Symbol = models.NormalizeSymbol(item.Symbol)
		if item.Symbol == "" || item.URL == "" {
			stats.Failed++
			continue
		}
		key := dedupKey(item.Symbol, item.Source, item.URL)
		if existing[key] {
			stats.Duplicates++
			continue
		}
		existing[key] = true

		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if item.FetchedAt.IsZero() {
			item.FetchedAt = now
		}
		meta, err := json.Marshal(item.Metadata)
		if err != nil {
			stats.Failed++
			continue
		}

		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			item.ID, item.Symbol, item.Source, item.ExternalID,
			item.Title, item.Summary, item.URL,
			item.PublishedAt, item.FetchedAt, string(meta),
			string(models.StatusPending), now,
		)
		inserted = append(inserted, item.ID)
	}

	if len(values) == 0 {
		return stats, nil
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, stagingColumns, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse staging insert error",
				applogger.Int("rows", len(inserted)),
				applogger.Error(err),
			)
		}
		stats.Failed += len(inserted)
		return stats, fmt.Errorf("%w: insert batch: %v", domrepo.ErrStorageUnavailable, err)
	}

	stats.Inserted = len(inserted)
	return stats, nil
}

func (s *CHStagingStore) stagedURLs(ctx context.Context, items []models.RawNewsItem) (map[string]bool, error) {
	type pair struct{ symbol, source string }
	pairs := make(map[pair][]string)
	for _, item := range items {
		p := pair{models.NormalizeSymbol(item.Symbol), item.Source}
		pairs[p] = append(pairs[p], item.URL)
	}

	seen := make(map[string]bool)
	for p, urls := range pairs {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(urls)), ",")
		q := fmt.Sprintf(
			"SELECT url FROM %s FINAL WHERE symbol = ? AND source = ? AND url IN (%s)",
			s.table, placeholders,
		)
		args := make([]interface{}, 0, len(urls)+2)
		args = append(args, p.symbol, p.source)
		for _, u := range urls {
			args = append(args, u)
		}

		rows, err := s.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var url string
			if err := rows.Scan(&url); err != nil {
				rows.Close()
				return nil, err
			}
			seen[dedupKey(p.symbol, p.source, url)] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return seen, nil
}

func (s *CHStagingStore) ClaimPending(ctx context.Context, limit int) ([]models.RawNewsItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	q := fmt.Sprintf(`
        SELECT %s
        FROM %s FINAL
        WHERE status = ?
        ORDER BY fetched_at ASC
        LIMIT ?
    `, stagingColumns, s.table)

	rows, err := s.db.QueryContext(ctx, q, string(models.StatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: claim pending: %v", domrepo.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	items := make([]models.RawNewsItem, 0, limit)
	for rows.Next() {
		item, err := scanStagedItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan staged item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", domrepo.ErrStorageUnavailable, err)
	}

	for i := range items {
		items[i].Status = models.StatusProcessing
		if err := s.reinsert(ctx, items[i]); err != nil {
			return nil, fmt.Errorf("%w: claim transition: %v", domrepo.ErrStorageUnavailable, err)
		}
	}

	if s.l != nil && len(items) > 0 {
		s.l.Debug("claimed staged items", applogger.Int("count", len(items)))
	}
	return items, nil
}

func (s *CHStagingStore) MarkResult(ctx context.Context, id string, outcome models.ProcessingStatus) error {
	if outcome != models.StatusCompleted && outcome != models.StatusFailed {
		return fmt.Errorf("invalid outcome %q", outcome)
	}

	item, err := s.getByID(ctx, id)
	if err != nil {
		return err
	}
	if item.Status != models.StatusProcessing {
		return fmt.Errorf("item %s is %s, not processing", id, item.Status)
	}
	item.Status = outcome
	if err := s.reinsert(ctx, *item); err != nil {
		return fmt.Errorf("%w: mark result: %v", domrepo.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *CHStagingStore) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)

	q := fmt.Sprintf(`
        SELECT %s
        FROM %s FINAL
        WHERE status = ? AND status_updated_at < ?
    `, stagingColumns, s.table)

	rows, err := s.db.QueryContext(ctx, q, string(models.StatusProcessing), cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: stale scan: %v", domrepo.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var stale []models.RawNewsItem
	for rows.Next() {
		item, err := scanStagedItem(rows)
		if err != nil {
			return 0, fmt.Errorf("scan staged item: %w", err)
		}
		stale = append(stale, item)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("%w: rows: %v", domrepo.ErrStorageUnavailable, err)
	}

	requeued := 0
	for _, item := range stale {
		item.Status = models.StatusPending
		if err := s.reinsert(ctx, item); err != nil {
			return requeued, fmt.Errorf("%w: requeue: %v", domrepo.ErrStorageUnavailable, err)
		}
		requeued++
	}

	if s.l != nil && requeued > 0 {
		s.l.Warn("requeued stale processing items", applogger.Int("count", requeued))
	}
	return requeued, nil
}

func (s *CHStagingStore) getByID(ctx context.Context, id string) (*models.RawNewsItem, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE id = ? LIMIT 1", stagingColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("%w: get by id: %v", domrepo.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: rows: %v", domrepo.ErrStorageUnavailable, err)
		}
		return nil, domrepo.ErrNotFound
	}
	item, err := scanStagedItem(rows)
	if err != nil {
		return nil, fmt.Errorf("scan staged item: %w", err)
	}
	return &item, nil
}

func (s *CHStagingStore) reinsert(ctx context.Context, item models.RawNewsItem) error {
	meta, err := json.Marshal(item.Metadata)
	if err != nil {
		return err
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table, stagingColumns)
	_, err = s.db.ExecContext(ctx, q,
		item.ID, item.Symbol, item.Source, item.ExternalID,
		item.Title, item.Summary, item.URL,
		item.PublishedAt, item.FetchedAt, string(meta),
		string(item.Status), s.now(),
	)
	return err
}

func scanStagedItem(rows *sql.Rows) (models.RawNewsItem, error) {
	var (
		item      models.RawNewsItem
		meta      string
		status    string
		updatedAt time.Time
	)
	if err := rows.Scan(
		&item.ID, &item.Symbol, &item.Source, &item.ExternalID,
		&item.Title, &item.Summary, &item.URL,
		&item.PublishedAt, &item.FetchedAt, &meta,
		&status, &updatedAt,
	); err != nil {
		return item, err
	}
	item.Status = models.ProcessingStatus(status)
	if meta != "" && meta != "null" {
		if err := json.Unmarshal([]byte(meta), &item.Metadata); err != nil {
			item.Metadata = nil
		}
	}
	return item, nil
}

var _ domrepo.StagingStore = (*CHStagingStore)(nil)
