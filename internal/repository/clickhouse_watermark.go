package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"NewsPull/internal/domain/models"
	domrepo "NewsPull/internal/domain/repository"
	applogger "NewsPull/pkg/logger"
)

// CHWatermarkStore implements WatermarkStore backed by ClickHouse.
//
// Watermarks live in a ReplacingMergeTree ordered by (symbol, source) and
// versioned by updated_at, so an upsert is a plain insert and reads use FINAL.
// Watermark access for one (symbol, source) pair is serialized by the
// orchestrator, which keeps the read-adjust-insert in RecordResult safe.
type CHWatermarkStore struct {
	db       *sql.DB
	table    string
	overlap  time.Duration
	lookback time.Duration
	l        *applogger.Logger
	now      func() time.Time
}

func NewCHWatermarkStore(db *sql.DB, table string, overlap, lookback time.Duration) *CHWatermarkStore {
	return &CHWatermarkStore{
		db:       db,
		table:    table,
		overlap:  overlap,
		lookback: lookback,
		now:      time.Now,
	}
}

// SetLogger injects a structured logger.
func (s *CHWatermarkStore) SetLogger(l *applogger.Logger) { s.l = l }

const watermarkColumns = "symbol, source, last_from, last_to, articles_fetched, articles_stored, status, updated_at"

func (s *CHWatermarkStore) NextWindow(ctx context.Context, symbol, source string) (time.Time, time.Time, error) {
	now := s.now()

	wm, err := s.Get(ctx, symbol, source)
	if err != nil && err != domrepo.ErrNotFound {
		return time.Time{}, time.Time{}, err
	}

	var from time.Time
	switch {
	case wm == nil:
		from = now.Add(-s.lookback)
	case wm.Status == models.FetchSuccess:
		from = wm.LastTo.Add(-s.overlap)
	default:
		from = wm.LastFrom
	}

	return ClampWindow(from, now)
}

func (s *CHWatermarkStore) RecordResult(ctx context.Context, res models.FetchResult) error {
	symbol := models.NormalizeSymbol(res.Symbol)

	from, to := res.From, res.To
	cur, err := s.Get(ctx, symbol, res.Source)
	if err != nil && err != domrepo.ErrNotFound {
		return err
	}
	if cur != nil && cur.Status == models.FetchSuccess && res.Status == models.FetchSuccess && to.Before(cur.LastTo) {
		from, to = cur.LastFrom, cur.LastTo
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.table, watermarkColumns)
	if _, err := s.db.ExecContext(ctx, q,
		symbol, res.Source, from, to,
		uint32(res.ArticlesFetched), uint32(res.ArticlesStored),
		string(res.Status), s.now(),
	); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse watermark upsert error",
				applogger.String("symbol", symbol),
				applogger.String("source", res.Source),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("%w: record result: %v", domrepo.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *CHWatermarkStore) Get(ctx context.Context, symbol, source string) (*models.FetchWatermark, error) {
	q := fmt.Sprintf(
		"SELECT %s FROM %s FINAL WHERE symbol = ? AND source = ? LIMIT 1",
		watermarkColumns, s.table,
	)
	rows, err := s.db.QueryContext(ctx, q, models.NormalizeSymbol(symbol), source)
	if err != nil {
		return nil, fmt.Errorf("%w: get watermark: %v", domrepo.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: rows: %v", domrepo.ErrStorageUnavailable, err)
		}
		return nil, domrepo.ErrNotFound
	}
	wm, err := scanWatermark(rows)
	if err != nil {
		return nil, fmt.Errorf("scan watermark: %w", err)
	}
	return &wm, nil
}

func (s *CHWatermarkStore) List(ctx context.Context, symbol string) ([]models.FetchWatermark, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL", watermarkColumns, s.table)
	args := []interface{}{}
	if symbol != "" {
		q += " WHERE symbol = ?"
		args = append(args, models.NormalizeSymbol(symbol))
	}
	q += " ORDER BY symbol, source"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list watermarks: %v", domrepo.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []models.FetchWatermark
	for rows.Next() {
		wm, err := scanWatermark(rows)
		if err != nil {
			return nil, fmt.Errorf("scan watermark: %w", err)
		}
		out = append(out, wm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", domrepo.ErrStorageUnavailable, err)
	}
	return out, nil
}

func scanWatermark(rows *sql.Rows) (models.FetchWatermark, error) {
	var (
		wm              models.FetchWatermark
		fetched, stored uint32
		status          string
	)
	if err := rows.Scan(
		&wm.Symbol, &wm.Source, &wm.LastFrom, &wm.LastTo,
		&fetched, &stored, &status, &wm.UpdatedAt,
	); err != nil {
		return wm, err
	}
	wm.ArticlesFetched = int(fetched)
	wm.ArticlesStored = int(stored)
	wm.Status = models.FetchStatus(status)
	return wm, nil
}

var _ domrepo.WatermarkStore = (*CHWatermarkStore)(nil)
