package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"NewsPull/internal/domain/models"
)

// ErrMalformedRecord marks a provider record that cannot be normalized.
var ErrMalformedRecord = errors.New("malformed record")

// Normalizer converts provider records into staged raw news items.
type Normalizer struct {
	now func() time.Time
}

func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize maps a single provider record. Missing URL or title is malformed;
// a missing published time falls back to fetch time.
func (n *Normalizer) Normalize(symbol, source string, rec models.ProviderRecord) (models.RawNewsItem, error) {
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return models.RawNewsItem{}, fmt.Errorf("%w: empty symbol", ErrMalformedRecord)
	}
	url := strings.TrimSpace(rec.URL)
	if url == "" {
		return models.RawNewsItem{}, fmt.Errorf("%w: empty url", ErrMalformedRecord)
	}
	title := strings.TrimSpace(rec.Title)
	if title == "" {
		return models.RawNewsItem{}, fmt.Errorf("%w: empty title for %s", ErrMalformedRecord, url)
	}

	fetchedAt := n.now().UTC()
	publishedAt := rec.PublishedAt.UTC()
	if publishedAt.IsZero() {
		publishedAt = fetchedAt
	}

	item := models.RawNewsItem{
		Symbol:      symbol,
		Source:      source,
		ExternalID:  rec.ExternalID,
		Title:       title,
		Summary:     strings.TrimSpace(rec.Summary),
		URL:         url,
		PublishedAt: publishedAt,
		FetchedAt:   fetchedAt,
		Metadata: map[string]interface{}{
			models.MetaFetchSource: source,
		},
		Status: models.StatusPending,
	}
	if rec.Publisher != "" {
		item.Metadata[models.MetaPublisher] = rec.Publisher
	}
	return item, nil
}

// NormalizeBatch maps records, skipping malformed ones. Returns the usable
// items and how many were skipped.
func (n *Normalizer) NormalizeBatch(symbol, source string, recs []models.ProviderRecord) ([]models.RawNewsItem, int) {
	items := make([]models.RawNewsItem, 0, len(recs))
	skipped := 0
	for _, rec := range recs {
		item, err := n.Normalize(symbol, source, rec)
		if err != nil {
			skipped++
			continue
		}
		items = append(items, item)
	}
	return items, skipped
}
