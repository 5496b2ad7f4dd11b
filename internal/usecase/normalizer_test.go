package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsPull/internal/domain/models"
)

func TestNormalizeFillsMetadataAndStatus(t *testing.T) {
	n := NewNormalizer()

	item, err := n.Normalize("aapl", "finnhub", models.ProviderRecord{
		ExternalID:  "123",
		Title:       "  Apple ships something  ",
		Summary:     " body ",
		URL:         "https://example.com/a",
		Publisher:   "Reuters",
		PublishedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, "AAPL", item.Symbol)
	require.Equal(t, "finnhub", item.Source)
	require.Equal(t, "Apple ships something", item.Title)
	require.Equal(t, "body", item.Summary)
	require.Equal(t, models.StatusPending, item.Status)
	require.Equal(t, "finnhub", item.Metadata[models.MetaFetchSource])
	require.Equal(t, "Reuters", item.Metadata[models.MetaPublisher])
	require.False(t, item.FetchedAt.IsZero())
}

func TestNormalizeRejectsMissingURLAndTitle(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize("AAPL", "finnhub", models.ProviderRecord{Title: "t"})
	require.ErrorIs(t, err, ErrMalformedRecord)

	_, err = n.Normalize("AAPL", "finnhub", models.ProviderRecord{URL: "https://example.com/a"})
	require.ErrorIs(t, err, ErrMalformedRecord)

	_, err = n.Normalize("", "finnhub", models.ProviderRecord{Title: "t", URL: "https://example.com/a"})
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestNormalizeDefaultsPublishedAtToFetchTime(t *testing.T) {
	n := NewNormalizer()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return fixed }

	item, err := n.Normalize("AAPL", "finnhub", models.ProviderRecord{
		Title: "t",
		URL:   "https://example.com/a",
	})
	require.NoError(t, err)
	require.Equal(t, fixed, item.PublishedAt)
	require.Equal(t, fixed, item.FetchedAt)
}

func TestNormalizeBatchSkipsMalformed(t *testing.T) {
	n := NewNormalizer()

	items, skipped := n.NormalizeBatch("AAPL", "finnhub", []models.ProviderRecord{
		{Title: "ok", URL: "https://example.com/a"},
		{Title: "", URL: "https://example.com/b"},
		{Title: "also ok", URL: "https://example.com/c"},
	})
	require.Len(t, items, 2)
	require.Equal(t, 1, skipped)
}
