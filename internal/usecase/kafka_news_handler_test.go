package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	internalrepo "NewsPull/internal/repository"
)

func TestKafkaNewsHandlerStagesMessage(t *testing.T) {
	staging := internalrepo.NewMemoryStagingStore()
	h := NewKafkaNewsHandler("news.raw", staging, NewNormalizer(), nopMetrics{})
	ctx := context.Background()

	msg := []byte(`{
		"symbol": "aapl",
		"source": "vendor-x",
		"title": "Apple news",
		"url": "https://example.com/a",
		"published_at": "2025-06-01T11:00:00Z"
	}`)
	require.NoError(t, h.Handle(ctx, msg))

	claimed, err := staging.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, "AAPL", claimed[0].Symbol)
	require.Equal(t, "vendor-x", claimed[0].Source)
	require.Equal(t, 2025, claimed[0].PublishedAt.Year())
}

func TestKafkaNewsHandlerAcceptsUnixSeconds(t *testing.T) {
	staging := internalrepo.NewMemoryStagingStore()
	h := NewKafkaNewsHandler("news.raw", staging, NewNormalizer(), nopMetrics{})

	msg := []byte(`{"symbol":"AAPL","title":"t","url":"https://example.com/b","published_at":1748775600}`)
	require.NoError(t, h.Handle(context.Background(), msg))

	claimed, err := staging.ClaimPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, "kafka", claimed[0].Source)
	require.False(t, claimed[0].PublishedAt.IsZero())
}

func TestKafkaNewsHandlerRejectsMalformed(t *testing.T) {
	staging := internalrepo.NewMemoryStagingStore()
	h := NewKafkaNewsHandler("news.raw", staging, NewNormalizer(), nopMetrics{})
	ctx := context.Background()

	require.Error(t, h.Handle(ctx, []byte(`not json`)))
	require.Error(t, h.Handle(ctx, []byte(`{"symbol":"AAPL","title":"t"}`)))

	claimed, err := staging.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, claimed)
}

func TestKafkaNewsHandlerIsIdempotentPerURL(t *testing.T) {
	staging := internalrepo.NewMemoryStagingStore()
	h := NewKafkaNewsHandler("news.raw", staging, NewNormalizer(), nopMetrics{})
	ctx := context.Background()

	msg := []byte(`{"symbol":"AAPL","source":"vendor-x","title":"t","url":"https://example.com/c","published_at":"2025-06-01T11:00:00Z"}`)
	require.NoError(t, h.Handle(ctx, msg))
	require.NoError(t, h.Handle(ctx, msg))

	claimed, err := staging.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
}
