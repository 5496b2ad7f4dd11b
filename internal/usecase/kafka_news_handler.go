package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"NewsPull/internal/domain/models"
	domrepo "NewsPull/internal/domain/repository"
	pkgkafka "NewsPull/pkg/kafka"
	xutil "NewsPull/pkg/util"
)

// KafkaNewsHandler consumes raw article messages and stages them. Articles
// arriving over Kafka go through the same normalizer and dedup as fetched
// ones.
type KafkaNewsHandler struct {
	topic      string
	staging    domrepo.StagingStore
	normalizer *Normalizer
	metrics    domrepo.Metrics
}

func NewKafkaNewsHandler(topic string, staging domrepo.StagingStore, normalizer *Normalizer, metrics domrepo.Metrics) *KafkaNewsHandler {
	return &KafkaNewsHandler{topic: topic, staging: staging, normalizer: normalizer, metrics: metrics}
}

func (h *KafkaNewsHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, source, id, title, summary, url,
// publisher, published_at}. published_at may be RFC3339 or unix seconds.
func (h *KafkaNewsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol      string          `json:"symbol"`
		Source      string          `json:"source"`
		ID          string          `json:"id"`
		Title       string          `json:"title"`
		Summary     string          `json:"summary"`
		URL         string          `json:"url"`
		Publisher   string          `json:"publisher"`
		PublishedAt json.RawMessage `json:"published_at"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	publishedAt := xutil.ParseTimeDefault(strings.Trim(string(m.PublishedAt), `"`), time.Time{})
	source := m.Source
	if source == "" {
		source = "kafka"
	}

	item, err := h.normalizer.Normalize(m.Symbol, source, models.ProviderRecord{
		ExternalID:  m.ID,
		Title:       m.Title,
		Summary:     m.Summary,
		URL:         m.URL,
		Publisher:   m.Publisher,
		PublishedAt: publishedAt,
	})
	if err != nil {
		h.metrics.RecordError("consumer_malformed")
		return err
	}

	start := time.Now()
	stats, err := h.staging.InsertBatch(ctx, []models.RawNewsItem{item})
	h.metrics.RecordLatency("consumer_stage", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_stage")
		return err
	}
	h.metrics.RecordStored(source, item.Symbol, stats.Inserted)
	h.metrics.RecordDuplicates(source, item.Symbol, stats.Duplicates)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaNewsHandler)(nil)
