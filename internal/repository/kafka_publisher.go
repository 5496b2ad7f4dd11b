package repository

import (
	"context"

	"NewsPull/internal/domain/models"
	domrepo "NewsPull/internal/domain/repository"
	pkgkafka "NewsPull/pkg/kafka"
)

// KafkaRankedPublisher emits a ranked-article event after every successful
// stack push. Events are keyed by symbol so one symbol's events stay ordered
// within a partition.
type KafkaRankedPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaRankedPublisher(producer *pkgkafka.Producer, topic string) *KafkaRankedPublisher {
	return &KafkaRankedPublisher{producer: producer, topic: topic}
}

func (p *KafkaRankedPublisher) PublishRanked(ctx context.Context, entry models.StackEntry) error {
	return p.producer.Publish(ctx, p.topic, []byte(entry.Symbol), map[string]interface{}{
		"symbol":       entry.Symbol,
		"source":       entry.Source,
		"url":          entry.URL,
		"title":        entry.Title,
		"published_at": entry.PublishedAt,
		"position":     entry.Position,
	})
}

func (p *KafkaRankedPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopPublisher drops events; used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishRanked(ctx context.Context, entry models.StackEntry) error { return nil }
func (NoopPublisher) Close() error                                                     { return nil }

var (
	_ domrepo.Publisher = (*KafkaRankedPublisher)(nil)
	_ domrepo.Publisher = NoopPublisher{}
)
