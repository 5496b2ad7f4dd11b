package di

import (
	"context"
	"fmt"
	"time"

	"NewsPull/internal/domain/repository"
	dservice "NewsPull/internal/domain/service"
	mid "NewsPull/internal/middleware"
	internalrepo "NewsPull/internal/repository"
	"NewsPull/internal/service/categorize"
	"NewsPull/internal/service/finnhub"
	"NewsPull/internal/service/newswire"
	"NewsPull/internal/service/polygon"
	"NewsPull/internal/service/ratelimit"
	"NewsPull/internal/usecase"
	pkgch "NewsPull/pkg/clickhouse"
	"NewsPull/pkg/config"
	pkgkafka "NewsPull/pkg/kafka"
	applogger "NewsPull/pkg/logger"
	"NewsPull/pkg/metrics"
	pkgredis "NewsPull/pkg/redis"
	"NewsPull/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "console"
	if cfg.Environment == "production" {
		format = "json"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the
// schema. Returns nil for the memory backend.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Storage.Backend != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		`CREATE TABLE IF NOT EXISTS ` + db + `.news_raw (
			id String,
			symbol LowCardinality(String),
			source LowCardinality(String),
			external_id String,
			title String,
			summary String,
			url String,
			published_at DateTime64(3),
			fetched_at DateTime64(3),
			metadata String,
			status LowCardinality(String),
			status_updated_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(status_updated_at)
		ORDER BY (symbol, source, url)`,
		`CREATE TABLE IF NOT EXISTS ` + db + `.fetch_watermarks (
			symbol LowCardinality(String),
			source LowCardinality(String),
			last_from DateTime64(3),
			last_to DateTime64(3),
			articles_fetched Int32,
			articles_stored Int32,
			status LowCardinality(String),
			updated_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY (symbol, source)`,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideRedisClient creates a Redis client. Returns nil for the memory
// backend, which keeps stacks in process.
func ProvideRedisClient(cfg *config.Config) (*pkgredis.Client, error) {
	if cfg.Storage.Backend != "clickhouse" {
		return nil, nil
	}
	client, err := pkgredis.NewClient(
		pkgredis.WithHost(cfg.Redis.Host),
		pkgredis.WithPort(cfg.Redis.Port),
		pkgredis.WithPassword(cfg.Redis.Password),
		pkgredis.WithDB(cfg.Redis.DB),
		pkgredis.WithPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
		pkgredis.WithPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis client: %w", err)
	}
	return client, nil
}

// Stores bundles the three persistence surfaces behind one provider so the
// backend switch lives in one place.
type Stores struct {
	Watermarks repository.WatermarkStore
	Staging    repository.StagingStore
	Stacks     repository.StackStore
}

// ProvideStores creates the watermark, staging, and stack stores for the
// configured backend.
func ProvideStores(cfg *config.Config, chClient *pkgch.Client, redisClient *pkgredis.Client, l *applogger.Logger) (*Stores, error) {
	if cfg.Storage.Backend == "memory" {
		return &Stores{
			Watermarks: internalrepo.NewMemoryWatermarkStore(cfg.Pipeline.Overlap, cfg.Pipeline.DefaultLookback),
			Staging:    internalrepo.NewMemoryStagingStore(),
			Stacks:     internalrepo.NewMemoryStackStore(cfg.Pipeline.MaxStackSize),
		}, nil
	}
	if chClient == nil || redisClient == nil {
		return nil, fmt.Errorf("clickhouse backend requires clickhouse and redis clients")
	}

	db := cfg.ClickHouse.Database
	staging := internalrepo.NewCHStagingStore(chClient.DB(), db+".news_raw")
	staging.SetLogger(l)
	watermarks := internalrepo.NewCHWatermarkStore(chClient.DB(), db+".fetch_watermarks", cfg.Pipeline.Overlap, cfg.Pipeline.DefaultLookback)
	watermarks.SetLogger(l)
	stacks := internalrepo.NewRedisStackStore(redisClient, cfg.Pipeline.MaxStackSize)
	stacks.SetLogger(l)

	return &Stores{Watermarks: watermarks, Staging: staging, Stacks: stacks}, nil
}

// ProvideProviders creates the enabled news provider adapters.
func ProvideProviders(cfg *config.Config) []repository.Provider {
	limiter := ratelimit.New()
	var providers []repository.Provider
	for _, src := range cfg.Pipeline.Sources {
		switch src {
		case "finnhub":
			p := cfg.Providers.Finnhub
			if p.Enabled {
				providers = append(providers, finnhub.New(p.APIKey, p.BaseURL, p.Timeout, limiter, p.RateLimit, p.Burst))
			}
		case "polygon":
			p := cfg.Providers.Polygon
			if p.Enabled {
				providers = append(providers, polygon.New(p.APIKey, p.BaseURL, p.Timeout, limiter, p.RateLimit, p.Burst))
			}
		}
	}
	return providers
}

// ProvideNormalizer creates the record normalizer.
func ProvideNormalizer() *usecase.Normalizer {
	return usecase.NewNormalizer()
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher creates the ranked-event publisher.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaRankedPublisher(producer, cfg.Kafka.RankedTopic)
}

// ProvideCategorizer creates the article categorizer.
func ProvideCategorizer(cfg *config.Config) dservice.Categorizer {
	if !cfg.Categorizer.Enabled || cfg.Categorizer.URL == "" {
		return categorize.NoopCategorizer{}
	}
	return categorize.New(cfg.Categorizer.URL, cfg.Categorizer.Timeout)
}

// ProvideFetcher creates the incremental fetcher.
func ProvideFetcher(
	providers []repository.Provider,
	stores *Stores,
	normalizer *usecase.Normalizer,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.Fetcher {
	return usecase.NewFetcher(providers, stores.Watermarks, stores.Staging, normalizer, m, l,
		usecase.WithFetchConcurrency(cfg.Pipeline.FetchConcurrency))
}

// ProvideProcessor creates the staging-to-stack processor.
func ProvideProcessor(
	stores *Stores,
	pub repository.Publisher,
	cat dservice.Categorizer,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.Processor {
	return usecase.NewProcessor(stores.Staging, stores.Stacks, pub, cat, m, l,
		usecase.WithBatchSize(cfg.Pipeline.BatchSize),
		usecase.WithMaxStackSize(cfg.Pipeline.MaxStackSize))
}

// ProvideSweeper creates the stale-claim sweeper.
func ProvideSweeper(stores *Stores, m repository.Metrics, l *applogger.Logger, cfg *config.Config) *usecase.Sweeper {
	return usecase.NewSweeper(stores.Staging, m, l, cfg.Pipeline.ClaimTimeout)
}

// ProvideOrchestrator creates the cycle orchestrator.
func ProvideOrchestrator(fetcher *usecase.Fetcher, processor *usecase.Processor, cfg *config.Config, l *applogger.Logger) *usecase.Orchestrator {
	return usecase.NewOrchestrator(fetcher, processor, cfg.Pipeline.Symbols, l)
}

// ProvideNewsQuery creates the read-side usecase for the HTTP API.
func ProvideNewsQuery(stores *Stores) *usecase.NewsQueryUseCase {
	return usecase.NewNewsQueryUseCase(stores.Stacks, stores.Watermarks)
}

// ProvideHeadlineCollector creates the realtime wire collector, or nil when
// the wire is disabled.
func ProvideHeadlineCollector(
	cfg *config.Config,
	stores *Stores,
	normalizer *usecase.Normalizer,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.HeadlineCollector {
	if !cfg.Newswire.Enabled || cfg.Newswire.URL == "" {
		return nil
	}
	stream := newswire.New(
		cfg.Newswire.APIKey,
		cfg.Newswire.URL,
		cfg.Pipeline.Symbols,
		cfg.Newswire.ReconnectDelay,
		cfg.Newswire.PingInterval,
		l,
	)
	stager := usecase.NewHeadlineStager(stores.Staging, normalizer, m)
	pipe := mid.NewIngestPipeline(stager, m,
		mid.WithMaxRPS(5),
		mid.WithBufferSize(500),
	)
	return usecase.NewHeadlineCollector(stream, stager, m, pipe)
}

// ProvideKafkaConsumer creates the raw-news consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaNewsHandler registers the handler for the raw articles topic.
func ProvideKafkaNewsHandler(stores *Stores, normalizer *usecase.Normalizer, m repository.Metrics, cfg *config.Config) *usecase.KafkaNewsHandler {
	return usecase.NewKafkaNewsHandler(cfg.Kafka.RawTopic, stores.Staging, normalizer, m)
}

// logPublisher adapts the Kafka producer to the logger's collector, so
// aggregated error logs can ship to a topic.
type logPublisher struct {
	producer *pkgkafka.Producer
}

func (p logPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	producer *pkgkafka.Producer,
	orchestrator *usecase.Orchestrator,
	sweeper *usecase.Sweeper,
	query *usecase.NewsQueryUseCase,
	collector *usecase.HeadlineCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaNewsHandler,
	chClient *pkgch.Client,
	redisClient *pkgredis.Client,
	pub repository.Publisher,
) *server.App {
	if producer != nil && cfg.Kafka.LogsTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      logPublisher{producer: producer},
		})
	}
	var handler pkgkafka.MessageHandler
	if consumer != nil {
		consumer.SetLogger(l)
		consumer.WithConsumerHook(pkgkafka.NewHookChain(newIngestLogHook(l)))
		handler = kh
	}
	app := server.New(cfg, l, orchestrator, sweeper, query, collector, consumer, handler, chClient, redisClient)
	app.Publisher = pub
	return app
}
