package di

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	pkgkafka "NewsPull/pkg/kafka"
	applogger "NewsPull/pkg/logger"
)

// newIngestLogHook stamps handling start time and trace id on the context
// and logs rejected raw-article messages before they go to the DLQ.
func newIngestLogHook(l *applogger.Logger) pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			ctx = pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km))
			return ctx, km, data, nil
		},
		Err: func(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
			l.Warn("raw article rejected",
				applogger.String("topic", topic),
				applogger.Int64("offset", km.Offset),
				applogger.Error(err))
		},
	}
}
