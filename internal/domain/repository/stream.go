package repository

import (
	"context"

	"NewsPull/internal/domain/models"
)

// NewsStream is a realtime headline feed.
type NewsStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	// Read streams headlines until the context is done or the connection
	// drops. The error channel reports the terminal failure.
	Read(ctx context.Context) (<-chan *models.Headline, <-chan error)
	Reconnect(ctx context.Context) error
	IsConnected() bool
	Close() error
}
