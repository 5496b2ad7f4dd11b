package service

import (
	"context"

	"NewsPull/internal/domain/models"
)

// Categorizer labels a staged article. It is an external collaborator; the
// pipeline only needs the label or the error. A categorization failure leaves
// the staged item failed, never completed.
type Categorizer interface {
	Categorize(ctx context.Context, item models.RawNewsItem) (string, error)
}
