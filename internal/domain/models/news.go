package models

import (
	"strings"
	"time"
)

// ProcessingStatus tracks a staged article through the pipeline.
// Transitions only move forward: PENDING -> PROCESSING -> {COMPLETED, FAILED}.
// FAILED items stay put until a sweep or an operator requeues them.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Well-known metadata keys. Consumers rely on these; everything else in
// Metadata is provider-specific and best-effort.
const (
	MetaFetchSource = "fetch_source"
	MetaPublisher   = "publisher"
)

// ProviderRecord is what a provider adapter hands back for one article,
// before normalization. Fields may be empty; Normalize decides usability.
type ProviderRecord struct {
	ExternalID  string
	Title       string
	Summary     string
	URL         string
	PublishedAt time.Time
	Publisher   string
}

// RawNewsItem is the canonical staged article record.
type RawNewsItem struct {
	ID          string                 `json:"id"`
	Symbol      string                 `json:"symbol"`
	Source      string                 `json:"source"`
	ExternalID  string                 `json:"external_id,omitempty"`
	Title       string                 `json:"title"`
	Summary     string                 `json:"summary,omitempty"`
	URL         string                 `json:"url"`
	PublishedAt time.Time              `json:"published_at"`
	FetchedAt   time.Time              `json:"fetched_at"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Status      ProcessingStatus       `json:"status"`
}

// StackEntry is an article materialized into a symbol's ranked view.
// Position 1 is the most recent; positions are contiguous per symbol.
type StackEntry struct {
	RawNewsItem
	Position int `json:"position_in_stack"`
}

// NormalizeSymbol uppercases and trims a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
