package models

import "time"

// FetchStatus is the outcome of one fetch attempt for a (symbol, source) pair.
type FetchStatus string

const (
	FetchSuccess FetchStatus = "success"
	FetchFailure FetchStatus = "failure"
)

// FetchWatermark records how far a (symbol, source) pair has been fetched.
// Exactly one live watermark exists per pair; updates are upserts.
type FetchWatermark struct {
	Symbol          string      `json:"symbol"`
	Source          string      `json:"source"`
	LastFrom        time.Time   `json:"last_from"`
	LastTo          time.Time   `json:"last_to"`
	ArticlesFetched int         `json:"articles_fetched"`
	ArticlesStored  int         `json:"articles_stored"`
	Status          FetchStatus `json:"status"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// FetchResult is what a fetch cycle reports back to the watermark store.
type FetchResult struct {
	Symbol          string
	Source          string
	From            time.Time
	To              time.Time
	ArticlesFetched int
	ArticlesStored  int
	Status          FetchStatus
}
