package models

import "time"

// InsertStats are the aggregate counts returned by a staging batch insert.
// Duplicates are a normal outcome, counted apart from real failures.
type InsertStats struct {
	Total      int `json:"total"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// SourceReport summarizes one fetch attempt for one (symbol, source) pair.
type SourceReport struct {
	Source     string `json:"source"`
	Fetched    int    `json:"fetched"`
	Stored     int    `json:"stored"`
	Duplicates int    `json:"duplicates"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Error      string `json:"error,omitempty"`
}

// SymbolReport aggregates all sources fetched for one symbol in a cycle.
type SymbolReport struct {
	Symbol       string         `json:"symbol"`
	Sources      []SourceReport `json:"sources"`
	TotalFetched int            `json:"total_fetched"`
	TotalStored  int            `json:"total_stored"`
}

// ProcessStats summarizes one processing pass over pending staged items.
type ProcessStats struct {
	Claimed   int `json:"claimed"`
	Pushed    int `json:"pushed"`
	Duplicate int `json:"duplicate"`
	Failed    int `json:"failed"`
}

// CycleReport is the per-cycle summary the orchestrator logs. No partial
// state is hidden: every count, including failures, is enumerated.
type CycleReport struct {
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Symbols      []SymbolReport `json:"symbols"`
	TotalFetched int            `json:"total_fetched"`
	TotalStored  int            `json:"total_stored"`
	Processing   ProcessStats   `json:"processing"`
}

// Add folds a symbol report into the cycle totals.
func (r *CycleReport) Add(sr SymbolReport) {
	r.Symbols = append(r.Symbols, sr)
	r.TotalFetched += sr.TotalFetched
	r.TotalStored += sr.TotalStored
}
