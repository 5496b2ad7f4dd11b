package models

import "time"

// Headline is a realtime news item read off the wire before staging.
type Headline struct {
	Symbol      string    `json:"symbol"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	Publisher   string    `json:"publisher"`
	PublishedAt time.Time `json:"published_at"`
}

// ToRecord converts the headline to a provider record for normalization.
func (h Headline) ToRecord() ProviderRecord {
	return ProviderRecord{
		Title:       h.Title,
		Summary:     h.Summary,
		URL:         h.URL,
		Publisher:   h.Publisher,
		PublishedAt: h.PublishedAt,
	}
}
