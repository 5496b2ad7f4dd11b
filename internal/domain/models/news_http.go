package models

// Requests for the news HTTP endpoints. Defined in domain for consistency and reuse.

type NewsStackRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required"`
	Limit  int    `query:"limit" json:"limit" default:"5" validate:"gte=1,lte=50"`
}

type WatermarksRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Source string `query:"source" json:"source"`
}
