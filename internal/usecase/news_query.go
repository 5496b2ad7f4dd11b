package usecase

import (
	"context"
	"fmt"

	"NewsPull/internal/domain/models"
	domrepo "NewsPull/internal/domain/repository"
)

// NewsQueryUseCase provides read access to ranked stacks and watermarks.
type NewsQueryUseCase struct {
	stacks     domrepo.StackStore
	watermarks domrepo.WatermarkStore
}

func NewNewsQueryUseCase(stacks domrepo.StackStore, watermarks domrepo.WatermarkStore) *NewsQueryUseCase {
	return &NewsQueryUseCase{stacks: stacks, watermarks: watermarks}
}

type GetStackParams struct {
	Symbol string
	Limit  int
}

type GetStackResult struct {
	Symbol  string              `json:"symbol"`
	Count   int                 `json:"count"`
	Entries []models.StackEntry `json:"entries"`
}

// GetStack returns the top entries for a symbol, position ascending.
func (uc *NewsQueryUseCase) GetStack(ctx context.Context, p GetStackParams) (*GetStackResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.Limit <= 0 {
		p.Limit = 5
	}
	if p.Limit > 50 {
		p.Limit = 50
	}
	symbol := models.NormalizeSymbol(p.Symbol)

	entries, err := uc.stacks.Top(ctx, symbol, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get stack: %w", err)
	}
	return &GetStackResult{Symbol: symbol, Count: len(entries), Entries: entries}, nil
}

type GetWatermarksParams struct {
	Symbol string
}

type GetWatermarksResult struct {
	Symbol     string                  `json:"symbol"`
	Watermarks []models.FetchWatermark `json:"watermarks"`
}

// GetWatermarks returns fetch progress for every source of a symbol.
func (uc *NewsQueryUseCase) GetWatermarks(ctx context.Context, p GetWatermarksParams) (*GetWatermarksResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	symbol := models.NormalizeSymbol(p.Symbol)

	wms, err := uc.watermarks.List(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("get watermarks: %w", err)
	}
	return &GetWatermarksResult{Symbol: symbol, Watermarks: wms}, nil
}
