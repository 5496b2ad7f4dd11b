package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"NewsPull/internal/domain/models"
	icache "NewsPull/internal/service/cache"
	"NewsPull/internal/usecase"
	xhttp "NewsPull/pkg/http"
	xlogger "NewsPull/pkg/logger"
)

const stackCacheTTL = 5 * time.Second

// NewsEchoHandler serves the ranked stacks and watermark progress over HTTP.
type NewsEchoHandler struct {
	logger *xlogger.Logger
	query  *usecase.NewsQueryUseCase
	cache  icache.BytesCache
}

func NewNewsEchoHandler(logger *xlogger.Logger, query *usecase.NewsQueryUseCase) *NewsEchoHandler {
	return &NewsEchoHandler{logger: logger, query: query}
}

// SetCache injects a response cache for stack reads.
func (h *NewsEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *NewsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api")
	g.GET("/news/:symbol", h.Stack)
	g.GET("/watermarks", h.Watermarks)
}

func (h *NewsEchoHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *NewsEchoHandler) Stack(c echo.Context) error {
	req := &models.NewsStackRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cacheKey := "stack:" + models.NormalizeSymbol(req.Symbol)
	if h.cache != nil && req.Limit == 5 {
		if b, ok, err := h.cache.GetBytes(cacheKey); err == nil && ok {
			return c.JSONBlob(http.StatusOK, b)
		}
	}

	res, err := h.query.GetStack(c.Request().Context(), usecase.GetStackParams{
		Symbol: req.Symbol,
		Limit:  req.Limit,
	})
	if err != nil {
		h.logger.Error("stack usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	if h.cache != nil && req.Limit == 5 {
		envelope := xhttp.APIResponse{Status: http.StatusOK, Message: http.StatusText(http.StatusOK), Data: res}
		if b, err := json.Marshal(envelope); err == nil {
			_ = h.cache.SetBytes(cacheKey, b, stackCacheTTL)
		}
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *NewsEchoHandler) Watermarks(c echo.Context) error {
	req := &models.WatermarksRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.query.GetWatermarks(c.Request().Context(), usecase.GetWatermarksParams{
		Symbol: req.Symbol,
	})
	if err != nil {
		h.logger.Error("watermarks usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if req.Source != "" {
		filtered := res.Watermarks[:0]
		for _, wm := range res.Watermarks {
			if wm.Source == req.Source {
				filtered = append(filtered, wm)
			}
		}
		res.Watermarks = filtered
	}
	return xhttp.SuccessResponse(c, res)
}
