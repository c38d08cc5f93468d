package api

import (
	"encoding/json"
	"errors"
	"time"

	"FxPilot/internal/domain/models"
	icache "FxPilot/internal/service/cache"
	"FxPilot/internal/service/ratelimit"
	"FxPilot/internal/usecase"
	xhttp "FxPilot/pkg/http"
	xlogger "FxPilot/pkg/logger"

	"github.com/labstack/echo/v4"
)

const latestCacheKey = "latest"

// PredictionHandler serves the walk-forward endpoints: advancing the
// cursor, resetting it, refreshing market data and reporting status.
type PredictionHandler struct {
	logger   *xlogger.Logger
	pipeline *usecase.Pipeline
	cache    icache.BytesCache
	cacheTTL time.Duration
	rl       *ratelimit.Limiter
}

func NewPredictionHandler(logger *xlogger.Logger, pipeline *usecase.Pipeline, cache icache.BytesCache, cacheTTL time.Duration) *PredictionHandler {
	return &PredictionHandler{
		logger:   logger,
		pipeline: pipeline,
		cache:    cache,
		cacheTTL: cacheTTL,
		rl:       ratelimit.New(),
	}
}

func (h *PredictionHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/predict-next", h.PredictNext)
	g.POST("/predict-multiple", h.PredictMultiple)
	g.POST("/reset", h.Reset)
	g.POST("/refresh-data", h.RefreshData)
	g.POST("/data/upsert-day", h.UpsertDay)
	g.GET("/status", h.Status)
	g.GET("/currencies", h.Currencies)
	g.GET("/latest", h.Latest)
}

func (h *PredictionHandler) PredictNext(c echo.Context) error {
	r, err := h.pipeline.PredictNext(c.Request().Context())
	if err != nil {
		if errors.Is(err, usecase.ErrExhausted) {
			return xhttp.BadRequestResponse(c, "no more data to predict")
		}
		h.logger.Error("predict-next failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.invalidateLatest()
	return xhttp.SuccessResponse(c, r)
}

func (h *PredictionHandler) PredictMultiple(c echo.Context) error {
	req := &models.PredictMultipleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":predict-multiple", 5, 1) {
		return xhttp.DataResponse(c, 429, "rate limited")
	}

	results, err := h.pipeline.PredictMultiple(c.Request().Context(), req.Days)
	if err != nil {
		if errors.Is(err, usecase.ErrExhausted) {
			return xhttp.BadRequestResponse(c, "no more data to predict")
		}
		h.logger.Error("predict-multiple failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.invalidateLatest()
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"count":   len(results),
		"results": results,
	})
}

func (h *PredictionHandler) Reset(c echo.Context) error {
	req := &models.ResetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.pipeline.Reset(req.ResetTrades); err != nil {
		h.logger.Error("reset failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.invalidateLatest()
	return xhttp.SuccessResponse(c, map[string]bool{"reset": true, "trades_reset": req.ResetTrades})
}

func (h *PredictionHandler) RefreshData(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":refresh", 2, 0.1) {
		return xhttp.DataResponse(c, 429, "rate limited")
	}
	date, err := h.pipeline.RefreshData(c.Request().Context())
	if err != nil {
		h.logger.Error("refresh-data failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.invalidateLatest()
	return xhttp.SuccessResponse(c, map[string]string{"date": date})
}

func (h *PredictionHandler) UpsertDay(c echo.Context) error {
	req := &models.UpsertDayRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.pipeline.UpsertDay(req.Date, req.Forex, req.Bonds, req.News); err != nil {
		h.logger.Error("upsert-day failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.invalidateLatest()
	return xhttp.SuccessResponse(c, map[string]string{"date": req.Date})
}

func (h *PredictionHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.pipeline.Status())
}

func (h *PredictionHandler) Currencies(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{"pairs": h.pipeline.Pairs()})
}

func (h *PredictionHandler) Latest(c echo.Context) error {
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(latestCacheKey); err != nil {
			h.logger.Warn("latest cache get failed", xlogger.Error(err))
		} else if ok {
			return c.JSONBlob(200, b)
		}
	}

	latest, err := h.pipeline.Latest()
	if err != nil {
		h.logger.Error("latest failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	if h.cache != nil {
		if b, err := json.Marshal(xhttp.APIResponse{Status: 200, Message: "OK", Data: latest}); err == nil {
			if err := h.cache.SetBytes(latestCacheKey, b, h.cacheTTL); err != nil {
				h.logger.Warn("latest cache set failed", xlogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, latest)
}

func (h *PredictionHandler) invalidateLatest() {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(latestCacheKey); err != nil {
		h.logger.Warn("latest cache invalidate failed", xlogger.Error(err))
	}
}
