package api

import (
	"FxPilot/internal/domain/models"
	"FxPilot/internal/usecase"
	xhttp "FxPilot/pkg/http"
	xlogger "FxPilot/pkg/logger"

	"github.com/labstack/echo/v4"
)

// TradingHandler serves the portfolio endpoints: settings, reversal flags,
// trade history, performance stats and portfolio reset.
type TradingHandler struct {
	logger   *xlogger.Logger
	pipeline *usecase.Pipeline
}

func NewTradingHandler(logger *xlogger.Logger, pipeline *usecase.Pipeline) *TradingHandler {
	return &TradingHandler{logger: logger, pipeline: pipeline}
}

func (h *TradingHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/trading")
	g.GET("/settings", h.GetSettings)
	g.POST("/settings", h.UpdateSettings)
	g.POST("/toggle-reverse/:pair", h.ToggleReverse)
	g.GET("/history", h.History)
	g.GET("/stats", h.Stats)
	g.POST("/reset-portfolio", h.ResetPortfolio)
}

func (h *TradingHandler) GetSettings(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.pipeline.Settings())
}

func (h *TradingHandler) UpdateSettings(c echo.Context) error {
	req := &models.SettingsPatch{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	settings, err := h.pipeline.UpdateSettings(req)
	if err != nil {
		h.logger.Error("settings update failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, settings)
}

func (h *TradingHandler) ToggleReverse(c echo.Context) error {
	pair := models.Pair(c.Param("pair"))
	if !pair.Valid() {
		return xhttp.BadRequestResponse(c, "pair must be SOURCE_TARGET")
	}

	reversed, err := h.pipeline.ToggleReverse(string(pair))
	if err != nil {
		h.logger.Error("toggle-reverse failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"pair":     string(pair),
		"reversed": reversed,
	})
}

func (h *TradingHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.pipeline.History()
	if err != nil {
		h.logger.Error("history read failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	// Most recent first, capped at the requested limit.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	if len(rows) > req.Limit {
		rows = rows[:req.Limit]
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *TradingHandler) Stats(c echo.Context) error {
	stats, err := h.pipeline.PerformanceStats()
	if err != nil {
		h.logger.Error("stats failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, stats)
}

func (h *TradingHandler) ResetPortfolio(c echo.Context) error {
	if err := h.pipeline.ResetPortfolio(); err != nil {
		h.logger.Error("reset-portfolio failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]bool{"reset": true})
}
