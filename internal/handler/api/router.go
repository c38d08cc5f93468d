package api

import (
	"github.com/labstack/echo/v4"
)

// Router bundles the API handlers behind one route registration point.
type Router struct {
	prediction *PredictionHandler
	trading    *TradingHandler
}

func NewRouter(prediction *PredictionHandler, trading *TradingHandler) *Router {
	return &Router{prediction: prediction, trading: trading}
}

func (r *Router) RegisterRoutes(e *echo.Echo) {
	r.prediction.RegisterRoutes(e)
	r.trading.RegisterRoutes(e)
}
